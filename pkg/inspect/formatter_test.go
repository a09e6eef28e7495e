package inspect

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/zacpullen/arena-api/pkg/node"
)

func TestFormatValue(t *testing.T) {
	f := NewFormatter()
	tests := []struct {
		name string
		info NodeInfo
		want string
	}{
		{"Int", NodeInfo{Type: node.InterfaceInteger, Value: "640"}, "640"},
		{"Unit", NodeInfo{Type: node.InterfaceFloat, Value: "5000", Unit: "us"}, "5000 us"},
		{"String", NodeInfo{Type: node.InterfaceString, Value: "left cam"}, `"left cam"`},
		{"Command", NodeInfo{Type: node.InterfaceCommand}, "(command)"},
		{"Error", NodeInfo{Type: node.InterfaceInteger, ValueErr: errors.New("not available")}, "<not available>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatValue(&tt.info); got != tt.want {
				t.Errorf("FormatValue = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatNode(t *testing.T) {
	info := &NodeInfo{
		Name:      "TriggerMode",
		Type:      node.InterfaceEnumeration,
		Access:    node.AccessRW,
		Value:     "On",
		Entries:   []string{"Off", "On"},
		Selector:  "FrameStart",
		Selecting: []string{"TriggerSelector"},
	}
	f := NewFormatter()
	want := "TriggerMode[FrameStart] = On  [Enumeration, RW, {Off|On}, selected by TriggerSelector]"
	if got := f.FormatNode(info); got != want {
		t.Errorf("FormatNode =\n%q\nwant\n%q", got, want)
	}

	f.ShowMetadata = false
	if got := f.FormatNode(info); got != "TriggerMode[FrameStart] = On" {
		t.Errorf("FormatNode without metadata = %q", got)
	}

	ranged := &NodeInfo{Name: "Width", Type: node.InterfaceInteger, Access: node.AccessRW, Value: "640", Min: "16", Max: "2448", Inc: "8"}
	if got := NewFormatter().FormatNode(ranged); !strings.HasSuffix(got, "[Integer, RW, 16..2448 step 8]") {
		t.Errorf("FormatNode range = %q", got)
	}
}

func TestFormatDetail(t *testing.T) {
	out := NewFormatter().FormatDetail(&NodeInfo{Name: "Gain", Type: node.InterfaceFloat, Access: node.AccessRO, Value: "0"})
	for _, want := range []string{"Name:        Gain\n", "Access:      RO\n", "Value:       0\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatDetail missing %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "Min:") {
		t.Error("FormatDetail printed empty Min")
	}
}

func TestWriteTreeHidesInvisible(t *testing.T) {
	tree := &TreeNode{
		Info: &NodeInfo{Name: "Root", Type: node.InterfaceCategory},
		Children: []*TreeNode{
			{Info: &NodeInfo{Name: "Width", Type: node.InterfaceInteger, Value: "8"}},
			{Info: &NodeInfo{Name: "Secret", Type: node.InterfaceInteger, Visibility: node.VisibilityInvisible}},
		},
	}
	f := NewFormatter()
	f.ShowMetadata = false
	var buf bytes.Buffer
	if err := f.WriteTree(&buf, tree); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Root\n  Width = 8\n" {
		t.Errorf("WriteTree = %q", got)
	}
}
