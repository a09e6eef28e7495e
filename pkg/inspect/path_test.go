package inspect

import (
	"errors"
	"testing"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
)

func TestParsePathValid(t *testing.T) {
	tests := []struct {
		input     string
		wantMap   node.Scope
		hasMap    bool
		wantNode  string
		wantSel   string
		isPartial bool
		canonical string
	}{
		{"Width", 0, false, "Width", "", false, "Width"},
		{"  Width ", 0, false, "Width", "", false, "Width"},
		{"Device/ExposureTime", node.ScopeDevice, true, "ExposureTime", "", false, "Device/ExposureTime"},
		{"tlstream/StreamBufferHandlingMode", node.ScopeTLStream, true, "StreamBufferHandlingMode", "", false, "TLStream/StreamBufferHandlingMode"},
		{"TriggerMode[FrameStart]", 0, false, "TriggerMode", "FrameStart", false, "TriggerMode[FrameStart]"},
		{"Device/ChunkEnable[CRC]", node.ScopeDevice, true, "ChunkEnable", "CRC", false, "Device/ChunkEnable[CRC]"},
		{"TLDevice/", node.ScopeTLDevice, true, "", "", true, "TLDevice/"},
		{"TLSystem", node.ScopeTLSystem, true, "", "", true, "TLSystem/"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.input, err)
			}
			if p.HasMap != tt.hasMap || (p.HasMap && p.Map != tt.wantMap) {
				t.Errorf("Map = %v/%v, want %v/%v", p.Map, p.HasMap, tt.wantMap, tt.hasMap)
			}
			if p.Node != tt.wantNode || p.Selector != tt.wantSel || p.IsPartial != tt.isPartial {
				t.Errorf("got node=%q sel=%q partial=%v", p.Node, p.Selector, p.IsPartial)
			}
			if got := p.String(); got != tt.canonical {
				t.Errorf("String() = %q, want %q", got, tt.canonical)
			}
		})
	}
}

func TestParsePathInvalid(t *testing.T) {
	tests := []struct {
		input   string
		wantErr error
	}{
		{"", ErrEmptyPath},
		{"   ", ErrEmptyPath},
		{"/Width", ErrInvalidPath},
		{"Device/Sub/Width", ErrInvalidPath},
		{"Camera/Width", ErrInvalidPath},
		{"Chunk/ChunkWidth", ErrInvalidPath},
		{"TriggerMode[", ErrInvalidPath},
		{"TriggerMode[]", ErrInvalidPath},
		{"[FrameStart]", ErrInvalidPath},
		{"Trigger[a]Mode", ErrInvalidPath},
		{"Exposure Time", ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParsePath(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParsePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if !errors.Is(err, errkind.ErrInvalidArgument) {
				t.Errorf("error %v does not match ErrInvalidArgument", err)
			}
		})
	}
}
