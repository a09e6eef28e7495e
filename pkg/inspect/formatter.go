package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/zacpullen/arena-api/pkg/node"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes type, access and range information.
	ShowMetadata bool

	// MaxVisibility hides nodes above this tier in trees.
	MaxVisibility node.Visibility

	// IndentWidth is the number of spaces per indent level.
	IndentWidth int
}

// NewFormatter creates a Formatter showing metadata up to the Guru tier.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata:  true,
		MaxVisibility: node.VisibilityGuru,
		IndentWidth:   2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// FormatValue formats a node value with its unit.
func (f *Formatter) FormatValue(info *NodeInfo) string {
	switch {
	case info.ValueErr != nil:
		return fmt.Sprintf("<%v>", info.ValueErr)
	case info.Type == node.InterfaceCommand:
		return "(command)"
	case info.Type == node.InterfaceCategory:
		return ""
	case info.Type == node.InterfaceString:
		return fmt.Sprintf("%q", info.Value)
	case info.Unit != "":
		return info.Value + " " + info.Unit
	}
	return info.Value
}

// FormatNode formats one node as a single line: name, value and, with
// ShowMetadata, its type, access and range.
func (f *Formatter) FormatNode(info *NodeInfo) string {
	var b strings.Builder
	b.WriteString(info.Name)
	if info.Selector != "" {
		fmt.Fprintf(&b, "[%s]", info.Selector)
	}
	if v := f.FormatValue(info); v != "" {
		b.WriteString(" = ")
		b.WriteString(v)
	}
	if !f.ShowMetadata {
		return b.String()
	}

	meta := []string{info.Type.String(), info.Access.String()}
	if info.Min != "" || info.Max != "" {
		r := fmt.Sprintf("%s..%s", info.Min, info.Max)
		if info.Inc != "" && info.Inc != "1" {
			r += " step " + info.Inc
		}
		meta = append(meta, r)
	}
	if len(info.Entries) > 0 {
		meta = append(meta, "{"+strings.Join(info.Entries, "|")+"}")
	}
	if len(info.Selecting) > 0 {
		meta = append(meta, "selected by "+strings.Join(info.Selecting, ","))
	}
	fmt.Fprintf(&b, "  [%s]", strings.Join(meta, ", "))
	return b.String()
}

// FormatDetail formats every field of a node, one per line.
func (f *Formatter) FormatDetail(info *NodeInfo) string {
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%-12s %s\n", k+":", v)
		}
	}
	line("Name", info.Name)
	line("DisplayName", info.DisplayName)
	line("Description", info.Description)
	line("Type", info.Type.String())
	line("Access", info.Access.String())
	line("Visibility", info.Visibility.String())
	line("Value", f.FormatValue(info))
	line("Min", info.Min)
	line("Max", info.Max)
	line("Inc", info.Inc)
	line("Entries", strings.Join(info.Entries, ", "))
	line("Selector", info.Selector)
	line("SelectedBy", strings.Join(info.Selecting, ", "))
	line("Selects", strings.Join(info.Selected, ", "))
	line("Children", strings.Join(info.Children, ", "))
	return b.String()
}

// WriteTree writes a category tree, skipping nodes above MaxVisibility.
func (f *Formatter) WriteTree(w io.Writer, t *TreeNode) error {
	return f.writeTree(w, t, 0)
}

func (f *Formatter) writeTree(w io.Writer, t *TreeNode, depth int) error {
	if t.Info.Visibility > f.MaxVisibility {
		return nil
	}
	line := t.Info.Name
	if t.Info.Type != node.InterfaceCategory {
		line = f.FormatNode(t.Info)
	}
	if _, err := fmt.Fprintln(w, f.Indent(depth, line)); err != nil {
		return err
	}
	for _, c := range t.Children {
		if err := f.writeTree(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
