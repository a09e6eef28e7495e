package main

import (
	"fmt"
	"go/token"
	"slices"
	"strings"
	"unicode"

	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// fileData is the input of the file template.
type fileData struct {
	Source  string
	Package string
	Type    string
	Prefix  string
	Scope   string
	Nodes   []nodeData
	Enums   []enumData
}

// nodeData describes the accessors of one feature.
type nodeData struct {
	Name     string
	GoName   string
	Doc      string
	Unit     string
	Command  bool
	GoType   string
	Getter   string
	Setter   string
	Readable bool
	Writable bool
}

type enumData struct {
	Name    string
	GoName  string
	Entries []entryData
}

type entryData struct {
	Name   string
	GoName string
}

// accessors maps value interface types to their Go type and the Graph
// getter and setter.
var accessors = map[node.InterfaceType][3]string{
	node.InterfaceInteger:     {"int64", "IntValue", "SetInt"},
	node.InterfaceFloat:       {"float64", "FloatValue", "SetFloat"},
	node.InterfaceBoolean:     {"bool", "BoolValue", "SetBool"},
	node.InterfaceString:      {"string", "StringValue", "SetString"},
	node.InterfaceEnumeration: {"string", "EnumValue", "SetEnum"},
}

// buildFileData collects the features of desc. Non-feature nodes,
// categories and registers are skipped.
func buildFileData(desc *nodemap.Description, source, pkg, typeName, prefix string) (*fileData, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("package %q is not an identifier", pkg)
	}
	if !token.IsIdentifier(typeName) {
		return nil, fmt.Errorf("type %q is not an identifier", typeName)
	}
	scope, err := desc.ScopeValue()
	if err != nil {
		return nil, err
	}
	fd := &fileData{Source: source, Package: pkg, Type: typeName, Prefix: prefix, Scope: scope.String()}

	seen := make(map[string]string)
	for _, def := range desc.Nodes {
		if !def.Feature {
			continue
		}
		it, err := node.ParseInterfaceType(def.Type)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", def.Name, err)
		}
		access := node.AccessRW
		if def.Access != "" {
			if access, err = node.ParseAccessMode(def.Access); err != nil {
				return nil, fmt.Errorf("node %s: %w", def.Name, err)
			}
		}

		nd := nodeData{
			Name:   def.Name,
			GoName: goName(def.Name),
			Doc:    docText(def),
			Unit:   def.Unit,
		}
		switch acc, ok := accessors[it]; {
		case it == node.InterfaceCommand:
			nd.Command = true
		case ok:
			nd.GoType, nd.Getter, nd.Setter = acc[0], acc[1], acc[2]
			nd.Readable = access.Readable()
			nd.Writable = access.Writable()
		default:
			continue
		}
		if other, dup := seen[nd.GoName]; dup {
			return nil, fmt.Errorf("nodes %s and %s both map to %s", other, def.Name, nd.GoName)
		}
		seen[nd.GoName] = def.Name
		fd.Nodes = append(fd.Nodes, nd)

		if it == node.InterfaceEnumeration && len(def.Entries) > 0 {
			ed := enumData{Name: def.Name, GoName: nd.GoName}
			for _, e := range def.Entries {
				ed.Entries = append(ed.Entries, entryData{Name: e.Name, GoName: nd.GoName + goName(e.Name)})
			}
			fd.Enums = append(fd.Enums, ed)
		}
	}
	if len(fd.Nodes) == 0 {
		return nil, fmt.Errorf("description %s has no features", source)
	}

	slices.SortFunc(fd.Nodes, func(a, b nodeData) int { return strings.Compare(a.Name, b.Name) })
	slices.SortFunc(fd.Enums, func(a, b enumData) int { return strings.Compare(a.Name, b.Name) })
	return fd, nil
}

// goName turns a node or entry name into an exported identifier part.
// Characters outside letters and digits are dropped and the following
// letter is upper-cased.
func goName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// docText returns the first sentence of the tool tip or description.
func docText(def node.Definition) string {
	text := def.ToolTip
	if text == "" {
		text = def.Description
	}
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	return text
}
