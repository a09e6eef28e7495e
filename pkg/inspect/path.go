// Package inspect reads, writes and displays nodes through path
// expressions.
//
// A path names a node, optionally qualified by its node map and by the
// selector value to apply while accessing it:
//
//	Width
//	Device/ExposureTime
//	TLStream/StreamBufferHandlingMode
//	TriggerMode[FrameStart]
//	TLDevice/
//
// Map and node names are case-insensitive. A map name alone (with or
// without the trailing slash) is a partial path listing the map.
package inspect

import (
	"fmt"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
)

// Path errors. Both match errkind.ErrInvalidArgument.
var (
	ErrEmptyPath   = fmt.Errorf("%w: empty path", errkind.ErrInvalidArgument)
	ErrInvalidPath = fmt.Errorf("%w: invalid path format", errkind.ErrInvalidArgument)
)

// Path is a parsed inspection path.
type Path struct {
	// Map is the node map scope. It is meaningful only when HasMap is set;
	// otherwise the inspector's default map is used.
	Map    node.Scope
	HasMap bool

	// Node is the node name as written.
	Node string

	// Selector is the selector entry to apply while accessing Node.
	Selector string

	// IsPartial marks a path naming only a map.
	IsPartial bool

	Raw string
}

// ParsePath parses a path expression.
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}
	if strings.HasPrefix(input, "/") || strings.Count(input, "/") > 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, input)
	}

	p := &Path{Raw: input}
	rest := input
	if mapName, nodeName, ok := strings.Cut(input, "/"); ok {
		scope, found := ResolveMapName(mapName)
		if !found {
			return nil, fmt.Errorf("%w: unknown node map %q", ErrInvalidPath, mapName)
		}
		p.Map, p.HasMap = scope, true
		rest = nodeName
	} else if scope, found := ResolveMapName(input); found {
		p.Map, p.HasMap, p.IsPartial = scope, true, true
		return p, nil
	}
	if rest == "" {
		p.IsPartial = true
		return p, nil
	}

	if open := strings.IndexByte(rest, '['); open >= 0 {
		if !strings.HasSuffix(rest, "]") || open == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, input)
		}
		p.Selector = rest[open+1 : len(rest)-1]
		rest = rest[:open]
		if p.Selector == "" || strings.ContainsAny(p.Selector, "[]") {
			return nil, fmt.Errorf("%w: empty or nested selector in %q", ErrInvalidPath, input)
		}
	}
	if strings.ContainsAny(rest, "[] \t") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, input)
	}
	p.Node = rest
	return p, nil
}

// String formats the path in canonical form.
func (p *Path) String() string {
	var b strings.Builder
	if p.HasMap {
		b.WriteString(p.Map.String())
		b.WriteByte('/')
	}
	b.WriteString(p.Node)
	if p.Selector != "" {
		fmt.Fprintf(&b, "[%s]", p.Selector)
	}
	return b.String()
}
