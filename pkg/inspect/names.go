package inspect

import (
	"errors"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// mapScopes are the node maps a path may name. Chunk maps belong to
// buffers and are not inspectable by path.
var mapScopes = []node.Scope{
	node.ScopeDevice,
	node.ScopeTLDevice,
	node.ScopeTLStream,
	node.ScopeTLInterface,
	node.ScopeTLSystem,
}

// ResolveMapName resolves a node map name (case-insensitive).
func ResolveMapName(name string) (node.Scope, bool) {
	for _, s := range mapScopes {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return 0, false
}

// ResolveNodeName returns the exact node name in g for name. An exact
// match wins over a case-insensitive one; a miss fails with ErrNotFound
// carrying suggestions.
func ResolveNodeName(g *nodemap.Graph, name string) (string, error) {
	if _, err := g.Node(name); err == nil {
		return name, nil
	} else if !errors.Is(err, errkind.ErrNotFound) {
		return "", err
	}
	for _, candidate := range g.FeatureNames() {
		if strings.EqualFold(candidate, name) {
			return candidate, nil
		}
	}
	_, err := g.Node(name)
	return "", err
}

// Complete returns the node names of g starting with prefix, for shell
// completion. Matching is case-insensitive.
func Complete(g *nodemap.Graph, prefix string) []string {
	lp := strings.ToLower(prefix)
	var out []string
	for _, name := range g.FeatureNames() {
		if strings.HasPrefix(strings.ToLower(name), lp) {
			out = append(out, name)
		}
	}
	return out
}
