package sim

import (
	"sync"

	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// selection mirrors a selected feature per selector entry, so the camera
// can consult every entry without moving the selector.
type selection struct {
	mu     sync.Mutex
	def    any
	values map[string]any
}

// watchSelected tracks selected under each entry of selector. Writes to
// either node notify the selected node.
func watchSelected(g *nodemap.Graph, selector, selected string) (*selection, error) {
	def, err := g.Value(selected)
	if err != nil {
		return nil, err
	}
	n, err := g.Node(selected)
	if err != nil {
		return nil, err
	}
	s := &selection{def: def, values: make(map[string]any)}
	_, err = n.Watch(func(node.Node) {
		key, err := g.EnumValue(selector)
		if err != nil {
			return
		}
		v, err := g.Value(selected)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.values[key] = v
		s.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *selection) get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return s.def
}

// on reports a true boolean or an "On" enumeration entry.
func (s *selection) on(key string) bool {
	switch v := s.get(key).(type) {
	case bool:
		return v
	case string:
		return v == "On"
	}
	return false
}
