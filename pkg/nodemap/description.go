package nodemap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zacpullen/arena-api/pkg/node"
)

// Description is a node map loaded from YAML.
//
//	device: TRI050S-M
//	scope: Device
//	nodes:
//	  - name: Width
//	    type: Integer
//	    feature: true
//	    min: 16
//	    max: 2448
type Description struct {
	Device string            `yaml:"device"`
	Scope  string            `yaml:"scope"`
	Nodes  []node.Definition `yaml:"nodes"`
}

// ParseDescription parses a node map description from YAML bytes.
func ParseDescription(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing node description: %w", err)
	}
	if len(d.Nodes) == 0 {
		return nil, fmt.Errorf("node description for %q has no nodes", d.Device)
	}
	return &d, nil
}

// LoadDescription loads and parses a node map description from a file.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDescription(data)
}

// ScopeValue parses the description scope, defaulting to Device.
func (d *Description) ScopeValue() (node.Scope, error) {
	if d.Scope == "" {
		return node.ScopeDevice, nil
	}
	return node.ParseScope(d.Scope)
}

// FromDescription builds a graph from a parsed description.
func FromDescription(d *Description) (*Graph, error) {
	scope, err := d.ScopeValue()
	if err != nil {
		return nil, err
	}
	return New(scope, d.Device, d.Nodes)
}
