package node

import (
	"fmt"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Node is a lightweight view of one record in an Arena. Views are created
// on every lookup; two views are Equal when they address the same record.
type Node struct {
	arena *Arena
	id    ID
}

// ID returns the stable record ID.
func (n Node) ID() ID { return n.id }

// Arena returns the arena the node lives in.
func (n Node) Arena() *Arena { return n.arena }

// IsZero reports whether n addresses no node.
func (n Node) IsZero() bool { return n.arena == nil || n.id == 0 }

// Equal reports whether both views address the same record.
func (n Node) Equal(o Node) bool { return n.arena == o.arena && n.id == o.id }

// rec returns the immutable part of the record. Mutable state must be read
// under the arena lock.
func (n Node) rec() *record { return n.arena.records[n.id] }

// Name returns the node name. EnumEntry variants override it with their
// symbolic name.
func (n Node) Name() string { return n.rec().name }

// FullyQualifiedName prefixes the name with its namespace.
func (n Node) FullyQualifiedName() string {
	r := n.rec()
	switch r.namespace {
	case NamespaceStandard:
		return "Std::" + r.name
	case NamespaceCustom:
		return "Cust::" + r.name
	}
	return r.name
}

func (n Node) InterfaceType() InterfaceType { return n.rec().typ }
func (n Node) Description() string          { return n.rec().description }
func (n Node) DisplayName() string          { return n.rec().displayName }
func (n Node) ToolTip() string              { return n.rec().toolTip }
func (n Node) DocuURL() string              { return n.rec().docuURL }
func (n Node) Namespace() Namespace         { return n.rec().namespace }
func (n Node) CachingMode() CachingMode     { return n.rec().caching }
func (n Node) PollingTime() time.Duration   { return n.rec().pollingTime }
func (n Node) IsDeprecated() bool           { return n.rec().deprecated }
func (n Node) EventID() string              { return n.rec().eventID }
func (n Node) ChunkID() uint32              { return n.rec().chunkID }
func (n Node) DeviceName() string           { return n.arena.deviceName }

// IsCachable reports whether reads of the node may be served from cache.
func (n Node) IsCachable() bool { return n.rec().caching != CachingNoCache }

// IsFeature reports whether the node is a top-level feature. A feature whose
// access mode became NI no longer counts.
func (n Node) IsFeature() bool {
	if !n.rec().feature {
		return false
	}
	return n.AccessMode() != AccessNI
}

// AccessMode returns the effective access mode: the device-reported mode
// narrowed by any imposed mode and by the streaming parameter lock.
func (n Node) AccessMode() AccessMode {
	n.arena.mu.RLock()
	defer n.arena.mu.RUnlock()
	if n.arena.closed {
		return AccessNA
	}
	return n.arena.accessLocked(n.rec())
}

func (n Node) IsReadable() bool { return n.AccessMode().Readable() }
func (n Node) IsWritable() bool { return n.AccessMode().Writable() }

// ImposeAccessMode narrows the access mode seen through this node map.
// Passing AccessUndefined removes the override. The device is not changed.
func (n Node) ImposeAccessMode(m AccessMode) error {
	return n.arena.mutate(n.id, func(r *record) { r.imposedAccess = m })
}

// Visibility returns the effective visibility tier.
func (n Node) Visibility() Visibility {
	n.arena.mu.RLock()
	defer n.arena.mu.RUnlock()
	return n.arena.visibilityLocked(n.rec())
}

// ImposeVisibility raises the visibility tier seen through this node map.
// Passing VisibilityUndefined removes the override.
func (n Node) ImposeVisibility(v Visibility) error {
	return n.arena.mutate(n.id, func(r *record) { r.imposedVisibility = v })
}

// Parents returns the nodes that list this node as a child.
func (n Node) Parents() ([]Feature, error) { return n.castAll(n.rec().parents) }

// Children returns the direct children of the node.
func (n Node) Children() ([]Feature, error) { return n.castAll(n.rec().children) }

// Alias returns the alias node, or nil when the node has none.
func (n Node) Alias() (Feature, error) { return n.castOne(n.rec().alias) }

// CastAlias returns the cast alias node, or nil when the node has none.
func (n Node) CastAlias() (Feature, error) { return n.castOne(n.rec().castAlias) }

// IsSelector reports whether the node selects other features.
func (n Node) IsSelector() bool { return len(n.rec().selected) > 0 }

// SelectedFeatures returns the features whose value depends on this
// selector's current entry.
func (n Node) SelectedFeatures() ([]Feature, error) { return n.castAll(n.rec().selected) }

// SelectingFeatures returns the selectors that gate this node.
func (n Node) SelectingFeatures() ([]Feature, error) { return n.castAll(n.rec().selecting) }

// Watch calls fn whenever the node is invalidated. The returned token is
// passed to Arena.Unwatch.
func (n Node) Watch(fn func(Node)) (uint64, error) { return n.arena.Watch(n.id, fn) }

func (n Node) String() string {
	if n.IsZero() {
		return "<nil node>"
	}
	return fmt.Sprintf("%s (%s, %s)", n.Name(), n.InterfaceType(), n.AccessMode())
}

func (n Node) castOne(id ID) (Feature, error) {
	if id == 0 {
		return nil, nil
	}
	return Cast(Node{arena: n.arena, id: id})
}

func (n Node) castAll(ids []ID) ([]Feature, error) {
	out := make([]Feature, 0, len(ids))
	for _, id := range ids {
		f, err := Cast(Node{arena: n.arena, id: id})
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (n Node) check() error {
	if n.IsZero() {
		return fmt.Errorf("%w: zero node", errkind.ErrInvalidArgument)
	}
	return nil
}
