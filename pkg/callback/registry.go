package callback

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"

	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
)

// Handle identifies one registration.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// NodeHandler runs when the node it is registered on is invalidated: its
// value changed, the node map was invalidated or polled, or a device event
// updated it. args are the values given at registration.
type NodeHandler func(f node.Feature, args ...any)

// DeviceHandler runs for every buffer that enters the output queue of the
// device it is registered on.
type DeviceHandler func(b *buffer.Buffer, args ...any)

// Device is a target that delivers buffer arrivals.
type Device interface {
	// SubscribeBuffers adds fn to the buffer arrival listeners. The
	// returned function removes it.
	SubscribeBuffers(fn func(*buffer.Buffer)) (cancel func())

	// Destroyed reports whether the device was destroyed.
	Destroyed() bool
}

// key identifies a (target, handler) pair. Handlers are compared by
// function value identity: the same func value registered twice collides,
// while two closures created from one function literal are distinct.
type key struct {
	target  any
	handler unsafe.Pointer
}

type nodeTarget struct {
	arena *node.Arena
	id    node.ID
}

// registration keeps the handler and its arguments reachable for as long
// as it exists.
type registration struct {
	key  key
	args []any

	// Node target
	nodeFn NodeHandler
	arena  *node.Arena
	token  uint64

	// Device target
	devFn  DeviceHandler
	device Device
	cancel func()

	// target names the target in errors.
	target string
}

func (r *registration) destroyed() bool {
	if r.device != nil {
		return r.device.Destroyed()
	}
	return r.arena.Closed()
}

func (r *registration) release() {
	if r.cancel != nil {
		r.cancel()
		return
	}
	r.arena.Unwatch(r.token)
}

// Registry holds callback registrations.
type Registry struct {
	mu sync.Mutex

	// Registrations by handle
	byHandle map[Handle]*registration

	// Handle by (target, handler) pair
	byKey map[key]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle: make(map[Handle]*registration),
		byKey:    make(map[key]Handle),
	}
}

// Register registers handler on target. target is a node.Node, a
// node.Feature or a Device; handler is a NodeHandler or a DeviceHandler
// matching it (plain funcs with the same signature are accepted).
func (r *Registry) Register(target, handler any, args ...any) (Handle, error) {
	switch t := target.(type) {
	case node.Node:
		fn, ok := nodeHandler(handler)
		if !ok {
			return Handle{}, errkind.New(errkind.ErrTypeMismatch, "Register", "node targets take a NodeHandler, got %T", handler)
		}
		return r.RegisterNode(t, fn, args...)
	case node.Feature:
		fn, ok := nodeHandler(handler)
		if !ok {
			return Handle{}, errkind.New(errkind.ErrTypeMismatch, "Register", "node targets take a NodeHandler, got %T", handler)
		}
		return r.RegisterNode(t.Base(), fn, args...)
	case Device:
		fn, ok := deviceHandler(handler)
		if !ok {
			return Handle{}, errkind.New(errkind.ErrTypeMismatch, "Register", "device targets take a DeviceHandler, got %T", handler)
		}
		return r.RegisterDevice(t, fn, args...)
	}
	return Handle{}, errkind.New(errkind.ErrTypeMismatch, "Register", "target must be a node or a device, got %T", target)
}

func nodeHandler(h any) (NodeHandler, bool) {
	switch fn := h.(type) {
	case NodeHandler:
		return fn, fn != nil
	case func(node.Feature, ...any):
		return fn, fn != nil
	}
	return nil, false
}

func deviceHandler(h any) (DeviceHandler, bool) {
	switch fn := h.(type) {
	case DeviceHandler:
		return fn, fn != nil
	case func(*buffer.Buffer, ...any):
		return fn, fn != nil
	}
	return nil, false
}

// RegisterNode registers fn on a node of a device node map. Nodes of
// transport layer node maps are rejected.
func (r *Registry) RegisterNode(n node.Node, fn NodeHandler, args ...any) (Handle, error) {
	const op = "RegisterNode"
	if n.IsZero() {
		return Handle{}, errkind.New(errkind.ErrInvalidArgument, op, "zero node")
	}
	if fn == nil {
		return Handle{}, errkind.New(errkind.ErrInvalidArgument, op, "nil handler")
	}
	if scope := n.Arena().Scope(); scope.TransportLayer() {
		return Handle{}, errkind.New(errkind.ErrInvalidArgument, op,
			"node %s belongs to the %s node map; callbacks are only supported on device nodes", n.Name(), scope)
	}

	k := key{target: nodeTarget{arena: n.Arena(), id: n.ID()}, handler: funcIdentity(fn)}
	reg := &registration{
		key:    k,
		args:   args,
		nodeFn: fn,
		arena:  n.Arena(),
		target: n.Name(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byKey[k]; ok {
		return Handle{}, errkind.New(errkind.ErrAlreadyRegistered, op, "handler already registered on node %s (handle %s)", n.Name(), h)
	}
	token, err := n.Arena().Watch(n.ID(), func(changed node.Node) {
		f, err := node.Cast(changed)
		if err != nil {
			return
		}
		reg.nodeFn(f, reg.args...)
	})
	if err != nil {
		return Handle{}, fmt.Errorf("%s: %w", op, err)
	}
	reg.token = token
	return r.addLocked(reg), nil
}

// RegisterDevice registers fn for buffer arrivals on d.
func (r *Registry) RegisterDevice(d Device, fn DeviceHandler, args ...any) (Handle, error) {
	const op = "RegisterDevice"
	if d == nil || fn == nil {
		return Handle{}, errkind.New(errkind.ErrInvalidArgument, op, "nil device or handler")
	}
	if d.Destroyed() {
		return Handle{}, errkind.New(errkind.ErrIllegalState, op, "device has been destroyed")
	}

	k := key{target: d, handler: funcIdentity(fn)}
	reg := &registration{
		key:    k,
		args:   args,
		devFn:  fn,
		device: d,
		target: fmt.Sprint(d),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byKey[k]; ok {
		return Handle{}, errkind.New(errkind.ErrAlreadyRegistered, op, "handler already registered on device (handle %s)", h)
	}
	reg.cancel = d.SubscribeBuffers(func(b *buffer.Buffer) {
		reg.devFn(b, reg.args...)
	})
	return r.addLocked(reg), nil
}

func (r *Registry) addLocked(reg *registration) Handle {
	h := Handle(uuid.New())
	r.byHandle[h] = reg
	r.byKey[reg.key] = h
	return h
}

// Deregister removes a registration. An unknown handle fails with
// ErrNotFound. When the target was destroyed before the handler was
// deregistered, the registration is dropped and the call fails with
// ErrTargetDestroyed.
func (r *Registry) Deregister(h Handle) error {
	r.mu.Lock()
	reg, ok := r.byHandle[h]
	if !ok {
		r.mu.Unlock()
		return errkind.New(errkind.ErrNotFound, "Deregister", "unknown callback handle %s", h)
	}
	delete(r.byHandle, h)
	delete(r.byKey, reg.key)
	r.mu.Unlock()

	if reg.destroyed() {
		return errkind.New(errkind.ErrTargetDestroyed, "Deregister",
			"target %s was destroyed before handle %s was deregistered; deregister callbacks before destroying their target", reg.target, h)
	}
	reg.release()
	return nil
}

// Registered reports whether h is a live registration.
func (r *Registry) Registered(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byHandle[h]
	return ok
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHandle)
}

// Handles returns all registration handles.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.byHandle))
	for h := range r.byHandle {
		out = append(out, h)
	}
	return out
}

// funcIdentity returns the closure object behind fn. Unlike the code
// pointer it differs for every closure instance.
func funcIdentity[F ~func(node.Feature, ...any) | ~func(*buffer.Buffer, ...any)](fn F) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&fn))
}
