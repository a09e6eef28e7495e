package node

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// ID addresses a record inside an Arena. The zero ID means "no node".
type ID uint32

// ValueFunc supplies the live value of a bound node.
type ValueFunc func() (any, error)

// CommandFunc runs when a command node is executed.
type CommandFunc func() error

// Arena owns every record of one node map. Relationships between records
// are stored as ID lists, so the graph may contain multiple parents and
// back references without ownership cycles.
//
// The record slice is fixed after construction; only per-record state
// (values, caches, imposed overrides) changes afterwards and is guarded by mu.
type Arena struct {
	mu         sync.RWMutex
	scope      Scope
	deviceName string
	records    []*record
	byName     map[string]ID

	generation   uint64
	paramsLocked bool
	closed       bool

	watchers  map[ID][]watcher
	nextWatch uint64
}

type watcher struct {
	token uint64
	fn    func(Node)
}

type record struct {
	id          ID
	name        string
	typ         InterfaceType
	description string
	displayName string
	toolTip     string
	docuURL     string
	unit        string
	eventID     string
	namespace   Namespace
	caching     CachingMode
	pollingTime time.Duration
	feature     bool
	deprecated  bool

	lockedWhileStreaming bool
	chunkID              uint32

	access            AccessMode
	imposedAccess     AccessMode
	visibility        Visibility
	imposedVisibility Visibility

	// Integer
	imin, imax, iinc         int64
	imposedIMin, imposedIMax *int64
	validValues              []int64

	// Float
	fmin, fmax, finc         float64
	hasInc                   bool
	imposedFMin, imposedFMax *float64
	notation                 DisplayNotation
	precision                int64

	incMode        IncMode
	representation Representation
	maxLength      int64

	// Enumeration and EnumEntry
	entries      []ID
	entryValue   int64
	numericValue float64
	symbolic     string
	selfClearing bool

	// Register
	address int64
	length  int64

	parents     []ID
	children    []ID
	alias       ID
	castAlias   ID
	selecting   []ID
	selected    []ID
	invalidates []ID

	value any
	keyed map[int64]any

	source      ValueFunc
	cached      any
	cacheValid  bool
	pollElapsed time.Duration

	exec CommandFunc
	done bool
}

// NewArena builds the records for defs. References between definitions
// (children, aliases, selectors, invalidators) are resolved by name; a
// dangling reference fails with ErrNotFound.
func NewArena(scope Scope, deviceName string, defs []Definition) (*Arena, error) {
	a := &Arena{
		scope:      scope,
		deviceName: deviceName,
		records:    []*record{nil},
		byName:     make(map[string]ID),
		watchers:   make(map[ID][]watcher),
	}

	for i := range defs {
		d := &defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("%w: node definition %d has no name", errkind.ErrInvalidArgument, i)
		}
		r, err := newRecord(d)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", d.Name, err)
		}
		if err := a.add(r); err != nil {
			return nil, err
		}
		if r.typ != InterfaceEnumeration {
			continue
		}
		for _, e := range d.Entries {
			er, err := newEntryRecord(d.Name, e)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", d.Name, err)
			}
			if err := a.add(er); err != nil {
				return nil, err
			}
			r.entries = append(r.entries, er.id)
			r.children = append(r.children, er.id)
		}
	}

	for i := range defs {
		if err := a.link(&defs[i]); err != nil {
			return nil, fmt.Errorf("node %s: %w", defs[i].Name, err)
		}
	}

	for _, r := range a.records[1:] {
		for _, c := range r.children {
			child := a.records[c]
			child.parents = append(child.parents, r.id)
		}
		for _, s := range r.selected {
			sel := a.records[s]
			sel.selecting = append(sel.selecting, r.id)
		}
	}
	return a, nil
}

func (a *Arena) add(r *record) error {
	if _, dup := a.byName[r.name]; dup {
		return fmt.Errorf("%w: duplicate node name %q", errkind.ErrInvalidArgument, r.name)
	}
	r.id = ID(len(a.records))
	a.records = append(a.records, r)
	a.byName[r.name] = r.id
	return nil
}

func (a *Arena) ref(name string) (ID, error) {
	id, ok := a.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: referenced node %q", errkind.ErrNotFound, name)
	}
	return id, nil
}

func (a *Arena) refs(names []string) ([]ID, error) {
	ids := make([]ID, 0, len(names))
	for _, n := range names {
		id, err := a.ref(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Arena) link(d *Definition) error {
	r := a.records[a.byName[d.Name]]

	children, err := a.refs(d.Children)
	if err != nil {
		return err
	}
	r.children = append(r.children, children...)

	if r.selected, err = a.refs(d.Selected); err != nil {
		return err
	}
	if r.invalidates, err = a.refs(d.Invalidates); err != nil {
		return err
	}
	if d.Alias != "" {
		if r.alias, err = a.ref(d.Alias); err != nil {
			return err
		}
	}
	if d.CastAlias != "" {
		if r.castAlias, err = a.ref(d.CastAlias); err != nil {
			return err
		}
	}

	if r.typ == InterfaceEnumeration {
		if len(r.entries) == 0 {
			return fmt.Errorf("%w: enumeration has no entries", errkind.ErrInvalidArgument)
		}
		r.value = r.entries[0]
		if d.Value != nil {
			e, err := a.entryFor(r, d.Value)
			if err != nil {
				return err
			}
			r.value = e.id
		}
	}
	return nil
}

// entryFor finds the entry of enumeration r matching a symbolic name or an
// integer value.
func (a *Arena) entryFor(r *record, v any) (*record, error) {
	if s, ok := v.(string); ok {
		for _, id := range r.entries {
			if e := a.records[id]; e.symbolic == s {
				return e, nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not an entry of %s", errkind.ErrInvalidValue, s, r.name)
	}
	iv, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	for _, id := range r.entries {
		if e := a.records[id]; e.entryValue == iv {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %d is not an entry value of %s", errkind.ErrInvalidValue, iv, r.name)
}

// Scope returns the node map scope this arena belongs to.
func (a *Arena) Scope() Scope { return a.scope }

// DeviceName returns the name of the device that owns the node map.
func (a *Arena) DeviceName() string { return a.deviceName }

// Len returns the number of records, enumeration entries included.
func (a *Arena) Len() int { return len(a.records) - 1 }

// Lookup returns the node with the given name.
func (a *Arena) Lookup(name string) (Node, bool) {
	id, ok := a.byName[name]
	if !ok {
		return Node{}, false
	}
	return Node{arena: a, id: id}, true
}

// Node returns the view for id, or false when id is out of range.
func (a *Arena) Node(id ID) (Node, bool) {
	if id == 0 || int(id) >= len(a.records) {
		return Node{}, false
	}
	return Node{arena: a, id: id}, true
}

// Nodes returns every node in index order.
func (a *Arena) Nodes() []Node {
	out := make([]Node, 0, len(a.records)-1)
	for _, r := range a.records[1:] {
		out = append(out, Node{arena: a, id: r.id})
	}
	return out
}

// Generation returns the invalidation generation.
func (a *Arena) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// Closed reports whether the owning device has been destroyed.
func (a *Arena) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Close marks the arena destroyed. Node accessors fail with ErrIllegalState
// afterwards and all watchers are dropped.
func (a *Arena) Close() {
	a.mu.Lock()
	a.closed = true
	a.watchers = make(map[ID][]watcher)
	a.mu.Unlock()
}

// Bind attaches a live value source to a node. Reads call fn unless the
// node caches and its cache is still valid.
func (a *Arena) Bind(id ID, fn ValueFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r := a.lookupID(id); r != nil {
		r.source = fn
		r.cacheValid = false
	}
}

// HandleCommand attaches the handler run by Command.Execute.
func (a *Arena) HandleCommand(id ID, fn CommandFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r := a.lookupID(id); r != nil {
		r.exec = fn
	}
}

// Watch registers fn to run whenever the node is invalidated. fn runs
// outside the arena lock on the goroutine that caused the invalidation.
func (a *Arena) Watch(id ID, fn func(Node)) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.recordLocked(id); err != nil {
		return 0, err
	}
	a.nextWatch++
	a.watchers[id] = append(a.watchers[id], watcher{token: a.nextWatch, fn: fn})
	return a.nextWatch, nil
}

// Unwatch removes a watcher. It reports whether the token was known.
func (a *Arena) Unwatch(token uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ws := range a.watchers {
		for i, w := range ws {
			if w.token == token {
				a.watchers[id] = append(ws[:i:i], ws[i+1:]...)
				if len(a.watchers[id]) == 0 {
					delete(a.watchers, id)
				}
				return true
			}
		}
	}
	return false
}

// InvalidateAll drops every cached value and notifies all watchers.
func (a *Arena) InvalidateAll() {
	a.mu.Lock()
	a.generation++
	ids := make([]ID, 0, len(a.watchers))
	for _, r := range a.records[1:] {
		r.cacheValid = false
		ids = append(ids, r.id)
	}
	calls := a.collectLocked(ids)
	a.mu.Unlock()
	a.notify(calls)
}

// Poll advances the polling clocks of all nodes that declare a polling
// time. Nodes whose interval elapsed are invalidated.
func (a *Arena) Poll(elapsed time.Duration) []ID {
	a.mu.Lock()
	a.generation++
	var due []ID
	for _, r := range a.records[1:] {
		if r.pollingTime <= 0 {
			continue
		}
		r.pollElapsed += elapsed
		if r.pollElapsed >= r.pollingTime {
			r.pollElapsed %= r.pollingTime
			r.cacheValid = false
			due = append(due, r.id)
		}
	}
	calls := a.collectLocked(due)
	a.mu.Unlock()
	a.notify(calls)
	return due
}

// SetParamsLocked toggles the lock on nodes flagged as locked while
// streaming. Locked nodes report at most read access.
func (a *Arena) SetParamsLocked(locked bool) {
	a.mu.Lock()
	if a.paramsLocked == locked {
		a.mu.Unlock()
		return
	}
	a.paramsLocked = locked
	var ids []ID
	for _, r := range a.records[1:] {
		if r.lockedWhileStreaming {
			ids = append(ids, r.id)
		}
	}
	calls := a.collectLocked(ids)
	a.mu.Unlock()
	a.notify(calls)
}

// ParamsLocked reports whether payload-layout nodes are locked.
func (a *Arena) ParamsLocked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paramsLocked
}

// Update writes v as the device-side value of a node, bypassing access
// mode and range checks. It is the path used by device events and
// transport-layer statistics.
func (a *Arena) Update(id ID, v any) error {
	a.mu.Lock()
	r, err := a.recordLocked(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	nv, err := a.normalizeLocked(r, v)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.storeLocked(r, nv)
	calls := a.collectLocked(a.affectedLocked(r))
	a.mu.Unlock()
	a.notify(calls)
	return nil
}

func (a *Arena) lookupID(id ID) *record {
	if id == 0 || int(id) >= len(a.records) {
		return nil
	}
	return a.records[id]
}

func (a *Arena) recordLocked(id ID) (*record, error) {
	if a.closed {
		return nil, fmt.Errorf("%w: node map of %s has been destroyed", errkind.ErrIllegalState, a.scope)
	}
	r := a.lookupID(id)
	if r == nil {
		return nil, fmt.Errorf("%w: node id %d", errkind.ErrNotFound, id)
	}
	return r, nil
}

func (a *Arena) accessLocked(r *record) AccessMode {
	m := combineAccess(r.access, r.imposedAccess)
	if a.paramsLocked && r.lockedWhileStreaming && m.Writable() {
		m = combineAccess(m, AccessRO)
	}
	return m
}

func (a *Arena) visibilityLocked(r *record) Visibility {
	if r.imposedVisibility != VisibilityUndefined && r.imposedVisibility > r.visibility {
		return r.imposedVisibility
	}
	return r.visibility
}

func accessError(op string, r *record, m AccessMode, want string) error {
	switch m {
	case AccessNI:
		return errkind.New(errkind.ErrNotImplemented, op, "node %s is not implemented", r.name)
	case AccessNA:
		return errkind.New(errkind.ErrNotAvailable, op, "node %s is not available", r.name)
	}
	return errkind.New(errkind.ErrNotAvailable, op, "node %s is not %s (access mode %s)", r.name, want, m)
}

func (a *Arena) readableLocked(op string, r *record) error {
	if m := a.accessLocked(r); !m.Readable() {
		return accessError(op, r, m, "readable")
	}
	return nil
}

func (a *Arena) writableLocked(op string, r *record) error {
	if m := a.accessLocked(r); !m.Writable() {
		return accessError(op, r, m, "writable")
	}
	return nil
}

// selectorKey returns the current integer value of the first selector of
// r. Selected nodes keep one value per selector key.
func (a *Arena) selectorKey(r *record) (int64, bool) {
	if len(r.selecting) == 0 {
		return 0, false
	}
	s := a.records[r.selecting[0]]
	switch v := a.slotLocked(s).(type) {
	case ID:
		return a.records[v].entryValue, true
	case int64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, true
}

func (a *Arena) slotLocked(r *record) any {
	if key, ok := a.selectorKey(r); ok {
		if v, ok := r.keyed[key]; ok {
			return v
		}
	}
	return r.value
}

func (a *Arena) storeLocked(r *record, v any) {
	if key, ok := a.selectorKey(r); ok {
		if r.keyed == nil {
			r.keyed = make(map[int64]any)
		}
		r.keyed[key] = v
	} else {
		r.value = v
	}
	if r.source != nil {
		r.cached = v
		r.cacheValid = r.caching == CachingWriteThrough
	}
}

// affectedLocked lists the nodes whose observable state changes when r is
// written: r itself, the nodes it invalidates and the nodes it selects.
func (a *Arena) affectedLocked(r *record) []ID {
	ids := []ID{r.id}
	ids = append(ids, r.invalidates...)
	ids = append(ids, r.selected...)
	for _, id := range r.invalidates {
		a.records[id].cacheValid = false
	}
	return ids
}

type notification struct {
	node Node
	fns  []func(Node)
}

func (a *Arena) collectLocked(ids []ID) []notification {
	var out []notification
	for _, id := range ids {
		ws := a.watchers[id]
		if len(ws) == 0 {
			continue
		}
		fns := make([]func(Node), len(ws))
		for i, w := range ws {
			fns[i] = w.fn
		}
		out = append(out, notification{node: Node{arena: a, id: id}, fns: fns})
	}
	return out
}

// notify runs watcher callbacks. Panics are not recovered.
func (a *Arena) notify(calls []notification) {
	for _, c := range calls {
		for _, fn := range c.fns {
			fn(c.node)
		}
	}
}

// read returns the current value of a readable node.
func (a *Arena) read(op string, id ID) (any, error) {
	a.mu.Lock()
	r, err := a.recordLocked(id)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	if err := a.readableLocked(op, r); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	if r.source == nil {
		v := a.slotLocked(r)
		a.mu.Unlock()
		return v, nil
	}
	if r.cacheValid && r.caching != CachingNoCache {
		v := r.cached
		a.mu.Unlock()
		return v, nil
	}
	src := r.source
	a.mu.Unlock()

	raw, err := src()
	if err != nil {
		return nil, fmt.Errorf("%s: node %s: %w", op, r.name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.normalizeLocked(r, raw)
	if err != nil {
		return nil, err
	}
	r.cached = v
	r.cacheValid = true
	return v, nil
}

// write validates and stores a value. check runs under the lock with the
// record and must return the normalized value to store.
func (a *Arena) write(op string, id ID, check func(r *record) (any, error)) error {
	a.mu.Lock()
	r, err := a.recordLocked(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if err := a.writableLocked(op, r); err != nil {
		a.mu.Unlock()
		return err
	}
	v, err := check(r)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.storeLocked(r, v)
	calls := a.collectLocked(a.affectedLocked(r))
	a.mu.Unlock()
	a.notify(calls)
	return nil
}

func (a *Arena) execute(op string, id ID) error {
	a.mu.Lock()
	r, err := a.recordLocked(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	if err := a.writableLocked(op, r); err != nil {
		a.mu.Unlock()
		return err
	}
	r.done = false
	fn := r.exec
	a.mu.Unlock()

	var runErr error
	if fn != nil {
		runErr = fn()
	}

	a.mu.Lock()
	r.done = true
	calls := a.collectLocked(a.affectedLocked(r))
	a.mu.Unlock()
	a.notify(calls)
	if runErr != nil {
		return fmt.Errorf("%s: node %s: %w", op, r.name, runErr)
	}
	return nil
}

// normalizeLocked converts v to the storage type of r.
func (a *Arena) normalizeLocked(r *record, v any) (any, error) {
	switch r.typ {
	case InterfaceInteger:
		return toInt64(v)
	case InterfaceFloat:
		return toFloat64(v)
	case InterfaceBoolean:
		return toBool(v)
	case InterfaceString:
		return toString(v)
	case InterfaceRegister:
		return toBytes(v)
	case InterfaceEnumeration:
		if id, ok := v.(ID); ok {
			return id, nil
		}
		e, err := a.entryFor(r, v)
		if err != nil {
			return nil, err
		}
		return e.id, nil
	}
	return nil, fmt.Errorf("%w: node %s of type %s holds no value", errkind.ErrTypeMismatch, r.name, r.typ)
}

func (a *Arena) intBoundsLocked(r *record) (int64, int64) {
	lo, hi := r.imin, r.imax
	if r.imposedIMin != nil && *r.imposedIMin > lo {
		lo = *r.imposedIMin
	}
	if r.imposedIMax != nil && *r.imposedIMax < hi {
		hi = *r.imposedIMax
	}
	return lo, hi
}

func (a *Arena) floatBoundsLocked(r *record) (float64, float64) {
	lo, hi := r.fmin, r.fmax
	if r.imposedFMin != nil && *r.imposedFMin > lo {
		lo = *r.imposedFMin
	}
	if r.imposedFMax != nil && *r.imposedFMax < hi {
		hi = *r.imposedFMax
	}
	return lo, hi
}

func newRecord(d *Definition) (*record, error) {
	typ, err := ParseInterfaceType(d.Type)
	if err != nil {
		return nil, err
	}
	if typ == InterfaceEnumEntry {
		return nil, fmt.Errorf("%w: enumeration entries are declared inside their enumeration", errkind.ErrInvalidArgument)
	}

	r := &record{
		name:                 d.Name,
		typ:                  typ,
		description:          d.Description,
		displayName:          d.DisplayName,
		toolTip:              d.ToolTip,
		docuURL:              d.DocuURL,
		unit:                 d.Unit,
		eventID:              d.EventID,
		feature:              d.Feature,
		deprecated:           d.Deprecated,
		lockedWhileStreaming: d.LockedWhileStreaming,
		chunkID:              d.ChunkID,
		pollingTime:          time.Duration(d.PollingTime) * time.Millisecond,
		access:               AccessRW,
		imposedAccess:        AccessUndefined,
		visibility:           VisibilityBeginner,
		imposedVisibility:    VisibilityUndefined,
		caching:              CachingWriteThrough,
		namespace:            NamespaceStandard,
		representation:       RepresentationPureNumber,
		notation:             NotationAutomatic,
		precision:            d.DisplayPrecision,
		maxLength:            d.MaxLength,
		address:              d.Address,
		length:               d.Length,
	}
	if r.displayName == "" {
		r.displayName = d.Name
	}
	if err := parseMeta(d, r); err != nil {
		return nil, err
	}

	switch typ {
	case InterfaceInteger:
		err = initInteger(d, r)
	case InterfaceFloat:
		err = initFloat(d, r)
	case InterfaceBoolean:
		r.value = false
		if d.Value != nil {
			r.value, err = toBool(d.Value)
		}
	case InterfaceString:
		r.value = ""
		if d.Value != nil {
			r.value, err = toString(d.Value)
		}
		if r.maxLength == 0 {
			r.maxLength = 1024
		}
	case InterfaceRegister:
		var b []byte
		if d.Value != nil {
			if b, err = toBytes(d.Value); err != nil {
				break
			}
		}
		if r.length == 0 {
			r.length = int64(len(b))
		}
		buf := make([]byte, r.length)
		copy(buf, b)
		r.value = buf
	case InterfaceCommand:
		r.done = true
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func parseMeta(d *Definition, r *record) error {
	var err error
	if d.Access != "" {
		if r.access, err = ParseAccessMode(d.Access); err != nil {
			return err
		}
	}
	if d.Visibility != "" {
		if r.visibility, err = ParseVisibility(d.Visibility); err != nil {
			return err
		}
	}
	if d.Caching != "" {
		if r.caching, err = ParseCachingMode(d.Caching); err != nil {
			return err
		}
	}
	if d.Namespace != "" {
		if r.namespace, err = ParseNamespace(d.Namespace); err != nil {
			return err
		}
	}
	if d.Representation != "" {
		if r.representation, err = ParseRepresentation(d.Representation); err != nil {
			return err
		}
	}
	if d.DisplayNotation != "" {
		if r.notation, err = ParseDisplayNotation(d.DisplayNotation); err != nil {
			return err
		}
	}
	return nil
}

func initInteger(d *Definition, r *record) error {
	var err error
	r.imin, r.imax, r.iinc = math.MinInt64, math.MaxInt64, 1
	if d.Min != nil {
		if r.imin, err = toInt64(d.Min); err != nil {
			return err
		}
	}
	if d.Max != nil {
		if r.imax, err = toInt64(d.Max); err != nil {
			return err
		}
	}
	if r.imin > r.imax {
		return fmt.Errorf("%w: min %d greater than max %d", errkind.ErrInvalidArgument, r.imin, r.imax)
	}
	switch {
	case len(d.ValidValues) > 0:
		r.incMode = IncModeList
		r.validValues = append([]int64(nil), d.ValidValues...)
	case d.Inc != nil:
		r.incMode = IncModeFixed
		if r.iinc, err = toInt64(d.Inc); err != nil {
			return err
		}
		if r.iinc <= 0 {
			return fmt.Errorf("%w: increment %d must be positive", errkind.ErrInvalidArgument, r.iinc)
		}
	}
	if d.IncMode != "" {
		if r.incMode, err = ParseIncMode(d.IncMode); err != nil {
			return err
		}
	}
	v := int64(0)
	if d.Value != nil {
		if v, err = toInt64(d.Value); err != nil {
			return err
		}
	}
	r.value = min(max(v, r.imin), r.imax)
	return nil
}

func initFloat(d *Definition, r *record) error {
	var err error
	r.fmin, r.fmax = -math.MaxFloat64, math.MaxFloat64
	if d.Min != nil {
		if r.fmin, err = toFloat64(d.Min); err != nil {
			return err
		}
	}
	if d.Max != nil {
		if r.fmax, err = toFloat64(d.Max); err != nil {
			return err
		}
	}
	if r.fmin > r.fmax {
		return fmt.Errorf("%w: min %g greater than max %g", errkind.ErrInvalidArgument, r.fmin, r.fmax)
	}
	if d.Inc != nil {
		if r.finc, err = toFloat64(d.Inc); err != nil {
			return err
		}
		if r.finc <= 0 {
			return fmt.Errorf("%w: increment %g must be positive", errkind.ErrInvalidArgument, r.finc)
		}
		r.hasInc = true
		r.incMode = IncModeFixed
	}
	if d.IncMode != "" {
		if r.incMode, err = ParseIncMode(d.IncMode); err != nil {
			return err
		}
	}
	v := 0.0
	if d.Value != nil {
		if v, err = toFloat64(d.Value); err != nil {
			return err
		}
	}
	r.value = min(max(v, r.fmin), r.fmax)
	return nil
}

func newEntryRecord(enumeration string, e EntryDefinition) (*record, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%w: enumeration entry has no name", errkind.ErrInvalidArgument)
	}
	r := &record{
		name:              EntryNodeName(enumeration, e.Name),
		typ:               InterfaceEnumEntry,
		description:       e.Description,
		displayName:       e.DisplayName,
		symbolic:          e.Name,
		entryValue:        e.Value,
		numericValue:      e.NumericValue,
		selfClearing:      e.SelfClearing,
		access:            AccessRO,
		imposedAccess:     AccessUndefined,
		visibility:        VisibilityBeginner,
		imposedVisibility: VisibilityUndefined,
		caching:           CachingWriteThrough,
		namespace:         NamespaceStandard,
	}
	if r.displayName == "" {
		r.displayName = e.Name
	}
	if e.NumericValue == 0 {
		r.numericValue = float64(e.Value)
	}
	if e.Access != "" {
		var err error
		if r.access, err = ParseAccessMode(e.Access); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// inspect runs fn under the read lock after checking the node is neither
// NI nor NA. It serves metadata that is only meaningful for present nodes.
func (a *Arena) inspect(op string, id ID, fn func(r *record)) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, err := a.recordLocked(id)
	if err != nil {
		return err
	}
	if m := a.accessLocked(r); m == AccessNI || m == AccessNA {
		return accessError(op, r, m, "present")
	}
	fn(r)
	return nil
}

// mutate changes local per-record state and notifies watchers of the node.
func (a *Arena) mutate(id ID, fn func(r *record)) error {
	a.mu.Lock()
	r, err := a.recordLocked(id)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	fn(r)
	calls := a.collectLocked([]ID{id})
	a.mu.Unlock()
	a.notify(calls)
	return nil
}
