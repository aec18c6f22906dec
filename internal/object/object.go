package object

import (
	"sync/atomic"

	"github.com/deai-rt/deai/internal/errkind"
)

// State is a point in the object destruction state machine. Transitions are
// one-way: Healthy -> Apoptosing -> {Dead, Orphaned} -> Dead.
type State int

const (
	Healthy State = iota
	Apoptosing
	Orphaned
	Dead
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Apoptosing:
		return "apoptosing"
	case Orphaned:
		return "orphaned"
	case Dead:
		return "dead"
	default:
		return "?"
	}
}

// Member is a named, typed slot on an object.
type Member struct {
	Name     string
	Value    Value
	Own      bool // runtime frees Value when the member is removed or the object dies
	Writable bool
}

// CallFunc is the function an object's call slot holds; an object is
// callable iff this is non-nil. It is set up by internal/call's method and
// closure constructors, which embed the full dispatch protocol (arity
// check, per-argument conversion, captured-value prepending) in the
// closure itself — Object only needs to know whether and how to invoke it.
type CallFunc func(self *Object, args []Value) (Value, error)

// Object is the runtime's sole unit of identity: a refcounted, callable,
// event-emitting bag of named members.
type Object struct {
	id uint64

	members map[string]*Member
	signals map[string]*signalSlot

	dtor func(*Object)
	call CallFunc

	refcount int64
	state    State
}

var (
	identityNext uint64
	identity     = map[uint64]*Object{}
)

// OnCreate and OnFinalize are optional observability hooks, wired by root to
// internal/metrics so live object counts are visible without this package
// importing prometheus itself. Both default to no-ops.
var (
	OnCreate   = func() {}
	OnFinalize = func() {}
)

// NewObject returns a Healthy object with refcount 1 and empty member and
// signal maps. sizeHint, if given, pre-sizes the member map; pass 0 for the
// default.
func NewObject(sizeHint ...int) *Object {
	hint := 0
	if len(sizeHint) > 0 {
		hint = sizeHint[0]
	}
	identityNext++
	o := &Object{
		id:       identityNext,
		members:  make(map[string]*Member, hint),
		signals:  make(map[string]*signalSlot),
		refcount: 1,
		state:    Healthy,
	}
	identity[o.id] = o
	OnCreate()
	return o
}

// ID is the object's stable identity, used by weak references and the log
// module's diagnostic tags. It has no bearing on equality of Go pointers.
func (o *Object) ID() uint64 { return o.id }

// State returns the object's current destruction state.
func (o *Object) State() State { return o.state }

// RefCount returns the current strong reference count, for diagnostics and
// tests; callers outside this package must not assume any particular value
// beyond what Ref/Unref/AddMember* document.
func (o *Object) RefCount() int64 { return atomic.LoadInt64(&o.refcount) }

// SetDtor installs the destructor invoked once apoptosis begins.
func (o *Object) SetDtor(fn func(*Object)) { o.dtor = fn }

// SetCall installs the call slot, making the object callable.
func (o *Object) SetCall(fn CallFunc) { o.call = fn }

// Callable reports whether the object has a call slot.
func (o *Object) Callable() bool { return o.call != nil }

// Call invokes the object's call slot with args. It is the single public
// entry point call_by_name (internal/call) and direct dispatch both funnel
// through.
func (o *Object) Call(args []Value) (Value, error) {
	if o.state != Healthy {
		return Value{}, errkind.New(errkind.Destroyed, "call")
	}
	if o.call == nil {
		return Value{}, errkind.New(errkind.NotCallable, "call")
	}
	return o.call(o, args)
}

const typeMemberName = "__type"

// SetTypeName installs the __type member as a borrowed string literal.
func (o *Object) SetTypeName(literal string) {
	o.members[typeMemberName] = &Member{
		Name: typeMemberName, Value: NewStringLiteral(literal), Own: false, Writable: false,
	}
}

// TypeName returns the object's "namespace:type" tag, or "deai:object" if
// none was set.
func (o *Object) TypeName() string {
	if m, ok := o.members[typeMemberName]; ok {
		return m.Value.Str
	}
	return "deai:object"
}

// CheckType reports whether the object's type name equals literal.
func (o *Object) CheckType(literal string) bool { return o.TypeName() == literal }

func (o *Object) addMember(name string, m *Member) error {
	if o.state != Healthy {
		return errkind.New(errkind.Destroyed, "add_member")
	}
	if _, exists := o.members[name]; exists {
		return errkind.New(errkind.AlreadyExists, "add_member")
	}
	o.members[name] = m
	return nil
}

// AddMemberMove transfers ownership of value to the object: value is stored
// as-is, and is freed (Unref'd if an object, deep-freed if a container) when
// the member is removed or the object dies.
func (o *Object) AddMemberMove(name string, value Value, writable bool) error {
	return o.addMember(name, &Member{Name: name, Value: value, Own: true, Writable: writable})
}

// AddMemberRef borrows value without taking ownership: it is stored as-is
// but never freed by this object, even if it names an object or container.
// This is how a destructor or method stores its "weak" back-reference to
// the owning object without the member contributing a strong reference.
func (o *Object) AddMemberRef(name string, value Value, writable bool) error {
	return o.addMember(name, &Member{Name: name, Value: value, Own: false, Writable: writable})
}

// AddMemberClone copies value via Copy and owns the copy: for an object
// value, this increments the refcount and the new strong reference is
// released when the member is removed or the object dies.
func (o *Object) AddMemberClone(name string, value Value, writable bool) error {
	return o.addMember(name, &Member{Name: name, Value: Copy(value), Own: true, Writable: writable})
}

// RemoveMember frees the member's value iff it is owned, then removes it.
func (o *Object) RemoveMember(name string) error {
	if o.state != Healthy {
		return errkind.New(errkind.Destroyed, "remove_member")
	}
	m, ok := o.members[name]
	if !ok {
		return errkind.New(errkind.NotFound, "remove_member")
	}
	if m.Own {
		Free(m.Value)
	}
	delete(o.members, name)
	return nil
}

// Lookup is a raw lookup: no getter is invoked.
func (o *Object) Lookup(name string) (*Member, bool) {
	m, ok := o.members[name]
	return m, ok
}

// Ref acquires a new strong reference.
func (o *Object) Ref() { atomic.AddInt64(&o.refcount, 1) }

// Unref releases a strong reference. Reaching zero triggers final teardown:
// if the object was never explicitly destroyed, apoptosis runs now; if it
// was already Orphaned (destructor ran, a reference kept it alive), it is
// simply finalized with no further destructor call.
func (o *Object) Unref() {
	if atomic.AddInt64(&o.refcount, -1) != 0 {
		return
	}
	switch o.state {
	case Healthy:
		o.apoptosize()
		o.finalize()
	case Orphaned:
		o.finalize()
	case Apoptosing:
		o.finalize()
	case Dead:
		// already finalized (Destroy on the sole reference, or a double
		// unref); nothing left to release.
	}
}

// Destroy initiates apoptosis: Healthy -> Apoptosing, runs the destructor,
// clears listeners, removes all members, then transitions to Dead (if the
// caller's reference was the last one) or Orphaned (otherwise). Calling
// Destroy on a non-Healthy object is a no-op, making it idempotent.
func (o *Object) Destroy() {
	if o.state != Healthy {
		return
	}
	o.apoptosize()
	if atomic.LoadInt64(&o.refcount) <= 1 {
		o.finalize()
	} else {
		o.state = Orphaned
	}
}

func (o *Object) apoptosize() {
	o.state = Apoptosing
	if o.dtor != nil {
		o.dtor(o)
	}
	o.clearListenersLocked()
	for name, m := range o.members {
		if m.Own {
			Free(m.Value)
		}
		delete(o.members, name)
	}
}

func (o *Object) finalize() {
	o.state = Dead
	delete(identity, o.id)
	OnFinalize()
}

// WeakRef is a borrowed identity, resolved through the package-level
// identity table rather than a bare Go pointer: a Go pointer would keep the
// underlying struct reachable (and would not know about apoptosis), while a
// stale identity lookup correctly reports Dangling once the target is Dead.
// Methods capture their receiver this way, and closures capture weak
// captures this way, so that neither can hold a strong reference cycle.
type WeakRef struct {
	id uint64
}

// NewWeakRef borrows o's identity without taking a strong reference.
func NewWeakRef(o *Object) WeakRef { return WeakRef{id: o.id} }

// Resolve dereferences the weak reference, failing with Dangling if the
// target has reached the Dead state (or the reference was never valid).
func (w WeakRef) Resolve() (*Object, error) {
	o, ok := identity[w.id]
	if !ok || o.state == Dead {
		return nil, errkind.New(errkind.Dangling, "weak_ref")
	}
	return o, nil
}
