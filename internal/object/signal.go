package object

import "github.com/deai-rt/deai/internal/errkind"

// ErrorSink receives errors returned by listener handlers during Emit: one
// failing listener must not prevent others from receiving the event, so the
// error is logged here and otherwise swallowed. Root wires this to
// internal/log; the default drops errors silently so tests don't need a
// logger.
var ErrorSink = func(err error) {}

// OnListen and OnStopListener are optional observability hooks, wired by
// root to internal/metrics. Both default to no-ops.
var (
	OnListen       = func() {}
	OnStopListener = func() {}
)

type signalSlot struct {
	name      string
	listeners []*Listener
	argTypes  []Type // set by DeclareSignal; nil if undeclared
}

// Listener is a subscription tying a handler object to a signal on a source
// object.
type Listener struct {
	Source  *Object
	Name    string
	Handler *Object
	Once    bool
	attached bool
}

// DebugSignalChecks gates the early arity check described in spec §3: when
// true (the default, matching a debug build), Emit rejects an argument
// count that disagrees with what DeclareSignal declared for the slot.
var DebugSignalChecks = true

// DeclareSignal fixes the expected argument count for name before any
// listener subscribes, letting Emit fail fast on a mismatch. Calling it
// twice for the same name is a no-op.
func DeclareSignal(obj *Object, name string, argTypes []Type) {
	if _, ok := obj.signals[name]; ok {
		return
	}
	obj.signals[name] = &signalSlot{name: name, argTypes: argTypes}
}

// Listen subscribes handler to obj's name signal. On the object's first
// listener for name, __add_listener_<name> is invoked if present, letting
// the object lazily subscribe to an underlying OS resource.
func Listen(obj *Object, name string, handler *Object, once bool) (*Listener, error) {
	if obj.state != Healthy {
		return nil, errkind.New(errkind.Destroyed, "listen")
	}
	slot, ok := obj.signals[name]
	if !ok {
		slot = &signalSlot{name: name}
		obj.signals[name] = slot
	}
	wasEmpty := len(slot.listeners) == 0

	l := &Listener{Source: obj, Name: name, Handler: handler, Once: once, attached: true}
	handler.Ref()
	slot.listeners = append(slot.listeners, l)

	if wasEmpty {
		invokeHook(obj, "__add_listener_"+name)
	}
	OnListen()
	return l, nil
}

// StopListener removes l from its slot. When the slot becomes empty,
// __del_listener_<name> is invoked if present. Unlike ClearListeners, the
// handler's __detach slot is NOT called: an explicit stop is silent to the
// handler.
func StopListener(l *Listener) error {
	if l == nil || !l.attached {
		return nil
	}
	slot, ok := l.Source.signals[l.Name]
	if !ok {
		return errkind.New(errkind.NotFound, "stop_listener")
	}
	removeListener(slot, l)
	l.attached = false
	l.Handler.Unref()
	OnStopListener()

	if len(slot.listeners) == 0 {
		invokeHook(l.Source, "__del_listener_"+l.Name)
	}
	return nil
}

func removeListener(slot *signalSlot, l *Listener) {
	for i, cur := range slot.listeners {
		if cur == l {
			slot.listeners = append(slot.listeners[:i], slot.listeners[i+1:]...)
			return
		}
	}
}

// Emit dispatches args to every listener subscribed to name, in insertion
// order, over a snapshot taken before iteration begins: a listener
// registered during this emission is not invoked for it, while one removed
// mid-emission still is, provided it had not yet been reached.
func Emit(obj *Object, name string, args []Value) error {
	if obj.state != Healthy {
		return errkind.New(errkind.Destroyed, "emit")
	}
	slot, ok := obj.signals[name]
	if !ok {
		return nil
	}
	if DebugSignalChecks && slot.argTypes != nil && len(slot.argTypes) != len(args) {
		return errkind.New(errkind.ArityMismatch, "emit")
	}

	snapshot := make([]*Listener, len(slot.listeners))
	copy(snapshot, slot.listeners)

	for _, l := range snapshot {
		// No attached check here: the snapshot is the contract. A listener
		// stopped by an earlier handler in this same emission was already in
		// the snapshot and has not yet been reached, so it still fires —
		// only a listener removed before this Emit even started is absent,
		// and that's handled by taking the snapshot up front. A dead handler
		// simply fails its Call with Destroyed, reported through ErrorSink.
		if _, err := l.Handler.Call(args); err != nil {
			ErrorSink(err)
		}
		if l.Once {
			_ = StopListener(l)
		}
	}
	return nil
}

// ClearListeners detaches every listener on obj, calling each one's
// __detach slot (if present) before removal. This is the path Destroy uses
// internally, and is also a directly callable operation.
func ClearListeners(obj *Object) {
	for name, slot := range obj.signals {
		snapshot := make([]*Listener, len(slot.listeners))
		copy(snapshot, slot.listeners)
		for _, l := range snapshot {
			if !l.attached {
				continue
			}
			invokeDetach(l.Handler)
			l.attached = false
			l.Handler.Unref()
			OnStopListener()
		}
		delete(obj.signals, name)
	}
}

func (o *Object) clearListenersLocked() { ClearListeners(o) }

func invokeHook(obj *Object, slot string) {
	m, ok := obj.members[slot]
	if !ok || m.Value.Type != TObject || m.Value.Obj == nil || !m.Value.Obj.Callable() {
		return
	}
	if _, err := m.Value.Obj.Call(nil); err != nil {
		ErrorSink(err)
	}
}

func invokeDetach(handler *Object) {
	m, ok := handler.members["__detach"]
	if !ok || m.Value.Type != TObject || m.Value.Obj == nil || !m.Value.Obj.Callable() {
		return
	}
	if _, err := m.Value.Obj.Call(nil); err != nil {
		ErrorSink(err)
	}
}
