package object

import "testing"

func nativeHandler(fn func(args []Value) (Value, error)) *Object {
	o := NewObject()
	o.SetCall(func(_ *Object, args []Value) (Value, error) { return fn(args) })
	return o
}

func TestListenerOrderingAndStop(t *testing.T) {
	src := NewObject()
	var order []int

	h1 := nativeHandler(func([]Value) (Value, error) { order = append(order, 1); return Nil, nil })
	h2 := nativeHandler(func([]Value) (Value, error) { order = append(order, 2); return Nil, nil })

	l1, _ := Listen(src, "ping", h1, false)
	_, _ = Listen(src, "ping", h2, false)

	if err := Emit(src, "ping", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("got order %v, want [1 2]", order)
	}

	_ = StopListener(l1)
	order = nil
	if err := Emit(src, "ping", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("got order %v after stop, want [2]", order)
	}
}

func TestOnceListenerFiresAtMostOnce(t *testing.T) {
	src := NewObject()
	calls := 0
	h := nativeHandler(func([]Value) (Value, error) { calls++; return Nil, nil })
	Listen(src, "fire", h, true)
	Emit(src, "fire", nil)
	Emit(src, "fire", nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestListenerRegisteredDuringEmissionSkipsInFlight(t *testing.T) {
	src := NewObject()
	var secondFired bool
	h2 := nativeHandler(func([]Value) (Value, error) { secondFired = true; return Nil, nil })
	h1 := nativeHandler(func([]Value) (Value, error) {
		Listen(src, "ev", h2, false)
		return Nil, nil
	})
	Listen(src, "ev", h1, false)
	Emit(src, "ev", nil)
	if secondFired {
		t.Fatalf("listener added during emission fired in the same round")
	}
	secondFired = false
	Emit(src, "ev", nil)
	if !secondFired {
		t.Fatalf("listener added during prior emission never fires on next emission")
	}
}

func TestListenerStoppedMidEmissionStillFiresThisRound(t *testing.T) {
	src := NewObject()
	var l2fired bool
	var l2 *Listener
	h2 := nativeHandler(func([]Value) (Value, error) { l2fired = true; return Nil, nil })
	h1 := nativeHandler(func([]Value) (Value, error) {
		_ = StopListener(l2)
		return Nil, nil
	})
	Listen(src, "ev", h1, false)
	l2, _ = Listen(src, "ev", h2, false)

	if err := Emit(src, "ev", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !l2fired {
		t.Fatalf("listener stopped mid-emission by an earlier handler must still fire for the in-flight round")
	}

	l2fired = false
	if err := Emit(src, "ev", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if l2fired {
		t.Fatalf("listener stopped last round must not fire on a later emission")
	}
}

func TestClearListenersCallsDetachStopListenerDoesNot(t *testing.T) {
	src := NewObject()
	h := NewObject()
	h.SetCall(func(*Object, []Value) (Value, error) { return Nil, nil })
	detachCalls := 0
	detach := nativeHandler(func([]Value) (Value, error) { detachCalls++; return Nil, nil })
	h.AddMemberRef("__detach", NewObjectValue(detach), false)

	l, _ := Listen(src, "sig", h, false)
	_ = StopListener(l)
	if detachCalls != 0 {
		t.Fatalf("stop_listener invoked __detach, want silent")
	}

	h2 := NewObject()
	h2.SetCall(func(*Object, []Value) (Value, error) { return Nil, nil })
	detach2Calls := 0
	detach2 := nativeHandler(func([]Value) (Value, error) { detach2Calls++; return Nil, nil })
	h2.AddMemberRef("__detach", NewObjectValue(detach2), false)
	Listen(src, "sig", h2, false)
	ClearListeners(src)
	if detach2Calls != 1 {
		t.Fatalf("clear_listeners called __detach %d times, want 1", detach2Calls)
	}
}

func TestGetSetProtocol(t *testing.T) {
	o := NewObject()
	var recordedSet Value
	getter := nativeHandler(func([]Value) (Value, error) { return NewInt(7), nil })
	setter := nativeHandler(func(args []Value) (Value, error) {
		recordedSet = args[0]
		return Nil, nil
	})
	o.AddMemberRef("__get_x", NewObjectValue(getter), false)
	o.AddMemberRef("__set_x", NewObjectValue(setter), false)

	v, err := Get(o, "x")
	if err != nil || v.Int != 7 {
		t.Fatalf("get x = %v, %v, want 7", v, err)
	}
	if err := Set(o, "x", NewInt(9)); err != nil {
		t.Fatalf("set x: %v", err)
	}
	if recordedSet.Int != 9 {
		t.Fatalf("recorded set = %v, want 9", recordedSet)
	}
}

func TestGenericGetSet(t *testing.T) {
	o := NewObject()
	store := map[string]Value{}
	getAll := nativeHandler(func(args []Value) (Value, error) {
		return store[args[0].Str], nil
	})
	setAll := nativeHandler(func(args []Value) (Value, error) {
		store[args[0].Str] = args[1]
		return Nil, nil
	})
	o.AddMemberRef("__get", NewObjectValue(getAll), false)
	o.AddMemberRef("__set", NewObjectValue(setAll), false)

	if err := Set(o, "anything", NewInt(5)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := Get(o, "anything")
	if err != nil || v.Int != 5 {
		t.Fatalf("get = %v, %v, want 5", v, err)
	}
}
