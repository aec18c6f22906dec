package call

import (
	"testing"

	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

func TestMethodDispatchesWithReceiver(t *testing.T) {
	receiver := object.NewObject()
	receiver.AddMemberMove("x", object.NewInt(41), true)

	m := NewMethod(receiver, []object.Type{object.TInt}, func(args []object.Value) (object.Value, error) {
		self := args[0].Obj
		n := args[1].Int
		v, _ := object.Get(self, "x")
		return object.NewInt(v.Int + n), nil
	})

	out, err := Dispatch(m, []object.Value{object.NewInt(1)})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Int != 42 {
		t.Fatalf("got %d, want 42", out.Int)
	}
}

func TestMethodArityMismatch(t *testing.T) {
	receiver := object.NewObject()
	m := NewMethod(receiver, []object.Type{object.TInt}, func([]object.Value) (object.Value, error) {
		return object.Nil, nil
	})
	if _, err := Dispatch(m, nil); !errkind.Is(err, errkind.ArityMismatch) {
		t.Fatalf("got %v, want ArityMismatch", err)
	}
	if _, err := Dispatch(m, []object.Value{object.NewInt(1), object.NewInt(2)}); !errkind.Is(err, errkind.ArityMismatch) {
		t.Fatalf("got %v, want ArityMismatch", err)
	}
}

func TestMethodReceiverDiesWeakly(t *testing.T) {
	receiver := object.NewObject()
	m := NewMethod(receiver, nil, func([]object.Value) (object.Value, error) {
		return object.Nil, nil
	})
	receiver.Destroy()
	if _, err := Dispatch(m, nil); !errkind.Is(err, errkind.Dangling) {
		t.Fatalf("got %v, want Dangling", err)
	}
}

func TestMethodDoesNotKeepReceiverAliveCycle(t *testing.T) {
	receiver := object.NewObject()
	m := NewMethod(receiver, nil, func([]object.Value) (object.Value, error) { return object.Nil, nil })
	// A receiver storing its own method back as a member must not create a
	// strong cycle: the method only holds a weak back-reference.
	if err := receiver.AddMemberMove("self_method", object.NewObjectValue(m), true); err != nil {
		t.Fatalf("add_member_move: %v", err)
	}
	if receiver.RefCount() != 1 {
		t.Fatalf("refcount = %d, want 1 (no cycle contribution from the method's weak receiver)", receiver.RefCount())
	}
}

func TestClosureStrongAndWeakCaptures(t *testing.T) {
	captured := object.NewObject()
	weakTarget := object.NewObject()

	cl, err := NewClosure([]CaptureSpec{
		{Kind: StrongCapture, Value: object.NewObjectValue(captured)},
		{Kind: WeakCapture, Value: object.NewObjectValue(weakTarget)},
	}, []object.Type{object.TInt}, func(args []object.Value) (object.Value, error) {
		if args[0].Obj != captured {
			t.Fatalf("strong capture mismatch")
		}
		if args[1].Obj != weakTarget {
			t.Fatalf("weak capture mismatch")
		}
		return object.NewInt(args[2].Int * 2), nil
	})
	if err != nil {
		t.Fatalf("new_closure: %v", err)
	}
	if captured.RefCount() != 2 {
		t.Fatalf("refcount = %d, want 2 after strong capture", captured.RefCount())
	}

	out, err := Dispatch(cl, []object.Value{object.NewInt(21)})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out.Int != 42 {
		t.Fatalf("got %d, want 42", out.Int)
	}

	cl.Destroy()
	if captured.RefCount() != 1 {
		t.Fatalf("refcount = %d, want 1 after closure destroyed (strong capture freed)", captured.RefCount())
	}
}

func TestClosureWeakCaptureDangling(t *testing.T) {
	target := object.NewObject()
	cl, err := NewClosure([]CaptureSpec{
		{Kind: WeakCapture, Value: object.NewObjectValue(target)},
	}, nil, func(args []object.Value) (object.Value, error) { return object.Nil, nil })
	if err != nil {
		t.Fatalf("new_closure: %v", err)
	}
	target.Destroy()
	if _, err := Dispatch(cl, nil); !errkind.Is(err, errkind.Dangling) {
		t.Fatalf("got %v, want Dangling", err)
	}
}

func TestIntegerOutOfRangeBodyNotEntered(t *testing.T) {
	entered := false
	m := NewMethod(object.NewObject(), []object.Type{object.TNInt}, func([]object.Value) (object.Value, error) {
		entered = true
		return object.Nil, nil
	})
	_, err := Dispatch(m, []object.Value{object.NewUInt(^uint64(0))})
	if !errkind.Is(err, errkind.OutOfRange) {
		t.Fatalf("got %v, want OutOfRange", err)
	}
	if entered {
		t.Fatalf("method body was entered despite OutOfRange conversion failure")
	}
}

func TestByNameResolvesMember(t *testing.T) {
	obj := object.NewObject()
	target := NewMethod(obj, nil, func([]object.Value) (object.Value, error) {
		return object.NewInt(9), nil
	})
	obj.AddMemberRef("greet", object.NewObjectValue(target), false)

	out, err := ByName(obj, "greet", nil)
	if err != nil {
		t.Fatalf("by_name: %v", err)
	}
	if out.Int != 9 {
		t.Fatalf("got %d, want 9", out.Int)
	}

	if _, err := ByName(obj, "missing", nil); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}
