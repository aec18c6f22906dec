package eventloop

import (
	"os"
	"testing"
	"time"

	"github.com/deai-rt/deai/internal/object"
)

func newTestLoop(t *testing.T) (*Loop, *object.Object) {
	t.Helper()
	l, err := New()
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	root := object.NewObject()
	object.DeclareSignal(root, "closing", nil)
	return l, root
}

func TestTimerFiresOnce(t *testing.T) {
	loop, root := newTestLoop(t)
	timer := NewTimer(loop, root, 0.02)

	fired := 0
	handler := object.NewObject()
	handler.SetCall(func(*object.Object, []object.Value) (object.Value, error) {
		fired++
		return object.Nil, nil
	})
	if _, err := object.Listen(timer, "elapsed", handler, false); err != nil {
		t.Fatalf("listen: %v", err)
	}

	if err := loop.Run(150 * time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestPeriodicTicksRepeatedly(t *testing.T) {
	loop, root := newTestLoop(t)
	periodic := NewPeriodic(loop, root, 0.02, 0)

	fired := 0
	handler := object.NewObject()
	handler.SetCall(func(*object.Object, []object.Value) (object.Value, error) {
		fired++
		return object.Nil, nil
	})
	if _, err := object.Listen(periodic, "triggered", handler, false); err != nil {
		t.Fatalf("listen: %v", err)
	}

	if err := loop.Run(110 * time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fired < 4 || fired > 7 {
		t.Fatalf("fired = %d, want roughly 5-6 ticks in 110ms at a 20ms period", fired)
	}
}

func TestFdEventReadAndClose(t *testing.T) {
	loop, root := newTestLoop(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer w.Close()
	defer r.Close()

	fdev := NewFdEvent(loop, root, int(r.Fd()), DirRead)

	reads := 0
	handler := object.NewObject()
	handler.SetCall(func(*object.Object, []object.Value) (object.Value, error) {
		reads++
		buf := make([]byte, 16)
		_, _ = r.Read(buf)
		return object.Nil, nil
	})
	if _, err := object.Listen(fdev, "read", handler, false); err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("hi"))
	}()

	if err := loop.Run(100 * time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	if reads == 0 {
		t.Fatalf("expected at least one read notification")
	}

	closeM, err := object.ResolveCallable(fdev, "close")
	if err != nil {
		t.Fatalf("resolve close: %v", err)
	}
	if _, err := closeM.Call(nil); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLoopBoundObjectReleasedOnRootClosing(t *testing.T) {
	loop, root := newTestLoop(t)
	_ = NewTimer(loop, root, 10)

	if root.RefCount() != 2 {
		t.Fatalf("root refcount = %d, want 2 (test holder + timer's bind)", root.RefCount())
	}

	_ = object.Emit(root, "closing", nil)
	root.Unref()
	if root.RefCount() != 0 {
		t.Fatalf("root refcount = %d, want 0 after closing broadcast released the timer's hold and the test dropped its own", root.RefCount())
	}
}
