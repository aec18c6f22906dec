package eventloop

import (
	"golang.org/x/sys/unix"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/object"
)

// NewFdEvent wraps an already-open, caller-owned file descriptor as a
// readiness source: "read"/"write" fire per direction, "io" fires once per
// readiness batch with the direction bitmask. It is started (registered with
// the loop) on construction; start/stop/toggle/close control registration.
// Closing the fd itself remains the caller's responsibility.
func NewFdEvent(loop *Loop, root *object.Object, fd int, mask int) *object.Object {
	obj := object.NewObject()
	obj.SetTypeName("deai:fdevent")
	object.DeclareSignal(obj, "read", nil)
	object.DeclareSignal(obj, "write", nil)
	object.DeclareSignal(obj, "io", []object.Type{object.TInt})

	running := false
	reg := &fdReg{fd: fd}
	reg.onReady = func(events uint32) {
		dir := 0
		if events&unix.EPOLLIN != 0 {
			_ = object.Emit(obj, "read", nil)
			dir |= DirRead
		}
		if events&unix.EPOLLOUT != 0 {
			_ = object.Emit(obj, "write", nil)
			dir |= DirWrite
		}
		if dir != 0 {
			_ = object.Emit(obj, "io", []object.Value{object.NewInt(int64(dir))})
		}
	}

	epollMask := func() uint32 {
		var m uint32
		if mask&DirRead != 0 {
			m |= unix.EPOLLIN
		}
		if mask&DirWrite != 0 {
			m |= unix.EPOLLOUT
		}
		return m
	}

	start := func() {
		if running {
			return
		}
		if loop.registerFd(fd, epollMask(), reg) == nil {
			running = true
		}
	}
	stop := func() {
		if !running {
			return
		}
		loop.unregisterFd(fd)
		running = false
	}
	start()

	startM := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) { start(); return object.Nil, nil })
	stopM := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) { stop(); return object.Nil, nil })
	toggleM := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) {
		if running {
			stop()
		} else {
			start()
		}
		return object.Nil, nil
	})
	closeM := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) { stop(); return object.Nil, nil })

	_ = obj.AddMemberRef("start", object.NewObjectValue(startM), false)
	_ = obj.AddMemberRef("stop", object.NewObjectValue(stopM), false)
	_ = obj.AddMemberRef("toggle", object.NewObjectValue(toggleM), false)
	_ = obj.AddMemberRef("close", object.NewObjectValue(closeM), false)

	bindToRoot(obj, root, stop)
	return obj
}
