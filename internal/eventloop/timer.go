package eventloop

import (
	"time"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/object"
)

// NewTimer builds a one-shot timer object armed for timeoutSeconds. It emits
// "elapsed" (now float) exactly once, then stops: calling again re-arms it.
func NewTimer(loop *Loop, root *object.Object, timeoutSeconds float64) *object.Object {
	obj := object.NewObject()
	obj.SetTypeName("deai:timer")
	object.DeclareSignal(obj, "elapsed", []object.Type{object.TFloat})

	entry := &timerEntry{}
	arm := func(timeout float64) {
		entry.deadline = time.Now().Add(time.Duration(timeout * float64(time.Second)))
		entry.period = 0
		entry.fire = func(now float64) {
			_ = object.Emit(obj, "elapsed", []object.Value{object.NewFloat(now)})
		}
		loop.addTimer(entry)
	}
	arm(timeoutSeconds)

	stop := func() { loop.removeTimer(entry) }

	again := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) {
		loop.removeTimer(entry)
		arm(timeoutSeconds)
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("again", object.NewObjectValue(again), false)

	setTimeout := call.NewMethod(obj, []object.Type{object.TFloat}, func(args []object.Value) (object.Value, error) {
		timeoutSeconds = args[1].Float
		loop.removeTimer(entry)
		arm(timeoutSeconds)
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("__set_timeout", object.NewObjectValue(setTimeout), false)

	bindToRoot(obj, root, stop)
	return obj
}
