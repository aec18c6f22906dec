package eventloop

import (
	"time"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/object"
)

// NewPeriodic builds a recurring timer that emits "triggered" (now float)
// every interval seconds, first firing after offset seconds (or after one
// full interval if offset <= 0). Unlike a one-shot timer it stays armed
// across firings until destroyed.
func NewPeriodic(loop *Loop, root *object.Object, interval, offset float64) *object.Object {
	obj := object.NewObject()
	obj.SetTypeName("deai:periodic")
	object.DeclareSignal(obj, "triggered", []object.Type{object.TFloat})

	entry := &timerEntry{}
	curInterval, curOffset := interval, offset

	arm := func() {
		first := curOffset
		if first <= 0 {
			first = curInterval
		}
		entry.deadline = time.Now().Add(time.Duration(first * float64(time.Second)))
		entry.period = time.Duration(curInterval * float64(time.Second))
		entry.fire = func(now float64) {
			_ = object.Emit(obj, "triggered", []object.Value{object.NewFloat(now)})
		}
		loop.addTimer(entry)
	}
	arm()

	stop := func() { loop.removeTimer(entry) }

	set := call.NewMethod(obj, []object.Type{object.TFloat, object.TFloat}, func(args []object.Value) (object.Value, error) {
		curInterval = args[1].Float
		curOffset = args[2].Float
		loop.removeTimer(entry)
		arm()
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("set", object.NewObjectValue(set), false)

	bindToRoot(obj, root, stop)
	return obj
}
