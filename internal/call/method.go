package call

import "github.com/deai-rt/deai/internal/object"

// NewMethod builds a callable object binding fn to receiver as an implicit
// first argument. The receiver is always captured weakly (a raw strong
// capture is never offered by this API) so that a method stored back onto
// its own receiver cannot form a reference cycle.
func NewMethod(receiver *object.Object, argTypes []object.Type, fn NativeFunc) *object.Object {
	weak := object.NewWeakRef(receiver)
	m := object.NewObject()
	m.SetTypeName("deai:method")
	m.SetCall(func(_ *object.Object, args []object.Value) (object.Value, error) {
		converted, err := convertArgs(args, argTypes)
		if err != nil {
			return object.Value{}, err
		}
		defer freeAll(converted)

		recv, err := weak.Resolve()
		if err != nil {
			return object.Value{}, err
		}
		full := make([]object.Value, 0, len(converted)+1)
		full = append(full, object.NewObjectValue(recv))
		full = append(full, converted...)
		return fn(full)
	})
	return m
}
