// Package call implements the call protocol (C4): typed method and closure
// objects, dynamic argument conversion, and the two public entry points
// (direct dispatch, call_by_name) every other component invokes a callable
// through.
//
// The source runtime assembles calls with a runtime FFI keyed by a type
// vector; here each method or closure instead binds one Go function together
// with its declared argument types, and convertArgs checks and converts the
// arguments against those types on every call, without an external FFI
// dependency.
package call

import (
	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

// NativeFunc is the underlying native function a method or closure invokes
// once its arguments have been converted and its captures/receiver
// prepended.
type NativeFunc func(args []object.Value) (object.Value, error)

// Dispatch is the bare call entry point: obj must be callable.
func Dispatch(obj *object.Object, args []object.Value) (object.Value, error) {
	return obj.Call(args)
}

// ByName resolves name on obj through the member protocol (C5) and invokes
// the result, failing NotFound if neither a member nor a generic getter
// yields a callable.
func ByName(obj *object.Object, name string, args []object.Value) (object.Value, error) {
	target, err := object.ResolveCallable(obj, name)
	if errkind.Is(err, errkind.NotCallable) {
		return object.Value{}, errkind.New(errkind.NotFound, "call_by_name")
	}
	if err != nil {
		return object.Value{}, err
	}
	return target.Call(args)
}

// convertArgs converts each positional argument to its expected type,
// returning ArityMismatch on a count disagreement and the first conversion
// failure (OutOfRange/TypeMismatch) otherwise. nil-filling for an argument
// passed as nil is handled inside object.Convert itself.
func convertArgs(args []object.Value, argTypes []object.Type) ([]object.Value, error) {
	if len(args) != len(argTypes) {
		return nil, errkind.New(errkind.ArityMismatch, "call")
	}
	out := make([]object.Value, len(args))
	for i, a := range args {
		cv, err := object.Convert(a, argTypes[i])
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func freeAll(vs []object.Value) {
	for _, v := range vs {
		object.Free(v)
	}
}
