package call

import (
	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

// CaptureKind selects how a closure holds a pre-captured value.
type CaptureKind int

const (
	// StrongCapture clones the value at construction (via object.Copy) and
	// owns the clone: for an object value this takes a strong reference,
	// released when the closure is destroyed.
	StrongCapture CaptureKind = iota
	// WeakCapture borrows an object's identity without taking a reference;
	// it is dereferenced through the identity table at call time and fails
	// with Dangling if the target has died. Only object-typed values can be
	// captured weakly.
	WeakCapture
)

// CaptureSpec describes one pre-captured value a closure binds.
type CaptureSpec struct {
	Kind  CaptureKind
	Value object.Value
}

// NewClosure builds a callable object binding fn to a vector of pre-captured
// values (strong or weak, per spec) and a declared run-time argument shape.
// Strong captures are freed when the closure is destroyed; weak captures are
// resolved fresh on every call.
func NewClosure(captures []CaptureSpec, argTypes []object.Type, fn NativeFunc) (*object.Object, error) {
	type resolved struct {
		weak  bool
		value object.Value  // valid when !weak
		ref   object.WeakRef // valid when weak
	}
	bound := make([]resolved, len(captures))
	for i, c := range captures {
		switch c.Kind {
		case StrongCapture:
			bound[i] = resolved{weak: false, value: object.Copy(c.Value)}
		case WeakCapture:
			if c.Value.Type != object.TObject || c.Value.Obj == nil {
				return nil, errkind.New(errkind.InvalidArgument, "new_closure")
			}
			bound[i] = resolved{weak: true, ref: object.NewWeakRef(c.Value.Obj)}
		}
	}

	cl := object.NewObject()
	cl.SetTypeName("deai:closure")
	cl.SetDtor(func(*object.Object) {
		for _, b := range bound {
			if !b.weak {
				object.Free(b.value)
			}
		}
	})
	cl.SetCall(func(_ *object.Object, args []object.Value) (object.Value, error) {
		converted, err := convertArgs(args, argTypes)
		if err != nil {
			return object.Value{}, err
		}
		defer freeAll(converted)

		full := make([]object.Value, 0, len(bound)+len(converted))
		for _, b := range bound {
			if b.weak {
				target, err := b.ref.Resolve()
				if err != nil {
					return object.Value{}, err
				}
				full = append(full, object.NewObjectValue(target))
			} else {
				full = append(full, b.value)
			}
		}
		full = append(full, converted...)
		return fn(full)
	})
	return cl, nil
}
