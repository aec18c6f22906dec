// Package object implements the variant type system (C1) and the object
// model (C2, C5): a tagged-union value type, and the refcounted,
// member-bearing, destructible object built on top of it. The two are kept
// in one package because a Value of type Object holds a direct *Object, and
// a Member's Value is exactly this same tagged union — splitting them would
// only buy an import cycle.
package object

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	jsoniter "github.com/json-iterator/go"

	"github.com/deai-rt/deai/internal/errkind"
)

// Type is a variant type tag.
type Type int

const (
	TNil Type = iota // unit/nil
	TBool
	TNInt  // native-width signed int
	TNUInt // native-width unsigned int
	TInt   // int64
	TUInt  // uint64
	TFloat
	TPointer
	TObject
	TString        // owned, heap-allocated UTF-8
	TStringLiteral // borrowed, never freed
	TArray
	TTuple
	TAny // placeholder only: the element type of an empty array
)

func (t Type) String() string {
	switch t {
	case TNil:
		return "nil"
	case TBool:
		return "bool"
	case TNInt:
		return "nint"
	case TNUInt:
		return "nuint"
	case TInt:
		return "int"
	case TUInt:
		return "uint"
	case TFloat:
		return "float"
	case TPointer:
		return "pointer"
	case TObject:
		return "object"
	case TString:
		return "string"
	case TStringLiteral:
		return "string_literal"
	case TArray:
		return "array"
	case TTuple:
		return "tuple"
	case TAny:
		return "any"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// nativeIntSize is the width, in bytes, of the platform's int/uint type.
const nativeIntSize = strconv.IntSize / 8

// Array is a length-tagged, homogeneously-typed, contiguously-owned value
// container.
type Array struct {
	Elem  Type
	Items []Value
}

// Tuple is a length-tagged, heterogeneously-typed, contiguously-owned value
// container.
type Tuple struct {
	Elem  []Type
	Items []Value
}

// Value is the tagged union every member, argument, and return value is
// expressed in.
type Value struct {
	Type Type

	Bool    bool
	NInt    int
	NUInt   uint
	Int     int64
	UInt    uint64
	Float   float64
	Pointer unsafe.Pointer
	Obj     *Object
	Str     string
	Array   *Array
	Tuple   *Tuple
}

// Nil is the singleton unit value.
var Nil = Value{Type: TNil}

func NewBool(b bool) Value     { return Value{Type: TBool, Bool: b} }
func NewNInt(i int) Value      { return Value{Type: TNInt, NInt: i} }
func NewNUInt(u uint) Value    { return Value{Type: TNUInt, NUInt: u} }
func NewInt(i int64) Value     { return Value{Type: TInt, Int: i} }
func NewUInt(u uint64) Value   { return Value{Type: TUInt, UInt: u} }
func NewFloat(f float64) Value { return Value{Type: TFloat, Float: f} }
func NewPointer(p unsafe.Pointer) Value {
	return Value{Type: TPointer, Pointer: p}
}
func NewObjectValue(o *Object) Value { return Value{Type: TObject, Obj: o} }
func NewString(s string) Value       { return Value{Type: TString, Str: s} }
func NewStringLiteral(s string) Value {
	return Value{Type: TStringLiteral, Str: s}
}
func NewArray(elem Type, items []Value) Value {
	return Value{Type: TArray, Array: &Array{Elem: elem, Items: items}}
}
func NewTuple(elem []Type, items []Value) Value {
	return Value{Type: TTuple, Tuple: &Tuple{Elem: elem, Items: items}}
}

// IsNil reports whether v is the unit value (a zero Value is also nil).
func (v Value) IsNil() bool { return v.Type == TNil }

func (v Value) String() string {
	switch v.Type {
	case TNil:
		return "nil"
	case TBool:
		return strconv.FormatBool(v.Bool)
	case TNInt:
		return strconv.Itoa(v.NInt)
	case TNUInt:
		return strconv.FormatUint(uint64(v.NUInt), 10)
	case TInt:
		return strconv.FormatInt(v.Int, 10)
	case TUInt:
		return strconv.FormatUint(v.UInt, 10)
	case TFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TPointer:
		return fmt.Sprintf("#<pointer %p>", v.Pointer)
	case TObject:
		if v.Obj == nil {
			return "#<object nil>"
		}
		return fmt.Sprintf("#<object %s>", v.Obj.TypeName())
	case TString, TStringLiteral:
		return v.Str
	case TArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, item := range v.Array.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(item.String())
		}
		sb.WriteByte(']')
		return sb.String()
	case TTuple:
		var sb strings.Builder
		sb.WriteByte('(')
		for i, item := range v.Tuple.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(item.String())
		}
		sb.WriteByte(')')
		return sb.String()
	case TAny:
		return "#<any>"
	default:
		return "?"
	}
}

// Dump renders v for a log line. It is String: like String, it never
// recurses into an object's members, since that could cross into a
// half-torn-down object during apoptosis.
func Dump(v Value) string { return v.String() }

// debugValue is the shallow, JSON-safe projection of a Value that DumpJSON
// serializes: scalars and strings by value, an object by its type name only,
// arrays element by element; pointers and tuples carry only their type. A
// structured dump never walks into live object state.
type debugValue struct {
	Type string      `json:"type"`
	Val  interface{} `json:"val,omitempty"`
}

// DumpJSON renders v as a structured, machine-parseable debug line (verbose
// log output, plugin diagnostics) rather than String's human-readable form.
func DumpJSON(v Value) string {
	d := debugValue{Type: v.Type.String()}
	switch v.Type {
	case TBool:
		d.Val = v.Bool
	case TNInt:
		d.Val = v.NInt
	case TNUInt:
		d.Val = v.NUInt
	case TInt:
		d.Val = v.Int
	case TUInt:
		d.Val = v.UInt
	case TFloat:
		d.Val = v.Float
	case TString, TStringLiteral:
		d.Val = v.Str
	case TObject:
		if v.Obj != nil {
			d.Val = v.Obj.TypeName()
		}
	case TArray:
		if v.Array != nil {
			items := make([]string, len(v.Array.Items))
			for i, it := range v.Array.Items {
				items[i] = DumpJSON(it)
			}
			d.Val = items
		}
	}
	out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(d)
	if err != nil {
		return v.String()
	}
	return out
}

// SizeOf is the exact byte width the call core writes when materializing a
// value of type t.
func SizeOf(t Type) uintptr {
	switch t {
	case TFloat:
		return 8
	case TInt, TUInt:
		return 8
	case TNInt, TNUInt:
		return nativeIntSize
	case TString, TStringLiteral, TObject, TPointer:
		return unsafe.Sizeof(uintptr(0))
	case TBool:
		return 1
	case TArray:
		return unsafe.Sizeof(Array{})
	case TTuple:
		return unsafe.Sizeof(Tuple{})
	default: // TNil, TAny, TLastType-equivalent
		return 0
	}
}

// Copy performs the deep-copy half of the copy/free pair: scalars by value,
// strings by duplication, object references by incrementing the refcount,
// arrays/tuples element-wise.
func Copy(v Value) Value {
	switch v.Type {
	case TString:
		return Value{Type: TString, Str: strings.Clone(v.Str)}
	case TObject:
		if v.Obj != nil {
			v.Obj.Ref()
		}
		return v
	case TArray:
		if v.Array == nil {
			return v
		}
		items := make([]Value, len(v.Array.Items))
		for i, it := range v.Array.Items {
			items[i] = Copy(it)
		}
		return Value{Type: TArray, Array: &Array{Elem: v.Array.Elem, Items: items}}
	case TTuple:
		if v.Tuple == nil {
			return v
		}
		items := make([]Value, len(v.Tuple.Items))
		for i, it := range v.Tuple.Items {
			items[i] = Copy(it)
		}
		elem := make([]Type, len(v.Tuple.Elem))
		copy(elem, v.Tuple.Elem)
		return Value{Type: TTuple, Tuple: &Tuple{Elem: elem, Items: items}}
	default:
		return v
	}
}

// Free is symmetric to Copy. Freeing a unit/any/last-type value is a no-op.
func Free(v Value) {
	switch v.Type {
	case TObject:
		if v.Obj != nil {
			v.Obj.Unref()
		}
	case TArray:
		if v.Array == nil {
			return
		}
		for _, it := range v.Array.Items {
			Free(it)
		}
	case TTuple:
		if v.Tuple == nil {
			return
		}
		for _, it := range v.Tuple.Items {
			Free(it)
		}
	default:
		// scalars, strings, string literals, nil, any: nothing owned.
	}
}

func isInteger(t Type) bool {
	switch t {
	case TNInt, TNUInt, TInt, TUInt:
		return true
	default:
		return false
	}
}

// intRange returns whether t is unsigned and its width in bits, for the
// fits-in-range check.
func intRange(t Type) (unsigned bool, bits int) {
	switch t {
	case TNInt:
		return false, strconv.IntSize
	case TNUInt:
		return true, strconv.IntSize
	case TInt:
		return false, 64
	case TUInt:
		return true, 64
	default:
		return false, 0
	}
}

func asInt64(v Value) (int64, bool) {
	switch v.Type {
	case TNInt:
		return int64(v.NInt), false
	case TNUInt:
		return int64(v.NUInt), true
	case TInt:
		return v.Int, false
	case TUInt:
		return int64(v.UInt), true
	}
	return 0, false
}

func fitsIn(x int64, wasUnsigned bool, dstUnsigned bool, dstBits int) bool {
	if dstBits == 64 {
		if dstUnsigned {
			return wasUnsigned || x >= 0
		}
		if wasUnsigned {
			return uint64(x) <= uint64(1<<63-1)
		}
		return true
	}
	lo := int64(-1) << (dstBits - 1)
	hi := int64(1)<<(dstBits-1) - 1
	if dstUnsigned {
		lo = 0
		hi = int64(1)<<dstBits - 1
	}
	if wasUnsigned && x < 0 {
		// x held an unsigned value too large for int64, never fits a
		// narrower destination.
		return false
	}
	return x >= lo && x <= hi
}

func makeInt(t Type, x int64) Value {
	switch t {
	case TNInt:
		return NewNInt(int(x))
	case TNUInt:
		return NewNUInt(uint(x))
	case TInt:
		return NewInt(x)
	case TUInt:
		return NewUInt(uint64(x))
	}
	return Nil
}

// Convert implements the only implicit conversions the call core performs:
// identity; integer-to-integer when the value fits; integer-to-float;
// nil-filling of object/string/pointer/array destinations. Float-to-integer
// and every other pairing fail with TypeMismatch. Convert never mutates src
// and leaves the output untouched on failure.
func Convert(src Value, dst Type) (Value, error) {
	if src.Type == dst {
		return Copy(src), nil
	}
	if src.Type == TNil {
		switch dst {
		case TObject:
			return NewObjectValue(NewObject()), nil
		case TString:
			return NewString(""), nil
		case TStringLiteral:
			return NewStringLiteral(""), nil
		case TPointer:
			return NewPointer(nil), nil
		case TArray:
			return NewArray(TAny, nil), nil
		default:
			return Value{}, errkind.New(errkind.TypeMismatch, "convert")
		}
	}
	if isInteger(src.Type) && isInteger(dst) {
		x, wasUnsigned := asInt64(src)
		dstUnsigned, dstBits := intRange(dst)
		if !fitsIn(x, wasUnsigned, dstUnsigned, dstBits) {
			return Value{}, errkind.New(errkind.OutOfRange, "convert")
		}
		return makeInt(dst, x), nil
	}
	if isInteger(src.Type) && dst == TFloat {
		x, wasUnsigned := asInt64(src)
		if wasUnsigned {
			return NewFloat(float64(uint64(x))), nil
		}
		return NewFloat(float64(x)), nil
	}
	// Float -> integer is explicitly not permitted.
	return Value{}, errkind.New(errkind.TypeMismatch, "convert")
}
