package object

import "github.com/deai-rt/deai/internal/errkind"

// Get resolves obj.name: an explicit member wins, falling back to a
// per-name getter (__get_<name>) then a generic getter (__get). The probe
// key is built once per call rather than re-concatenated at every step.
func Get(obj *Object, name string) (Value, error) {
	if obj.state != Healthy {
		return Value{}, errkind.New(errkind.Destroyed, "get")
	}
	if m, ok := obj.members[name]; ok {
		return Copy(m.Value), nil
	}
	if v, err, ok := tryGetter(obj, "__get_"+name, nil); ok {
		return v, err
	}
	if v, err, ok := tryGetter(obj, "__get", []Value{NewString(name)}); ok {
		return v, err
	}
	return Value{}, errkind.New(errkind.NotFound, "get")
}

// GetRaw skips the getter chain: it returns only an explicit member.
func GetRaw(obj *Object, name string) (Value, error) {
	if obj.state != Healthy {
		return Value{}, errkind.New(errkind.Destroyed, "get_raw")
	}
	if m, ok := obj.members[name]; ok {
		return Copy(m.Value), nil
	}
	return Value{}, errkind.New(errkind.NotFound, "get_raw")
}

func tryGetter(obj *Object, slot string, args []Value) (Value, error, bool) {
	m, ok := obj.members[slot]
	if !ok || m.Value.Type != TObject || m.Value.Obj == nil || !m.Value.Obj.Callable() {
		return Value{}, nil, false
	}
	v, err := m.Value.Obj.Call(args)
	return v, err, true
}

// Set resolves obj.name = v: a per-name setter (__set_<name>) wins, then an
// existing member is replaced in place iff it is writable (converted to the
// member's declared type — member types are immutable per §9 Open Question
// (a)); a member that exists but is not writable falls through to the
// generic setter (__set) rather than failing outright, same as a name that
// names no member at all.
func Set(obj *Object, name string, v Value) error {
	if obj.state != Healthy {
		return errkind.New(errkind.Destroyed, "set")
	}
	if ok, err := trySetter(obj, "__set_"+name, []Value{v}); ok {
		return err
	}
	if m, ok := obj.members[name]; ok && m.Writable {
		converted, err := Convert(v, m.Value.Type)
		if err != nil {
			return err
		}
		if m.Own {
			Free(m.Value)
		}
		m.Value = converted
		m.Own = true
		return nil
	}
	if ok, err := trySetter(obj, "__set", []Value{NewString(name), v}); ok {
		return err
	}
	return errkind.New(errkind.NotFound, "set")
}

func trySetter(obj *Object, slot string, args []Value) (bool, error) {
	m, ok := obj.members[slot]
	if !ok || m.Value.Type != TObject || m.Value.Obj == nil || !m.Value.Obj.Callable() {
		return false, nil
	}
	_, err := m.Value.Obj.Call(args)
	return true, err
}

// ResolveCallable walks the same chain as Get but additionally requires the
// result to be a callable object; internal/call's call_by_name builds on
// this.
func ResolveCallable(obj *Object, name string) (*Object, error) {
	v, err := Get(obj, name)
	if err != nil {
		return nil, err
	}
	if v.Type != TObject || v.Obj == nil || !v.Obj.Callable() {
		return nil, errkind.New(errkind.NotCallable, "resolve_callable")
	}
	return v.Obj, nil
}
