// Package log is the severity logging module (C8): a plain object exposing
// info/warning/error/fatal as callable members, each tagging its line with
// the module name the log object was built with. Severities are carried by
// github.com/golang/glog, matching how the rest of the stack is expected to
// surface diagnostics (glog.V-gated verbose tracing, structured severities,
// fatal aborting the process).
package log

import (
	"github.com/golang/glog"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

// New builds a "deai:log" module object. module tags every line this
// instance emits, letting two components share the process log without
// their lines being indistinguishable.
func New(module string) *object.Object {
	obj := object.NewObject()
	obj.SetTypeName("deai:log")
	_ = obj.AddMemberMove("module", object.NewString(module), false)

	logFn := func(write func(args ...interface{})) call.NativeFunc {
		return func(args []object.Value) (object.Value, error) {
			if len(args) < 2 {
				return object.Value{}, errkind.New(errkind.ArityMismatch, "log")
			}
			msg, err := object.Convert(args[1], object.TString)
			if err != nil {
				return object.Value{}, err
			}
			write("[", module, "] ", msg.Str)
			return object.Nil, nil
		}
	}

	info := call.NewMethod(obj, []object.Type{object.TString}, logFn(func(a ...interface{}) { glog.Info(a...) }))
	warning := call.NewMethod(obj, []object.Type{object.TString}, logFn(func(a ...interface{}) { glog.Warning(a...) }))
	errorM := call.NewMethod(obj, []object.Type{object.TString}, logFn(func(a ...interface{}) { glog.Error(a...) }))
	fatal := call.NewMethod(obj, []object.Type{object.TString}, logFn(func(a ...interface{}) { glog.Fatal(a...) }))

	_ = obj.AddMemberRef("info", object.NewObjectValue(info), false)
	_ = obj.AddMemberRef("warning", object.NewObjectValue(warning), false)
	_ = obj.AddMemberRef("error", object.NewObjectValue(errorM), false)
	_ = obj.AddMemberRef("fatal", object.NewObjectValue(fatal), false)

	// debugv accepts any single value (unlike the severity methods above, it
	// is not built through call.NewMethod since that requires a fixed
	// argument type up front) and logs its structured JSON dump at verbosity
	// level 1, for tracing arbitrary member/signal payloads during plugin
	// development.
	debugv := object.NewObject()
	debugv.SetTypeName("deai:method")
	debugv.SetCall(func(_ *object.Object, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Value{}, errkind.New(errkind.ArityMismatch, "debugv")
		}
		glog.V(1).Infof("[%s] %s", module, object.DumpJSON(args[0]))
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("debugv", object.NewObjectValue(debugv), false)

	obj.SetDtor(func(*object.Object) { glog.Flush() })
	return obj
}

// Sink adapts object.ErrorSink to write to glog.Warning, so a failing
// listener handler is visible in the process log instead of silently
// dropped. Root installs this during construction.
func Sink(err error) {
	glog.Warning(err)
}
