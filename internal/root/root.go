// Package root implements the root context (C7): the object that owns the
// event loop, the module registry, and process-level concerns (argv, exit
// code, quit, chdir, dynamic plugin loading). It is the one component that
// wires every other package together and installs the cross-cutting
// observability hooks (metrics counters, log-backed error sink) the lower
// layers expose but never import themselves.
package root

import (
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/eventloop"
	"github.com/deai-rt/deai/internal/log"
	"github.com/deai-rt/deai/internal/metrics"
	"github.com/deai-rt/deai/internal/object"
)

// PluginInit is the symbol name a .so plugin must export: a function taking
// the root object and returning the module object to register, or an error.
const PluginInit = "DeaiPluginInit"

// Root is the top-level context a process constructs exactly once.
type Root struct {
	obj     *object.Object
	loop    *eventloop.Loop
	metrics *metrics.Registry
	logger  *object.Object

	modules     map[string]*object.Object
	moduleOrder []string
}

// New wires the event loop, metrics registry, and log module together,
// installs the object-package observability hooks, and builds the root
// object with its argv/exit_code members and quit/chdir/load_plugin
// methods.
func New(argv []string) (*Root, error) {
	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	object.OnCreate = reg.ObjectCreated
	object.OnFinalize = reg.ObjectDestroyed
	object.OnListen = reg.ListenerAttached
	object.OnStopListener = reg.ListenerDetached
	loop.OnIteration = reg.LoopIteration

	logger := log.New("root")
	object.ErrorSink = log.Sink

	obj := object.NewObject()
	obj.SetTypeName("deai:root")
	object.DeclareSignal(obj, "closing", nil)

	r := &Root{
		obj:     obj,
		loop:    loop,
		metrics: reg,
		logger:  logger,
		modules: map[string]*object.Object{},
	}

	argvItems := make([]object.Value, len(argv))
	for i, a := range argv {
		argvItems[i] = object.NewString(a)
	}
	runID := uuid.New().String()
	_ = obj.AddMemberMove("argv", object.NewArray(object.TString, argvItems), false)
	_ = obj.AddMemberMove("exit_code", object.NewInt(0), true)
	_ = obj.AddMemberMove("run_id", object.NewStringLiteral(runID), false)
	_ = obj.AddMemberClone("log", object.NewObjectValue(logger), false)
	_ = obj.AddMemberClone("event", object.NewObjectValue(loop.Module()), false)

	if info, err := object.ResolveCallable(logger, "info"); err == nil {
		_, _ = info.Call([]object.Value{object.NewString("root context starting, run_id=" + runID)})
	}

	quit := call.NewMethod(obj, nil, func([]object.Value) (object.Value, error) {
		r.loop.Quit()
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("quit", object.NewObjectValue(quit), false)

	chdir := call.NewMethod(obj, []object.Type{object.TString}, func(args []object.Value) (object.Value, error) {
		if err := os.Chdir(args[1].Str); err != nil {
			return object.Value{}, errkind.Wrap(errkind.Transport, "chdir", err)
		}
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("chdir", object.NewObjectValue(chdir), false)

	loadPlugin := call.NewMethod(obj, []object.Type{object.TString}, func(args []object.Value) (object.Value, error) {
		return r.loadPlugin(args[1].Str)
	})
	_ = obj.AddMemberRef("load_plugin", object.NewObjectValue(loadPlugin), false)

	return r, nil
}

// Object is the root object itself, the entry point scripts are handed.
func (r *Root) Object() *object.Object { return r.obj }

// Loop is the underlying reactor, for constructing eventloop-bound objects
// (timers, fdevents, periodics, filesystem watches) bound to this root.
func (r *Root) Loop() *eventloop.Loop { return r.loop }

// Metrics is the process-wide metrics registry.
func (r *Root) Metrics() *metrics.Registry { return r.metrics }

// ExitCode reads back the exit_code member, set by script code via the
// member setter protocol before calling quit.
func (r *Root) ExitCode() int {
	v, err := object.GetRaw(r.obj, "exit_code")
	if err != nil {
		return 0
	}
	return int(v.Int)
}

// Register adds mod to the module registry under name, failing
// AlreadyExists on a name collision. Registered modules are torn down in
// reverse registration order by Shutdown.
func (r *Root) Register(name string, mod *object.Object) error {
	if _, exists := r.modules[name]; exists {
		return errkind.New(errkind.AlreadyExists, "register_module")
	}
	r.modules[name] = mod
	r.moduleOrder = append(r.moduleOrder, name)
	_ = r.obj.AddMemberClone(name, object.NewObjectValue(mod), false)
	return nil
}

// Module looks up a previously registered module by name.
func (r *Root) Module(name string) (*object.Object, bool) {
	m, ok := r.modules[name]
	return m, ok
}

func (r *Root) loadPlugin(path string) (object.Value, error) {
	name := moduleName(path)
	if _, exists := r.modules[name]; exists {
		return object.Value{}, errkind.New(errkind.AlreadyExists, "load_plugin")
	}

	p, err := plugin.Open(path)
	if err != nil {
		return object.Value{}, errkind.Wrap(errkind.Transport, "load_plugin", err)
	}
	sym, err := p.Lookup(PluginInit)
	if err != nil {
		return object.Value{}, errkind.Wrap(errkind.NotFound, "load_plugin", err)
	}
	initFn, ok := sym.(func(*object.Object) (*object.Object, error))
	if !ok {
		return object.Value{}, errkind.New(errkind.TypeMismatch, "load_plugin")
	}
	mod, err := initFn(r.obj)
	if err != nil {
		return object.Value{}, err
	}
	if err := r.Register(name, mod); err != nil {
		mod.Destroy()
		return object.Value{}, err
	}
	return object.NewObjectValue(mod), nil
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run drives the event loop until quit is called (d<=0) or d elapses.
func (r *Root) Run(d time.Duration) error {
	return r.loop.Run(d)
}

// Shutdown broadcasts "closing" so every loop-bound object releases its OS
// handle, tears down registered modules in reverse order, then destroys the
// root object and releases the reactor.
func (r *Root) Shutdown() {
	_ = object.Emit(r.obj, "closing", nil)
	for i := len(r.moduleOrder) - 1; i >= 0; i-- {
		if m, ok := r.modules[r.moduleOrder[i]]; ok {
			m.Destroy()
		}
	}
	r.logger.Destroy()
	r.loop.Module().Destroy()
	r.obj.Destroy()
	_ = r.loop.Close()
}
