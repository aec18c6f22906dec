// Command deai is the process entry point: it builds a root context, loads
// the plugins named on the command line, and runs the event loop until a
// script calls quit() or the process receives a termination signal.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/golang/glog"

	"github.com/deai-rt/deai/internal/object"
	"github.com/deai-rt/deai/internal/root"
)

type pluginList []string

func (p *pluginList) String() string { return fmt.Sprint([]string(*p)) }
func (p *pluginList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("deai", flag.ContinueOnError)
	var plugins pluginList
	fs.Var(&plugins, "load", "path to a plugin .so to load; may be repeated")
	chdir := fs.String("chdir", "", "change to this directory before loading plugins")

	var scriptArgs []string
	if i := indexOf(argv, "--"); i >= 0 {
		scriptArgs = argv[i+1:]
		argv = argv[:i]
	}
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	r, err := root.New(append([]string{"deai"}, scriptArgs...))
	if err != nil {
		glog.Errorf("root init: %v", err)
		return 1
	}
	defer glog.Flush()

	if *chdir != "" {
		if err := os.Chdir(*chdir); err != nil {
			glog.Errorf("chdir %s: %v", *chdir, err)
			return 1
		}
	}

	loadMethod, err := object.ResolveCallable(r.Object(), "load_plugin")
	if err != nil {
		glog.Errorf("resolve load_plugin: %v", err)
		return 1
	}
	for _, path := range plugins {
		if _, err := loadMethod.Call([]object.Value{object.NewString(path)}); err != nil {
			glog.Errorf("load_plugin %s: %v", path, err)
			return 1
		}
	}

	// A signal arrives on its own goroutine, but quit must run on the loop
	// thread: the goroutine only sets a flag, and a "prepare" listener
	// (fired once per iteration from inside Loop.Run) polls it and calls
	// quit from there.
	var quitRequested atomic.Bool
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		quitRequested.Store(true)
	}()

	quitMethod, _ := object.ResolveCallable(r.Object(), "quit")
	if quitMethod != nil {
		poll := object.NewObject()
		poll.SetCall(func(*object.Object, []object.Value) (object.Value, error) {
			if quitRequested.CompareAndSwap(true, false) {
				_, _ = quitMethod.Call(nil)
			}
			return object.Nil, nil
		})
		_, _ = object.Listen(r.Loop().Module(), "prepare", poll, false)
	}

	if err := r.Run(0); err != nil {
		glog.Errorf("event loop: %v", err)
		r.Shutdown()
		return 1
	}
	exitCode := r.ExitCode()
	r.Shutdown()
	return exitCode
}

func indexOf(args []string, needle string) int {
	for i, a := range args {
		if a == needle {
			return i
		}
	}
	return -1
}
