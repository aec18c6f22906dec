// Package eventloop is the event-loop bridge (C6): a single cooperative
// reactor that publishes timer, periodic, fd-readiness, and filesystem-watch
// sources as ordinary objects, each started and stopped in step with the
// loop itself.
package eventloop

import (
	"container/heap"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

// Direction bits for fd-readiness, matching the original IOEV_READ/WRITE.
const (
	DirRead = 1 << iota
	DirWrite
)

type timerEntry struct {
	deadline time.Time
	period   time.Duration // 0 for one-shot; >0 re-arms after firing
	fire     func(now float64)
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) { e := x.(*timerEntry); e.index = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

type fdReg struct {
	fd      int
	mask    uint32
	onReady func(events uint32)
}

// Loop is the single-threaded reactor. All object/signal/member mutation in
// the runtime happens from inside Run, on whichever goroutine calls it
// (locked to its OS thread for the duration), matching spec §5's "no
// locking, loop-thread-only" resource model.
type Loop struct {
	epfd   int
	start  time.Time
	timers timerHeap
	fds    map[int]*fdReg
	module *object.Object
	quit   bool

	// OnIteration is an optional observability hook invoked once per
	// completed pass through Run's loop body, wired by root to
	// internal/metrics. Defaults to a no-op.
	OnIteration func()
}

// New creates a reactor and its "event" module object, which emits a
// "prepare" signal once per iteration just before the loop blocks.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errkind.Wrap(errkind.ResourceExhausted, "event_loop_new", err)
	}
	l := &Loop{
		epfd:        epfd,
		start:       time.Now(),
		fds:         map[int]*fdReg{},
		module:      object.NewObject(),
		OnIteration: func() {},
	}
	l.module.SetTypeName("deai:event")
	object.DeclareSignal(l.module, "prepare", nil)
	heap.Init(&l.timers)
	return l, nil
}

// Module is the root-owned object representing the loop: scripts observe
// "prepare" on it.
func (l *Loop) Module() *object.Object { return l.module }

// Now is seconds elapsed since the loop was created, the "now" value
// delivered with elapsed/triggered signals.
func (l *Loop) Now() float64 { return time.Since(l.start).Seconds() }

// Quit stops Run at the next iteration boundary.
func (l *Loop) Quit() { l.quit = true }

func (l *Loop) addTimer(e *timerEntry) { heap.Push(&l.timers, e) }

func (l *Loop) removeTimer(e *timerEntry) {
	if e.index < 0 || e.index >= len(l.timers) || l.timers[e.index] != e {
		return
	}
	heap.Remove(&l.timers, e.index)
}

func (l *Loop) registerFd(fd int, mask uint32, reg *fdReg) error {
	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if _, exists := l.fds[fd]; exists {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(l.epfd, op, fd, &ev); err != nil {
		return errkind.Wrap(errkind.Transport, "event_loop_register_fd", err)
	}
	reg.mask = mask
	l.fds[fd] = reg
	return nil
}

func (l *Loop) unregisterFd(fd int) {
	if _, ok := l.fds[fd]; !ok {
		return
	}
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(l.fds, fd)
}

// Run drives the loop until Quit is called or d elapses (d<=0 runs forever,
// intended for the process's main loop; tests pass a bounded d).
func (l *Loop) Run(d time.Duration) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var deadline time.Time
	if d > 0 {
		deadline = time.Now().Add(d)
	}

	events := make([]unix.EpollEvent, 64)
	for !l.quit {
		if err := object.Emit(l.module, "prepare", nil); err != nil {
			return err
		}
		timeout := l.nextTimeoutMillis(deadline)
		n, err := unix.EpollWait(l.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errkind.Wrap(errkind.Transport, "event_loop_run", err)
		}
		for i := 0; i < n; i++ {
			reg, ok := l.fds[int(events[i].Fd)]
			if !ok {
				continue
			}
			reg.onReady(events[i].Events)
		}
		l.fireDueTimers()
		l.OnIteration()
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
	}
	return nil
}

func (l *Loop) nextTimeoutMillis(deadline time.Time) int {
	const maxMillis = 1000
	ms := maxMillis
	if len(l.timers) > 0 {
		if d := time.Until(l.timers[0].deadline); int(d.Milliseconds()) < ms {
			ms = int(d.Milliseconds())
		}
	}
	if !deadline.IsZero() {
		if d := time.Until(deadline); int(d.Milliseconds()) < ms {
			ms = int(d.Milliseconds())
		}
	}
	if ms < 0 {
		ms = 0
	}
	return ms
}

func (l *Loop) fireDueTimers() {
	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].deadline.After(now) {
		e := heap.Pop(&l.timers).(*timerEntry)
		if e.fire != nil {
			e.fire(l.Now())
		}
		if e.period > 0 {
			e.deadline = e.deadline.Add(e.period)
			heap.Push(&l.timers, e)
		}
	}
}

// Close releases the epoll handle. It does not touch any object bound to
// the loop; Root.Shutdown is responsible for broadcasting "closing" first.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}

// bindToRoot gives a loop-bound object (timer, fdevent, periodic, fswatch)
// a strong reference to root and a one-shot listener on root's "closing"
// signal, so that tearing down root releases every OS handle even if the
// individual object is never destroyed directly. onClose is idempotent by
// construction: it runs at most once, whichever path reaches it first.
func bindToRoot(obj, root *object.Object, onClose func()) {
	closed := false
	safeClose := func() {
		if closed {
			return
		}
		closed = true
		onClose()
	}
	rootReleased := false
	releaseRoot := func() {
		if rootReleased {
			return
		}
		rootReleased = true
		root.Unref()
	}

	root.Ref()
	handler := object.NewObject()
	handler.SetCall(func(*object.Object, []object.Value) (object.Value, error) {
		safeClose()
		releaseRoot()
		return object.Nil, nil
	})
	listener, _ := object.Listen(root, "closing", handler, true)

	obj.SetDtor(func(*object.Object) {
		safeClose()
		if listener != nil {
			_ = object.StopListener(listener)
		}
		releaseRoot()
	})
}
