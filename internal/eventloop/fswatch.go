package eventloop

import (
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/deai-rt/deai/internal/call"
	"github.com/deai-rt/deai/internal/errkind"
	"github.com/deai-rt/deai/internal/object"
)

// watchMask is every event this bridge reports; a narrower subscription is
// not exposed since the object-level signal protocol is already the
// filter (no listener, no work done dispatching it).
const watchMask = unix.IN_CREATE | unix.IN_ACCESS | unix.IN_ATTRIB |
	unix.IN_CLOSE_WRITE | unix.IN_CLOSE_NOWRITE | unix.IN_DELETE |
	unix.IN_DELETE_SELF | unix.IN_MODIFY | unix.IN_MOVE_SELF | unix.IN_OPEN |
	unix.IN_MOVED_FROM | unix.IN_MOVED_TO

var watchSignals = []string{
	"create", "access", "attrib", "close-write", "close-nowrite",
	"delete", "delete-self", "modify", "move-self", "open",
}

func bitToSignal(bit uint32) (string, bool) {
	switch bit {
	case unix.IN_CREATE:
		return "create", true
	case unix.IN_ACCESS:
		return "access", true
	case unix.IN_ATTRIB:
		return "attrib", true
	case unix.IN_CLOSE_WRITE:
		return "close-write", true
	case unix.IN_CLOSE_NOWRITE:
		return "close-nowrite", true
	case unix.IN_DELETE:
		return "delete", true
	case unix.IN_DELETE_SELF:
		return "delete-self", true
	case unix.IN_MODIFY:
		return "modify", true
	case unix.IN_MOVE_SELF:
		return "move-self", true
	case unix.IN_OPEN:
		return "open", true
	default:
		return "", false
	}
}

// NewFsWatch builds an inotify-backed filesystem watch bridge. Each signal
// carries (watched-path, sub-path); "moved-from"/"moved-to" additionally
// carry the kernel's rename-correlation cookie, widened to 64 bits so a
// script never has to reason about overflow.
func NewFsWatch(loop *Loop, root *object.Object, paths []string) (*object.Object, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, errkind.Wrap(errkind.ResourceExhausted, "fswatch_new", err)
	}

	obj := object.NewObject()
	obj.SetTypeName("deai:fswatch")
	for _, name := range watchSignals {
		object.DeclareSignal(obj, name, []object.Type{object.TString, object.TString})
	}
	object.DeclareSignal(obj, "moved-from", []object.Type{object.TString, object.TString, object.TUInt})
	object.DeclareSignal(obj, "moved-to", []object.Type{object.TString, object.TString, object.TUInt})

	wdToPath := map[int32]string{}

	addOne := func(path string) error {
		wd, err := unix.InotifyAddWatch(fd, path, watchMask)
		if err != nil {
			return errkind.Wrap(errkind.Transport, "fswatch_add", err)
		}
		wdToPath[int32(wd)] = path
		return nil
	}
	for _, p := range paths {
		if err := addOne(p); err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
	}

	dispatch := func(watched string, mask uint32, name string, cookie uint64) {
		if mask&unix.IN_MOVED_FROM != 0 {
			_ = object.Emit(obj, "moved-from", []object.Value{
				object.NewString(watched), object.NewString(name), object.NewUInt(cookie),
			})
			return
		}
		if mask&unix.IN_MOVED_TO != 0 {
			_ = object.Emit(obj, "moved-to", []object.Value{
				object.NewString(watched), object.NewString(name), object.NewUInt(cookie),
			})
			return
		}
		for bit, sig := range bitSignalTable {
			if mask&bit != 0 {
				_ = object.Emit(obj, sig, []object.Value{object.NewString(watched), object.NewString(name)})
			}
		}
	}

	reg := &fdReg{fd: fd}
	reg.onReady = func(uint32) {
		buf := make([]byte, 64*1024)
		n, err := unix.Read(fd, buf)
		if err != nil || n <= 0 {
			return
		}
		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(raw.Len)
			name := ""
			if nameLen > 0 {
				start := offset + unix.SizeofInotifyEvent
				name = strings.TrimRight(string(buf[start:start+nameLen]), "\x00")
			}
			watched := wdToPath[raw.Wd]
			dispatch(watched, raw.Mask, name, uint64(raw.Cookie))
			offset += unix.SizeofInotifyEvent + nameLen
		}
	}
	if err := loop.registerFd(fd, unix.EPOLLIN, reg); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	addMethod := call.NewMethod(obj, []object.Type{object.TArray}, func(args []object.Value) (object.Value, error) {
		if args[1].Array == nil {
			return object.Nil, nil
		}
		for _, item := range args[1].Array.Items {
			if item.Type != object.TString && item.Type != object.TStringLiteral {
				return object.Value{}, errkind.New(errkind.TypeMismatch, "fswatch_add")
			}
			if err := addOne(item.Str); err != nil {
				return object.Value{}, err
			}
		}
		return object.Nil, nil
	})
	_ = obj.AddMemberRef("add", object.NewObjectValue(addMethod), false)

	addOneMethod := call.NewMethod(obj, []object.Type{object.TString}, func(args []object.Value) (object.Value, error) {
		return object.Nil, addOne(args[1].Str)
	})
	_ = obj.AddMemberRef("add_one", object.NewObjectValue(addOneMethod), false)

	removeMethod := call.NewMethod(obj, []object.Type{object.TString}, func(args []object.Value) (object.Value, error) {
		for wd, p := range wdToPath {
			if p == args[1].Str {
				_, _ = unix.InotifyRmWatch(fd, uint32(wd))
				delete(wdToPath, wd)
				return object.Nil, nil
			}
		}
		return object.Value{}, errkind.New(errkind.NotFound, "fswatch_remove")
	})
	_ = obj.AddMemberRef("remove", object.NewObjectValue(removeMethod), false)

	closeAll := func() {
		loop.unregisterFd(fd)
		_ = unix.Close(fd)
	}
	bindToRoot(obj, root, closeAll)
	return obj, nil
}

var bitSignalTable = func() map[uint32]string {
	m := map[uint32]string{}
	for _, bit := range []uint32{
		unix.IN_CREATE, unix.IN_ACCESS, unix.IN_ATTRIB, unix.IN_CLOSE_WRITE,
		unix.IN_CLOSE_NOWRITE, unix.IN_DELETE, unix.IN_DELETE_SELF,
		unix.IN_MODIFY, unix.IN_MOVE_SELF, unix.IN_OPEN,
	} {
		sig, ok := bitToSignal(bit)
		if ok {
			m[bit] = sig
		}
	}
	return m
}()
