package kernel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PanicInfo describes the first unrecovered failure of the process.
type PanicInfo struct {
	Task  string
	Value any
	Stack []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether a task has failed.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide failure handler.
//
// The handler runs at most once, on the first failure, before the panic
// continues to unwind. It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		if info.Stack == nil {
			info.Stack = captureStack()
		}
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

// InvariantError is the panic value of a violated runtime invariant.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Fatalf reports a programming error and halts the calling goroutine by
// panicking with an *InvariantError.
func Fatalf(format string, args ...any) {
	err := &InvariantError{Msg: fmt.Sprintf(format, args...)}
	triggerPanic(PanicInfo{Value: err})
	panic(err)
}

// Assert calls Fatalf when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Fatalf(format, args...)
	}
}
