//go:build !tinygo

package kernel

import "runtime"

const maxStackDump = 8 << 10

// captureStack returns the current goroutine's trace, cut at maxStackDump.
func captureStack() []byte {
	buf := make([]byte, maxStackDump)
	return buf[:runtime.Stack(buf, false)]
}
