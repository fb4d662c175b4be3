package hal

import (
	"sync"
	"time"
)

type monoClock struct {
	start time.Time
}

func (c monoClock) Micros() int64 {
	return time.Since(c.start).Microseconds()
}

// timerAlarm runs fn on a timer goroutine. A shot replaced by Set or Cancel
// before it fires is dropped even if its timer already expired.
type timerAlarm struct {
	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

func (a *timerAlarm) Set(d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.t != nil {
		a.t.Stop()
	}
	a.gen++
	gen := a.gen
	a.t = time.AfterFunc(d, func() {
		a.mu.Lock()
		live := a.gen == gen
		a.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (a *timerAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	if a.t != nil {
		a.t.Stop()
		a.t = nil
	}
}
