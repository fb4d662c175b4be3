package kernel

import "time"

// ElapsedTime measures running time between Start and Stop.
//
// The zero value is stopped and uses time.Now.
type ElapsedTime struct {
	now     func() time.Time
	start   time.Time
	elapsed time.Duration
	active  bool
}

// NewElapsedTime returns a stopped timer reading the given clock. A nil
// clock means time.Now.
func NewElapsedTime(clock func() time.Time) *ElapsedTime {
	return &ElapsedTime{now: clock}
}

func (e *ElapsedTime) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

// Start begins a new measurement, discarding any previous one.
func (e *ElapsedTime) Start() {
	e.active = true
	e.elapsed = 0
	e.start = e.clock()
}

// Stop freezes the measured time.
func (e *ElapsedTime) Stop() {
	if e.active {
		e.elapsed = e.clock().Sub(e.start)
	}
	e.active = false
}

// Reset restarts the measurement from now, keeping the running state.
func (e *ElapsedTime) Reset() {
	e.elapsed = 0
	e.start = e.clock()
}

// Elapsed returns the running time so far, or the frozen time once stopped.
func (e *ElapsedTime) Elapsed() time.Duration {
	if e.active {
		return e.clock().Sub(e.start)
	}
	return e.elapsed
}

func (e *ElapsedTime) IsRunning() bool { return e.active }
