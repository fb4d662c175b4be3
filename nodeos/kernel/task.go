package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	statusReportInterval = 60 * time.Second

	// pollInterval bounds the hub wait while polled queues are registered.
	pollInterval = 10 * time.Millisecond
)

// Body is the work a Task runs. Init is called once on the task's goroutine
// before the loop starts; Tick is called every tick period.
type Body interface {
	Init()
	Tick()
}

// BodyFuncs adapts plain functions to a Body. Nil fields are skipped.
type BodyFuncs struct {
	InitFunc func()
	TickFunc func()
}

func (b BodyFuncs) Init() {
	if b.InitFunc != nil {
		b.InitFunc()
	}
}

func (b BodyFuncs) Tick() {
	if b.TickFunc != nil {
		b.TickFunc()
	}
}

// Config describes a task.
type Config struct {
	Name      string
	StackSize uint32
	Priority  uint8
	// LockThread wires the task goroutine to one OS thread.
	LockThread bool
	// TickInterval is the tick period; zero disables Tick.
	TickInterval time.Duration
	// Attached runs the loop on the goroutine that calls Start.
	Attached bool

	Logger *slog.Logger
	Clock  func() time.Time
}

// Task is a cooperatively scheduled unit of work with one NotificationHub.
//
// The loop gives Tick priority over events: once a tick period has elapsed
// Tick runs before any pending event is forwarded, so an event storm delays
// periodic work by at most one period. Failures in Init, Tick or a listener
// are not recovered; the panic handler is told and the panic goes on.
type Task struct {
	cfg  Config
	body Body
	hub  *NotificationHub
	log  *slog.Logger

	startMu sync.Mutex
	started bool

	pollMu sync.Mutex
	polled []Poller

	ticks  atomic.Uint64
	events atomic.Uint64
}

func New(cfg Config, body Body) *Task {
	if body == nil {
		body = BodyFuncs{}
	}
	if cfg.TickInterval < 0 {
		cfg.TickInterval = 0
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Task{
		cfg:  cfg,
		body: body,
		hub:  NewNotificationHub(),
		log:  log.With(slog.String("task", cfg.Name)),
	}
}

func (t *Task) Name() string { return t.cfg.Name }

// Notifications returns the task's hub; event queues register here.
func (t *Task) Notifications() *NotificationHub { return t.hub }

func (t *Task) RegisterPolledQueue(p Poller) {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	t.polled = append(t.polled, p)
}

func (t *Task) UnregisterPolledQueue(p Poller) {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	if i := slices.Index(t.polled, p); i >= 0 {
		t.polled = slices.Delete(t.polled, i, i+1)
	}
}

func (t *Task) Stats() TaskStats {
	return TaskStats{
		StackSize: t.cfg.StackSize,
		Priority:  t.cfg.Priority,
		Ticks:     t.ticks.Load(),
		Events:    t.events.Load(),
	}
}

// Start runs the task until ctx is done.
//
// A worker task gets its own goroutine and Start returns once it is running.
// An attached task runs on the caller's goroutine and Start blocks. Starting
// a task twice only logs a warning.
func (t *Task) Start(ctx context.Context) {
	t.startMu.Lock()
	if t.started {
		t.startMu.Unlock()
		t.log.Warn("task already started")
		return
	}
	t.started = true
	t.startMu.Unlock()

	if t.cfg.Attached {
		t.log.Debug("running attached")
		t.exec(ctx, nil)
		return
	}

	ready := make(chan struct{})
	t.log.Debug("creating worker")
	go t.exec(ctx, ready)
	<-ready
	t.log.Debug("worker started")
}

func (t *Task) exec(ctx context.Context, ready chan<- struct{}) {
	if t.cfg.LockThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if ready != nil {
		close(ready)
	}
	defer func() {
		if r := recover(); r != nil {
			triggerPanic(PanicInfo{Task: t.cfg.Name, Value: r, Stack: captureStack()})
			panic(r)
		}
	}()

	t.body.Init()

	delayed := NewElapsedTime(t.cfg.Clock)
	delayed.Start()
	status := NewElapsedTime(t.cfg.Clock)
	status.Start()
	t.reportStatus()

	for ctx.Err() == nil {
		if t.cfg.TickInterval > 0 && delayed.Elapsed() > t.cfg.TickInterval {
			t.tick()
			delayed.Reset()
		} else {
			wait, capped := t.waitFor(delayed.Elapsed(), t.poll())

			q, ok := t.hub.WaitContext(ctx, wait)
			switch {
			case ok:
				if fwd, live := q.Resolve(); live {
					fwd.ForwardToListener()
					t.events.Add(1)
				}
			case ctx.Err() != nil, capped:
			case t.cfg.TickInterval > 0:
				t.tick()
				delayed.Reset()
			}
		}

		if status.Elapsed() > statusReportInterval {
			t.reportStatus()
			status.Reset()
		}
	}
	t.log.Debug("task stopped", slog.String("reason", fmt.Sprint(context.Cause(ctx))))
}

func (t *Task) tick() {
	t.body.Tick()
	t.ticks.Add(1)
}

// poll checks the polled queues and reports whether there were any.
func (t *Task) poll() bool {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	for _, p := range t.polled {
		p.Poll()
	}
	return len(t.polled) > 0
}

// waitFor returns how long the hub may block: until the next tick, capped
// at pollInterval while polled queues need checking.
func (t *Task) waitFor(sinceTick time.Duration, polling bool) (wait time.Duration, capped bool) {
	wait = Forever
	if t.cfg.TickInterval > 0 {
		wait = max(t.cfg.TickInterval-sinceTick, 0)
	}
	if polling && (wait == Forever || wait > pollInterval) {
		return pollInterval, true
	}
	return wait, false
}

func (t *Task) reportStatus() {
	SystemStatistics().Report(t.cfg.Name, t.Stats())
}
