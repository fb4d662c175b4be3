// Package counter is the example node application: it sends counters
// upstream and tallies the values the network echoes back.
package counter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"radionode/hal"
	"radionode/internal/logging"
	"radionode/nodeos/kernel"
	"radionode/nodeos/lorawan"
)

const (
	PortBoot        uint8 = 30
	PortConfirmed   uint8 = 31
	PortUnconfirmed uint8 = 32
	PortButton      uint8 = 33

	PortDeviceID        uint8 = 20
	PortConfirmedEcho   uint8 = 21
	PortUnconfirmedEcho uint8 = 22

	DefaultUplinkInterval = 5 * time.Second

	downlinkQueueSize = 8
	buttonQueueSize   = 4
)

// Downlink is a message from the network waiting for the task loop.
type Downlink struct {
	Port    uint8
	Payload []byte
}

// ButtonPress is signalled from the button interrupt.
type ButtonPress struct {
	Pin int
}

type Config struct {
	UplinkInterval time.Duration
	// Button, when set, requests an extra uplink on each falling edge.
	Button    hal.GPIOPin
	ButtonPin int
	Logger    *slog.Logger
}

// App is the counter application. It implements lorawan.Activator and
// lorawan.Listener.
type App struct {
	cfg   Config
	log   *slog.Logger
	task  *kernel.Task
	stats *CounterStatistics

	downlinks *kernel.EventQueue[Downlink]
	buttons   *kernel.ISRQueue[ButtonPress]

	mu         sync.Mutex
	client     lorawan.Client
	configured bool
	deviceID   int

	// Owned by the task goroutine.
	ctx           context.Context
	confirmed     uint32
	unconfirmed   uint32
	nextConfirmed bool
	buttonPending bool
}

func New(cfg Config) *App {
	if cfg.UplinkInterval <= 0 {
		cfg.UplinkInterval = DefaultUplinkInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg:           cfg,
		log:           log.With(logging.Task("counter")),
		nextConfirmed: true,
	}
	a.stats = NewCounterStatistics(a.log)
	a.task = kernel.New(kernel.Config{
		Name:         "counter",
		StackSize:    20000,
		Priority:     5,
		TickInterval: cfg.UplinkInterval,
		Attached:     true,
		Logger:       log,
	}, kernel.BodyFuncs{TickFunc: a.tick})
	a.downlinks = kernel.NewEventQueue[Downlink](downlinkQueueSize, a.task, kernel.ListenerFunc[Downlink](a.apply))
	return a
}

// Run drives the task on the calling goroutine until ctx is done. Uplinks
// start once the app has been activated.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Button != nil {
		if err := a.attachButton(); err != nil {
			a.log.Warn("button disabled", logging.Error(err))
		}
		defer a.detachButton()
	}
	a.ctx = ctx
	a.task.Start(ctx)
	return nil
}

func (a *App) attachButton() error {
	q, err := kernel.NewISRQueue[ButtonPress](buttonQueueSize, a.task, kernel.ListenerFunc[ButtonPress](a.pressed))
	if err != nil {
		return err
	}
	if err := a.cfg.Button.Configure(hal.GPIOModeInput, hal.GPIOPullUp); err != nil {
		q.Close()
		a.task.UnregisterPolledQueue(q)
		return err
	}
	pin := a.cfg.ButtonPin
	if err := a.cfg.Button.SetInterrupt(hal.GPIOEdgeFalling, func() { q.Signal(ButtonPress{Pin: pin}) }); err != nil {
		q.Close()
		a.task.UnregisterPolledQueue(q)
		return err
	}
	a.buttons = q
	return nil
}

func (a *App) detachButton() {
	if a.buttons == nil {
		return
	}
	a.cfg.Button.SetInterrupt(hal.GPIOEdgeNone, nil)
	a.task.UnregisterPolledQueue(a.buttons)
	a.buttons.Close()
}

// Activate receives the joined client.
func (a *App) Activate(c lorawan.Client) {
	a.mu.Lock()
	a.client = c
	a.mu.Unlock()
	c.InstallListener(a)
	a.log.Info("activated")
}

// OnMessageReceived queues the downlink for the task loop.
func (a *App) OnMessageReceived(payload []byte, port uint8) {
	d := Downlink{Port: port, Payload: append([]byte(nil), payload...)}
	if !a.downlinks.Push(d) {
		a.log.Warn("downlink dropped", logging.Port(port))
	}
}

// Statistics returns the counter statistics; only safe once Run returned.
func (a *App) Statistics() *CounterStatistics { return a.stats }

// Configured reports whether the network has assigned a device id.
func (a *App) Configured() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceID, a.configured
}

func (a *App) tick() {
	a.mu.Lock()
	client, configured := a.client, a.configured
	a.mu.Unlock()
	if client == nil {
		return
	}

	switch {
	case a.buttonPending:
		a.buttonPending = false
		a.send(client, "btn", PortButton, false)
	case !configured:
		a.send(client, "boot", PortBoot, false)
	case a.nextConfirmed:
		a.nextConfirmed = false
		if a.send(client, strconv.FormatUint(uint64(a.confirmed), 10), PortConfirmed, true) {
			a.confirmed++
		}
	default:
		a.nextConfirmed = true
		if a.send(client, strconv.FormatUint(uint64(a.unconfirmed), 10), PortUnconfirmed, false) {
			a.unconfirmed++
		}
	}
}

func (a *App) send(c lorawan.Client, msg string, port uint8, confirm bool) bool {
	resp := c.TransmitMessage(a.ctx, []byte(msg), port, confirm)
	if resp != lorawan.ResponseSuccess {
		a.log.Error("uplink failed", logging.Port(port), slog.String("msg", msg), slog.String("response", resp.String()))
		return false
	}
	a.log.Info("uplink ok", logging.Port(port), slog.String("msg", msg), slog.Bool("confirm", confirm))
	return true
}

func (a *App) pressed(p ButtonPress) {
	a.log.Debug("button", slog.Int("pin", p.Pin))
	a.buttonPending = true
}

// apply runs on the task loop for each queued downlink.
func (a *App) apply(d Downlink) {
	switch d.Port {
	case PortDeviceID, PortConfirmedEcho, PortUnconfirmedEcho:
	default:
		a.log.Debug("downlink ignored", logging.Port(d.Port))
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(d.Payload)))
	if err != nil || n < 0 {
		a.log.Error("bad downlink", logging.Port(d.Port), slog.String("payload", string(d.Payload)), logging.Error(err))
		return
	}

	a.mu.Lock()
	configured := a.configured
	if d.Port == PortDeviceID && !configured {
		a.configured = true
		a.deviceID = n
	}
	a.mu.Unlock()

	switch d.Port {
	case PortDeviceID:
		if !configured {
			a.log.Info("configured", slog.Int("device_id", n))
		}
	case PortConfirmedEcho:
		if configured {
			a.stats.UpdateConfirmed(uint32(n))
		}
	case PortUnconfirmedEcho:
		if configured {
			a.stats.UpdateUnconfirmed(uint32(n))
		}
	}
}
