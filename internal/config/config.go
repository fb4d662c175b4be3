// Package config loads the node configuration: built-in defaults, then an
// optional YAML file, then environment variables (optionally seeded from a
// .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"radionode/internal/logging"
	"radionode/nodeos/lorawan"
	"radionode/nodeos/lorawan/simstack"
	"radionode/nodeos/tasks/counter"
)

// EnvPrefix prefixes every environment variable, e.g. NODE_LOG_LEVEL.
const EnvPrefix = "NODE_"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Board       string         `yaml:"board" env:"BOARD"`
	Credentials Credentials    `yaml:"credentials"`
	Radio       Radio          `yaml:"radio" envPrefix:"RADIO_"`
	Task        Task           `yaml:"task" envPrefix:"TASK_"`
	Sim         Sim            `yaml:"sim" envPrefix:"SIM_"`
	Log         logging.Config `yaml:"log" envPrefix:"LOG_"`
}

// Credentials are hex text, most significant byte first. An empty DevEUI is
// derived from the board's hardware address.
type Credentials struct {
	AppEUI string `yaml:"app_eui" env:"APP_EUI"`
	AppKey string `yaml:"app_key" env:"APP_KEY"`
	DevEUI string `yaml:"dev_eui" env:"DEV_EUI"`
}

type Radio struct {
	RSSICal          int8          `yaml:"rssi_cal" env:"RSSI_CAL"`
	JoinRetry        time.Duration `yaml:"join_retry" env:"JOIN_RETRY"`
	OperationTimeout time.Duration `yaml:"operation_timeout" env:"OPERATION_TIMEOUT"`
}

type Task struct {
	UplinkInterval time.Duration `yaml:"uplink_interval" env:"UPLINK_INTERVAL"`
}

// Sim configures the simulated network of the host build.
type Sim struct {
	JoinFailures    int           `yaml:"join_failures" env:"JOIN_FAILURES"`
	Airtime         time.Duration `yaml:"airtime" env:"AIRTIME"`
	JoinAcceptDelay time.Duration `yaml:"join_accept_delay" env:"JOIN_ACCEPT_DELAY"`
	RxDelay         time.Duration `yaml:"rx_delay" env:"RX_DELAY"`
	// EchoCounters answers counter uplinks with the same value.
	EchoCounters bool `yaml:"echo_counters" env:"ECHO_COUNTERS"`
	// Downlinks are "port:payload" pairs answered in order, one per uplink.
	Downlinks []string `yaml:"downlinks" env:"DOWNLINKS" envSeparator:","`
}

func Default() Config {
	return Config{
		Board: lorawan.BoardHost.String(),
		Credentials: Credentials{
			AppEUI: "70B3D57ED00306F7",
			AppKey: "8214F6A2800C9FCD9B26BBE28D5CD057",
			DevEUI: "004CFEED74AD2FA6",
		},
		Radio: Radio{
			RSSICal:          10,
			JoinRetry:        lorawan.DefaultJoinRetry,
			OperationTimeout: lorawan.DefaultOperationTimeout,
		},
		Task: Task{UplinkInterval: 5 * time.Second},
		Sim: Sim{
			JoinFailures:    1,
			Airtime:         50 * time.Millisecond,
			JoinAcceptDelay: 500 * time.Millisecond,
			RxDelay:         200 * time.Millisecond,
			EchoCounters:    true,
			Downlinks:       []string{"20:1"},
		},
		Log: logging.DefaultConfig(),
	}
}

// Options selects the sources Load reads besides the defaults.
type Options struct {
	File    string
	EnvFile string
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load builds and validates the configuration. A missing .env file is not
// an error; a missing YAML file is.
func Load(opts Options) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", opts.File, err)
		}
	}

	var environ map[string]string
	if opts.Environ != nil {
		environ = maps.Clone(opts.Environ)
	} else {
		environ = processEnviron()
	}
	if opts.EnvFile != "" {
		vals, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", opts.EnvFile, err)
		}
		for k, v := range vals {
			if _, set := environ[k]; !set {
				environ[k] = v
			}
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func processEnviron() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

// Validate checks every field that can be checked without hardware.
func (c Config) Validate() error {
	if _, err := c.BoardKind(); err != nil {
		return err
	}
	if _, err := c.Parameters([6]byte{}); err != nil {
		return err
	}
	if c.Radio.JoinRetry < 0 {
		return fmt.Errorf("%w: radio.join_retry %s", ErrInvalid, c.Radio.JoinRetry)
	}
	if c.Radio.OperationTimeout < 0 {
		return fmt.Errorf("%w: radio.operation_timeout %s", ErrInvalid, c.Radio.OperationTimeout)
	}
	if c.Task.UplinkInterval <= 0 {
		return fmt.Errorf("%w: task.uplink_interval %s", ErrInvalid, c.Task.UplinkInterval)
	}
	if c.Sim.JoinFailures < 0 || c.Sim.Airtime < 0 || c.Sim.JoinAcceptDelay < 0 || c.Sim.RxDelay < 0 {
		return fmt.Errorf("%w: negative sim setting", ErrInvalid)
	}
	if limit := simstack.DefaultConfig().TxTimeout; c.Sim.Airtime >= limit {
		return fmt.Errorf("%w: sim.airtime %s must stay under the %s tx timeout", ErrInvalid, c.Sim.Airtime, limit)
	}
	if _, err := c.SimDownlinks(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c Config) BoardKind() (lorawan.Board, error) {
	b, err := lorawan.ParseBoard(c.Board)
	if err != nil {
		return b, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return b, nil
}

// Parameters decodes the credentials, taking the DevEUI from mac when none
// is configured.
func (c Config) Parameters(mac [6]byte) (lorawan.Parameters, error) {
	cr := c.Credentials
	if cr.DevEUI == "" {
		return lorawan.ParseParametersWithMAC(cr.AppEUI, cr.AppKey, mac)
	}
	return lorawan.ParseParameters(cr.AppEUI, cr.AppKey, cr.DevEUI)
}

// SimDownlinks parses the scripted downlinks.
func (c Config) SimDownlinks() ([]simstack.Downlink, error) {
	out := make([]simstack.Downlink, 0, len(c.Sim.Downlinks))
	for _, entry := range c.Sim.Downlinks {
		p, payload, ok := strings.Cut(strings.TrimSpace(entry), ":")
		port, err := strconv.ParseUint(p, 10, 8)
		if !ok || err != nil || port == 0 {
			return nil, fmt.Errorf("%w: sim downlink %q, want port:payload", ErrInvalid, entry)
		}
		out = append(out, simstack.Downlink{Port: uint8(port), Payload: []byte(payload)})
	}
	return out, nil
}

// Simulation returns the simulated stack settings.
func (c Config) Simulation() (simstack.Config, error) {
	downs, err := c.SimDownlinks()
	if err != nil {
		return simstack.Config{}, err
	}
	var fallback simstack.Network
	if c.Sim.EchoCounters {
		fallback = simstack.Echo(map[uint8]uint8{
			counter.PortConfirmed:   counter.PortConfirmedEcho,
			counter.PortUnconfirmed: counter.PortUnconfirmedEcho,
		})
	}
	return simstack.Config{
		JoinFailures:    c.Sim.JoinFailures,
		JoinAcceptDelay: c.Sim.JoinAcceptDelay,
		RxDelay:         c.Sim.RxDelay,
		Network:         simstack.NewScripted(fallback, downs...),
	}, nil
}
