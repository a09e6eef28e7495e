package device

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zacpullen/arena-api/pkg/acquisition"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/event"
	"github.com/zacpullen/arena-api/pkg/log"
	"github.com/zacpullen/arena-api/pkg/metrics"
)

// Default configuration values.
const (
	DefaultNumBuffers = 10
	DefaultPollTime   = time.Second
)

// Timeout is a wait budget. In YAML it is written as "infinite", a Go
// duration ("250ms") or an integer number of milliseconds.
type Timeout time.Duration

// Infinite waits without a deadline.
const Infinite = Timeout(acquisition.Infinite)

// Duration returns the timeout as a time.Duration. Infinite maps to
// acquisition.Infinite and event.Infinite.
func (t Timeout) Duration() time.Duration { return time.Duration(t) }

func (t Timeout) String() string {
	if t == Infinite {
		return "infinite"
	}
	return time.Duration(t).String()
}

func (t Timeout) MarshalYAML() (any, error) { return t.String(), nil }

func (t *Timeout) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if strings.EqualFold(s, "infinite") {
		*t = Infinite
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*t = Timeout(time.Duration(ms) * time.Millisecond)
		return t.check()
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w: timeout %q is neither infinite, a duration nor milliseconds", value.Line, errkind.ErrInvalidValue, s)
	}
	*t = Timeout(d)
	return t.check()
}

func (t Timeout) check() error {
	if t < 0 {
		return fmt.Errorf("%w: timeout %v is negative", errkind.ErrInvalidValue, time.Duration(t))
	}
	return nil
}

// Config configures a Device.
type Config struct {
	// DefaultNumBuffers is the pool size of StartStream(0). At least 1.
	DefaultNumBuffers int `yaml:"defaultNumBuffers"`

	// GetBufferTimeout is the timeout of NextBuffer.
	GetBufferTimeout Timeout `yaml:"getBufferTimeout"`

	// WaitOnEventTimeout is the timeout of NextEvent.
	WaitOnEventTimeout Timeout `yaml:"waitOnEventTimeout"`

	// PollTime is the elapsed time PollNodes reports to the node maps.
	PollTime time.Duration `yaml:"pollTime"`

	// EventPoolSize is the number of event buffers.
	EventPoolSize int `yaml:"eventPoolSize"`

	// StreamLog is an optional path of a CBOR stream event log.
	StreamLog string `yaml:"streamLog,omitempty"`

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger `yaml:"-"`

	// StreamLogger receives stream and event channel events in addition
	// to StreamLog and Logger.
	StreamLogger log.Logger `yaml:"-"`

	// Metrics records stream and event metrics when set.
	Metrics *metrics.Collector `yaml:"-"`
}

// DefaultConfig returns a Config with the defaults of a freshly created
// device.
func DefaultConfig() Config {
	return Config{
		DefaultNumBuffers:  DefaultNumBuffers,
		GetBufferTimeout:   Infinite,
		WaitOnEventTimeout: Infinite,
		PollTime:           DefaultPollTime,
		EventPoolSize:      event.DefaultPoolSize,
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their default.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML config over DefaultConfig and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing device config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config bounds.
func (c *Config) Validate() error {
	if c.DefaultNumBuffers < 1 {
		return fmt.Errorf("%w: defaultNumBuffers %d must be at least 1", errkind.ErrOutOfRange, c.DefaultNumBuffers)
	}
	if c.GetBufferTimeout < 0 || c.WaitOnEventTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", errkind.ErrInvalidValue)
	}
	if c.PollTime < time.Millisecond {
		return fmt.Errorf("%w: pollTime %v must be at least 1ms", errkind.ErrOutOfRange, c.PollTime)
	}
	if c.EventPoolSize < 1 {
		return fmt.Errorf("%w: eventPoolSize %d must be at least 1", errkind.ErrOutOfRange, c.EventPoolSize)
	}
	return nil
}
