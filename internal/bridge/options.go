package bridge

import (
	"time"

	"github.com/voxmill/flowbridge/internal/data"
	"github.com/voxmill/flowbridge/internal/engine"
	"github.com/voxmill/flowbridge/internal/event"
	"github.com/voxmill/flowbridge/internal/logging"
)

const (
	defaultQueueSize         = 64
	defaultRecvTimeout       = 100 * time.Millisecond
	defaultConnectWait       = 200 * time.Millisecond
	defaultJoinTimeout       = 2 * time.Second
	defaultSessionTrackLimit = 100
)

type config struct {
	dial              engine.DialFunc
	notifier          *event.Notifier
	logger            *logging.Logger
	queueSize         int
	recvTimeout       time.Duration
	connectWait       time.Duration
	joinTimeout       time.Duration
	sessionTrackLimit int
	minLogLevel       data.LogLevel
}

func defaultConfig() config {
	return config{
		dial:              engine.Dialer(""),
		logger:            logging.Nop(),
		queueSize:         defaultQueueSize,
		recvTimeout:       defaultRecvTimeout,
		connectWait:       defaultConnectWait,
		joinTimeout:       defaultJoinTimeout,
		sessionTrackLimit: defaultSessionTrackLimit,
		minLogLevel:       data.LevelDebug,
	}
}

// Option configures a Bridge.
type Option func(*config)

// WithDial sets how the worker attaches to the engine. Tests use this to
// substitute a fake connection.
func WithDial(dial engine.DialFunc) Option {
	return func(c *config) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// WithNotifier sets the control channel for fatal notifications.
func WithNotifier(n *event.Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueueSize bounds the outbound command queue.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithRecvTimeout sets the inbound wait per loop iteration, which also
// bounds how quickly the stop signal is observed.
func WithRecvTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.recvTimeout = d
		}
	}
}

// WithConnectWait sets how long Connect blocks for the initial attach
// attempt to resolve.
func WithConnectWait(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.connectWait = d
		}
	}
}

// WithJoinTimeout sets how long Disconnect waits for the worker before
// abandoning it.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.joinTimeout = d
		}
	}
}

// WithSessionTrackLimit bounds the audio bridge's per-question tracking
// sets.
func WithSessionTrackLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.sessionTrackLimit = n
		}
	}
}

// WithMinLogLevel sets the system-log bridge's level filter.
func WithMinLogLevel(l data.LogLevel) Option {
	return func(c *config) { c.minLogLevel = l }
}
