package dispatcher

import (
	"time"

	"github.com/voxmill/flowbridge/internal/bridge"
	"github.com/voxmill/flowbridge/internal/event"
	"github.com/voxmill/flowbridge/internal/logging"
	"github.com/voxmill/flowbridge/internal/state"
)

const (
	defaultConnectAttempts   = 15
	defaultConnectRetryDelay = 2 * time.Second
	defaultReadyTimeout      = 10 * time.Second
	defaultReadyPollInterval = 250 * time.Millisecond
)

type config struct {
	shared            *state.Shared
	notifier          *event.Notifier
	logger            *logging.Logger
	connectAttempts   int
	connectRetryDelay time.Duration
	readyTimeout      time.Duration
	readyPollInterval time.Duration
	bridgeOpts        []bridge.Option
}

func defaultDispatcherConfig() config {
	return config{
		shared:            state.NewShared(),
		notifier:          event.NewNotifier(0),
		logger:            logging.Nop(),
		connectAttempts:   defaultConnectAttempts,
		connectRetryDelay: defaultConnectRetryDelay,
		readyTimeout:      defaultReadyTimeout,
		readyPollInterval: defaultReadyPollInterval,
	}
}

// Option configures a Dispatcher.
type Option func(*config)

// WithShared supplies an externally held shared state store, letting the
// caller keep a reference for direct UI polling.
func WithShared(s *state.Shared) Option {
	return func(c *config) {
		if s != nil {
			c.shared = s
		}
	}
}

// WithNotifier supplies the control-event channel.
func WithNotifier(n *event.Notifier) Option {
	return func(c *config) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConnectRetry sets the bounded connect loop: attempts and the fixed
// delay between them.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(c *config) {
		if attempts > 0 {
			c.connectAttempts = attempts
		}
		if delay > 0 {
			c.connectRetryDelay = delay
		}
	}
}

// WithReadyWindow sets the poll-until-ready window after a detached start.
func WithReadyWindow(timeout, pollInterval time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.readyTimeout = timeout
		}
		if pollInterval > 0 {
			c.readyPollInterval = pollInterval
		}
	}
}

// WithBridgeOptions forwards options to every bridge the dispatcher
// creates.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(c *config) { c.bridgeOpts = append(c.bridgeOpts, opts...) }
}
