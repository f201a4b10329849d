package tree

import (
	"log/slog"
	"time"
)

// DefaultInterval is the poll period used when none is given.
const DefaultInterval = 200 * time.Millisecond

// Option configures a Tree.
type Option func(*options)

type options struct {
	interval   time.Duration
	factory    Factory
	dispatcher func(func())
	trigger    <-chan struct{}
	clock      Clock
	logger     *slog.Logger
	deferStart bool
}

func defaultOptions() options {
	return options{
		interval:   DefaultInterval,
		factory:    DefaultFactory(),
		dispatcher: func(f func()) { f() },
		clock:      realClock{},
	}
}

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithFactory sets the factory used to construct new devices.
func WithFactory(f Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithDispatcher runs every poll cycle through dispatch, so callers can
// marshal tree updates and notifications onto their own goroutine or event
// loop. dispatch must eventually call the function it is given.
func WithDispatcher(dispatch func(func())) Option {
	return func(o *options) {
		if dispatch != nil {
			o.dispatcher = dispatch
		}
	}
}

// WithTrigger wakes the poller whenever a value arrives on ch, in addition
// to the regular ticks. Typically fed by a hotplug monitor.
func WithTrigger(ch <-chan struct{}) Option {
	return func(o *options) { o.trigger = ch }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDeferredStart makes New return after the first cycle without
// starting the poll loop. Observers attached before Start see every later
// change. Call Start or Close on the returned tree.
func WithDeferredStart() Option {
	return func(o *options) { o.deferStart = true }
}
