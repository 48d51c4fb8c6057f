// Package notify implements transient, self-dismissing status messages.
//
// At most one notification is visible at a time. A new notification replaces
// the current one immediately instead of queueing behind it, and each one is
// removed automatically once its lifetime elapses.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultLifetime is how long a notification stays visible when no lifetime
// is configured.
const DefaultLifetime = 3 * time.Second

// Severity classifies a notification for display.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
)

// Notification is a single user-facing status message.
type Notification struct {
	ID        uint64
	Message   string
	Severity  Severity
	ShownAt   time.Time
	ExpiresAt time.Time
}

// Sink observes notifications as they are shown and hidden. Implementations
// are called with the emitter lock held and must not call back into it.
type Sink interface {
	Show(n Notification)
	Hide(n Notification)
}

// Notifier is the fire-and-forget side channel used by the cart and checkout
// flows.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLifetime sets the visible lifetime of each notification.
func WithLifetime(d time.Duration) Option {
	return func(e *Emitter) {
		if d > 0 {
			e.lifetime = d
		}
	}
}

// WithSink registers a Sink that receives show/hide events.
func WithSink(s Sink) Option {
	return func(e *Emitter) {
		e.sink = s
	}
}

var _ Notifier = (*Emitter)(nil)

// Emitter holds the currently visible notification and its dismissal timer.
type Emitter struct {
	lg       *zap.Logger
	lifetime time.Duration
	sink     Sink
	now      func() time.Time

	mu      sync.Mutex
	seq     uint64
	current *Notification
	timer   *time.Timer
	closed  bool
}

// NewEmitter creates an Emitter. A nil logger disables logging.
func NewEmitter(lg *zap.Logger, opts ...Option) *Emitter {
	if lg == nil {
		lg = zap.NewNop()
	}
	e := &Emitter{
		lg:       lg,
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Notify shows message, superseding whatever is currently visible. It never
// blocks on the display and never fails.
func (e *Emitter) Notify(message string, severity Severity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.hideLocked()

	e.seq++
	now := e.now()
	n := Notification{
		ID:        e.seq,
		Message:   message,
		Severity:  severity,
		ShownAt:   now,
		ExpiresAt: now.Add(e.lifetime),
	}
	e.current = &n

	id := n.ID
	e.timer = time.AfterFunc(e.lifetime, func() {
		e.Dismiss(id)
	})

	e.lg.Debug("Notification shown",
		zap.Uint64("id", n.ID),
		zap.String("severity", string(n.Severity)),
		zap.String("message", n.Message),
	)
	if e.sink != nil {
		e.sink.Show(n)
	}
}

// Success is shorthand for Notify(message, Success).
func (e *Emitter) Success(message string) { e.Notify(message, Success) }

// Error is shorthand for Notify(message, Error).
func (e *Emitter) Error(message string) { e.Notify(message, Error) }

// Info is shorthand for Notify(message, Info).
func (e *Emitter) Info(message string) { e.Notify(message, Info) }

// Current returns the visible notification, if any.
func (e *Emitter) Current() (Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return Notification{}, false
	}
	return *e.current, true
}

// Dismiss hides the notification with the given id. A stale id (one that has
// already been superseded or dismissed) is ignored.
func (e *Emitter) Dismiss(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.ID != id {
		return false
	}
	e.hideLocked()
	return true
}

// Close hides the current notification and stops its timer. Notify is a
// no-op afterwards.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.hideLocked()
	e.closed = true
}

func (e *Emitter) hideLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.current == nil {
		return
	}
	n := *e.current
	e.current = nil
	if e.sink != nil {
		e.sink.Hide(n)
	}
}
