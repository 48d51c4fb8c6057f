// Package storefront hosts one cart controller per browser session: the cart,
// its rendered view, the notification channel, the checkout flow, and the
// sidebar/modal visibility flags the page reflects.
package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/notify"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/payment"
)

// ErrUnknownAction is returned by Dispatch for an unrecognised action kind.
var ErrUnknownAction = errors.New("unknown action")

// Target identifies what an outside click landed on.
type Target string

const (
	// TargetPaymentBackdrop is the dimmed area around the payment form.
	TargetPaymentBackdrop Target = "payment-backdrop"
	// TargetPage is anywhere on the page outside the cart sidebar.
	TargetPage Target = "page"
)

// Deps holds what every session shares.
type Deps struct {
	Gateway              checkout.Gateway
	Projector            *render.Projector
	NotificationLifetime time.Duration
	Logger               *zap.Logger
	TracerProvider       trace.TracerProvider
	MeterProvider        metric.MeterProvider
	// Painter, when set, receives every refreshed view.
	Painter render.Painter
}

// State is everything the page needs to draw itself.
type State struct {
	View         render.View
	CartOpen     bool
	PaymentOpen  bool
	Checkout     checkout.State
	Summary      *render.Summary
	Notification *notify.Notification
}

// Session is the cart controller for one browser session.
type Session struct {
	id        string
	store     *cart.Store
	notifier  *notify.Emitter
	checkout  *checkout.Orchestrator
	projector *render.Projector
	painter   render.Painter
	lg        *zap.Logger

	mu       sync.Mutex
	view     render.View
	cartOpen bool
}

// NewSession creates a session with an empty cart.
func NewSession(id string, deps Deps) *Session {
	lg := deps.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.With(zap.String("session", id))

	s := &Session{
		id:        id,
		store:     cart.NewStore(),
		projector: deps.Projector,
		painter:   deps.Painter,
		lg:        lg,
	}
	s.notifier = notify.NewEmitter(lg, notify.WithLifetime(deps.NotificationLifetime))

	opts := []checkout.Option{
		checkout.WithLogger(lg),
		checkout.WithOnCompleted(s.afterPayment),
	}
	if deps.TracerProvider != nil {
		opts = append(opts, checkout.WithTracerProvider(deps.TracerProvider))
	}
	if deps.MeterProvider != nil {
		opts = append(opts, checkout.WithMeterProvider(deps.MeterProvider))
	}
	s.checkout = checkout.New(s.store, deps.Gateway, s.notifier, deps.Projector, opts...)

	s.mu.Lock()
	s.refreshLocked()
	s.mu.Unlock()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// AddToCart adds one unit of the named product.
func (s *Session) AddToCart(name string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Add(name, price)
	s.refreshLocked()
	s.notifier.Success(fmt.Sprintf("%s added to cart!", name))
}

// RemoveItem deletes the named line. The notification is shown even when the
// line was already gone.
func (s *Session) RemoveItem(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(name)
}

// AdjustQuantity changes the quantity of the named line by delta. Routine
// quantity edits repaint silently; dropping to zero behaves like RemoveItem.
func (s *Session) AdjustQuantity(name string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.store.Adjust(name, delta) {
	case cart.Removed:
		s.refreshLocked()
		s.notifier.Success(fmt.Sprintf("%s removed from cart!", name))
	case cart.Updated:
		s.refreshLocked()
	case cart.Unchanged:
	}
}

// Dispatch runs a row action produced by the render projector.
func (s *Session) Dispatch(a render.Action) error {
	switch a.Kind {
	case render.ActionIncrement:
		s.AdjustQuantity(a.Item, 1)
	case render.ActionDecrement:
		s.AdjustQuantity(a.Item, -1)
	case render.ActionRemove:
		s.RemoveItem(a.Item)
	default:
		return errors.Wrapf(ErrUnknownAction, "%q", a.Kind)
	}
	return nil
}

// ToggleCart opens or closes the cart sidebar and returns the new state.
func (s *Session) ToggleCart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartOpen = !s.cartOpen
	return s.cartOpen
}

// OpenCheckout opens the payment form.
func (s *Session) OpenCheckout() (render.Summary, error) {
	return s.checkout.Open()
}

// SubmitPayment submits the payment form. The session lock is not held while
// the payment call is in flight, so the cart stays editable.
//
// Cancellation of ctx does not reach the payment call: once sent, a payment
// runs until the service answers or the client timeout fires, so a charge is
// never left unreconciled.
func (s *Session) SubmitPayment(ctx context.Context, f checkout.Form) (*payment.Response, error) {
	resp, err := s.checkout.Submit(context.WithoutCancel(ctx), f)

	s.mu.Lock()
	s.refreshLocked()
	s.mu.Unlock()
	return resp, err
}

// ClosePayment dismisses the payment form; the entered fields are discarded.
func (s *Session) ClosePayment() {
	s.checkout.Close()
}

// Escape closes the payment form and the cart sidebar.
func (s *Session) Escape() {
	s.checkout.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartOpen = false
}

// OutsideClick handles a click outside the open panels. Clicks on the page
// collapse the sidebar only on narrow viewports, where it covers the content.
func (s *Session) OutsideClick(target Target, narrow bool) {
	switch target {
	case TargetPaymentBackdrop:
		s.checkout.Close()
	case TargetPage:
		if !narrow {
			return
		}
		s.mu.Lock()
		s.cartOpen = false
		s.mu.Unlock()
	}
}

// State returns a consistent picture of the session for the page.
func (s *Session) State() State {
	s.mu.Lock()
	st := State{
		View:     s.view,
		CartOpen: s.cartOpen,
	}
	s.mu.Unlock()

	st.Checkout = s.checkout.State()
	st.PaymentOpen = st.Checkout != checkout.Idle
	if sum, ok := s.checkout.Summary(); ok {
		st.Summary = &sum
	}
	if n, ok := s.notifier.Current(); ok {
		st.Notification = &n
	}
	return st
}

// Busy reports whether a payment is in flight.
func (s *Session) Busy() bool {
	st := s.checkout.State()
	return st == checkout.Validating || st == checkout.Submitting
}

// Close releases the session's notification timer.
func (s *Session) Close() {
	s.notifier.Close()
}

// afterPayment collapses the sidebar once a completed payment has cleared
// the cart.
func (s *Session) afterPayment() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartOpen = false
	s.refreshLocked()
}

func (s *Session) removeLocked(name string) {
	s.store.Remove(name)
	s.refreshLocked()
	s.notifier.Success(fmt.Sprintf("%s removed from cart!", name))
}

func (s *Session) refreshLocked() {
	s.view = s.projector.Project(s.store.Snapshot())
	if s.painter != nil {
		s.painter.Paint(s.view)
	}
}
