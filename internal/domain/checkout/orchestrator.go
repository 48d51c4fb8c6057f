package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/notify"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/payment"
)

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Snapshot() cart.Snapshot
	Clear()
}

// Gateway submits payment requests. A declined payment is returned as a
// response; only transport failures are errors.
type Gateway interface {
	Process(ctx context.Context, req payment.Request) (*payment.Response, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for state transitions.
func WithLogger(lg *zap.Logger) Option {
	return func(o *Orchestrator) { o.lg = lg }
}

// WithTracerProvider enables a span per submission.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer("storefront/checkout") }
}

// WithMeterProvider enables the attempts counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) { o.meter = mp.Meter("storefront/checkout") }
}

// WithOnCompleted registers fn to run after a completed payment has cleared
// the cart and closed the form.
func WithOnCompleted(fn func()) Option {
	return func(o *Orchestrator) { o.onCompleted = fn }
}

// WithTransitionHook registers fn to observe every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// Orchestrator is the checkout state machine for one cart.
type Orchestrator struct {
	cart      Cart
	gateway   Gateway
	notifier  notify.Notifier
	projector *render.Projector

	lg           *zap.Logger
	tracer       trace.Tracer
	meter        metric.Meter
	attempts     metric.Int64Counter
	onCompleted  func()
	onTransition func(from, to State)

	mu      sync.Mutex
	state   State
	summary *render.Summary
}

// New creates an Orchestrator in the Idle state.
func New(c Cart, gw Gateway, n notify.Notifier, p *render.Projector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:      c,
		gateway:   gw,
		notifier:  n,
		projector: p,
		lg:        zap.NewNop(),
		tracer:    tracenoop.NewTracerProvider().Tracer("storefront/checkout"),
		meter:     metricnoop.NewMeterProvider().Meter("storefront/checkout"),
	}
	for _, opt := range opts {
		opt(o)
	}

	attempts, err := o.meter.Int64Counter("storefront.checkout.attempts",
		metric.WithDescription("Payment submissions by outcome"),
	)
	if err != nil {
		o.lg.Warn("Checkout attempts counter unavailable", zap.Error(err))
		attempts, _ = metricnoop.NewMeterProvider().Meter("").Int64Counter("")
	}
	o.attempts = attempts
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Summary returns the payment summary frozen when the form was opened.
func (o *Orchestrator) Summary() (render.Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.summary == nil {
		return render.Summary{}, false
	}
	return *o.summary, true
}

// Open shows the payment form with a summary of the cart as it is now. An
// empty cart is rejected and the state stays Idle.
func (o *Orchestrator) Open() (render.Summary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlightLocked() {
		return render.Summary{}, ErrSubmissionInFlight
	}

	snap := o.cart.Snapshot()
	if snap.IsEmpty() {
		o.summary = nil
		o.setStateLocked(Idle)
		o.notifier.Notify(MsgEmptyCart, notify.Error)
		return render.Summary{}, ErrEmptyCart
	}

	s := o.projector.Summarize(snap)
	o.summary = &s
	o.setStateLocked(FormOpen)
	return s, nil
}

// Close dismisses the payment form. It is a no-op when the form is not open
// and while a submission is in flight, since that request cannot be
// cancelled.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != FormOpen {
		return
	}
	o.summary = nil
	o.setStateLocked(Idle)
}

// Submit validates f and, if it passes, sends exactly one payment request
// built from the cart as it is at this moment.
//
// Errors: *ValidationError leaves the form open; ErrSubmissionInFlight and
// ErrFormNotOpen reject the call without side effects; *DeclinedError and
// *TransportError leave the cart untouched and the form open for a retry.
// On success the cart is cleared and the form closed.
func (o *Orchestrator) Submit(ctx context.Context, f Form) (*payment.Response, error) {
	req, err := o.begin(ctx, f)
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "checkout.Submit",
		trace.WithAttributes(
			attribute.Int("checkout.items", len(req.OrderItems)),
			attribute.String("checkout.amount", req.Amount.String()),
		),
	)
	defer span.End()

	resp, err := o.gateway.Process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		te := &TransportError{Err: err}
		return nil, o.fail(ctx, te, te.Message(), "transport_error")
	}
	if !resp.Completed() {
		span.SetStatus(codes.Error, "declined")
		msg := resp.ErrorMessage
		if msg == "" {
			msg = MsgPaymentFailed
		}
		return resp, o.fail(ctx, &DeclinedError{
			Status:        resp.Status,
			TransactionID: resp.TransactionID,
			Reason:        resp.ErrorMessage,
		}, msg, "declined")
	}

	span.SetAttributes(attribute.String("checkout.transaction_id", resp.TransactionID))
	o.complete(ctx, resp)
	return resp, nil
}

// begin runs the FormOpen → Validating → Submitting transitions and returns
// the request to send.
func (o *Orchestrator) begin(ctx context.Context, f Form) (payment.Request, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlightLocked() {
		o.count(ctx, "rejected_in_flight")
		return payment.Request{}, ErrSubmissionInFlight
	}
	if o.state != FormOpen {
		return payment.Request{}, ErrFormNotOpen
	}

	o.setStateLocked(Validating)
	if err := Validate(f); err != nil {
		o.setStateLocked(FormOpen)
		var ve *ValidationError
		if errors.As(err, &ve) {
			o.notifier.Notify(ve.Message, notify.Error)
		}
		o.count(ctx, "invalid")
		return payment.Request{}, err
	}

	// The request uses the cart as it is now, not as it was when the form
	// opened.
	snap := o.cart.Snapshot()
	if snap.IsEmpty() {
		o.summary = nil
		o.setStateLocked(Idle)
		o.notifier.Notify(MsgEmptyCart, notify.Error)
		o.count(ctx, "empty_cart")
		return payment.Request{}, ErrEmptyCart
	}

	o.setStateLocked(Submitting)
	return newPaymentRequest(f, snap), nil
}

func (o *Orchestrator) fail(ctx context.Context, err error, msg, outcome string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setStateLocked(Failed)
	o.notifier.Notify(msg, notify.Error)
	o.count(ctx, outcome)
	o.setStateLocked(FormOpen)
	return err
}

func (o *Orchestrator) complete(ctx context.Context, resp *payment.Response) {
	o.mu.Lock()
	o.setStateLocked(Succeeded)
	o.notifier.Notify(fmt.Sprintf(msgSuccessFormat, resp.TransactionID), notify.Success)
	o.cart.Clear()
	o.summary = nil
	o.count(ctx, "completed")
	o.setStateLocked(Idle)
	o.mu.Unlock()

	if o.onCompleted != nil {
		o.onCompleted()
	}
}

func (o *Orchestrator) inFlightLocked() bool {
	return o.state == Validating || o.state == Submitting
}

func (o *Orchestrator) setStateLocked(to State) {
	from := o.state
	if from == to {
		return
	}
	o.state = to
	o.lg.Debug("Checkout state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if o.onTransition != nil {
		o.onTransition(from, to)
	}
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	o.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func newPaymentRequest(f Form, snap cart.Snapshot) payment.Request {
	items := make([]payment.OrderItem, len(snap.Items))
	for i, li := range snap.Items {
		items[i] = payment.OrderItem{
			ProductName: li.Name,
			Quantity:    li.Quantity,
			Price:       li.UnitPrice,
		}
	}
	return payment.Request{
		CardholderName: f.CardholderName,
		CardNumber:     f.CardNumber,
		ExpiryDate:     f.ExpiryDate,
		CVV:            f.CVV,
		Amount:         snap.Total,
		OrderItems:     items,
	}
}
