package checkout

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/notify"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/payment"
)

// --- Mock implementations ---

type mockGateway struct {
	resp  *payment.Response
	err   error
	calls atomic.Int32

	// When set, Process blocks until release is closed.
	started chan struct{}
	release chan struct{}

	mu   sync.Mutex
	last payment.Request
}

func (m *mockGateway) Process(_ context.Context, req payment.Request) (*payment.Response, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	if m.started != nil {
		close(m.started)
		<-m.release
	}
	return m.resp, m.err
}

func (m *mockGateway) lastRequest() payment.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type sent struct {
	message  string
	severity notify.Severity
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (m *mockNotifier) Notify(message string, severity notify.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{message: message, severity: severity})
}

func (m *mockNotifier) last() sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sent{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// --- Helpers ---

func validForm() Form {
	return Form{
		CardholderName: "Jane Doe",
		CardNumber:     "4111111111111111",
		ExpiryDate:     "12/30",
		CVV:            "123",
	}
}

func exampleCart() *cart.Store {
	s := cart.NewStore()
	s.Add("Widget", decimal.RequireFromString("9.99"))
	s.Add("Widget", decimal.RequireFromString("9.99"))
	s.Add("Gadget", decimal.RequireFromString("4.50"))
	return s
}

func newOrchestrator(c *cart.Store, gw Gateway, n notify.Notifier, opts ...Option) *Orchestrator {
	return New(c, gw, n, render.NewProjector(currency.USD), opts...)
}

// --- Tests ---

func TestOpen_EmptyCart(t *testing.T) {
	n := &mockNotifier{}
	o := newOrchestrator(cart.NewStore(), &mockGateway{}, n)

	_, err := o.Open()
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, sent{message: MsgEmptyCart, severity: notify.Error}, n.last())

	_, ok := o.Summary()
	assert.False(t, ok)
}

func TestOpen_FreezesSummary(t *testing.T) {
	c := exampleCart()
	o := newOrchestrator(c, &mockGateway{}, &mockNotifier{})

	s, err := o.Open()
	require.NoError(t, err)
	assert.Equal(t, FormOpen, o.State())
	assert.Equal(t, "24.48", s.Total)

	c.Add("Sprocket", decimal.NewFromInt(1))
	frozen, ok := o.Summary()
	require.True(t, ok)
	assert.Equal(t, "24.48", frozen.Total)
}

func TestClose(t *testing.T) {
	o := newOrchestrator(exampleCart(), &mockGateway{}, &mockNotifier{})
	_, err := o.Open()
	require.NoError(t, err)

	o.Close()
	assert.Equal(t, Idle, o.State())

	// Closing again is harmless.
	o.Close()
	assert.Equal(t, Idle, o.State())
}

func TestSubmit_FormNotOpen(t *testing.T) {
	gw := &mockGateway{}
	o := newOrchestrator(exampleCart(), gw, &mockNotifier{})

	_, err := o.Submit(context.Background(), validForm())
	require.ErrorIs(t, err, ErrFormNotOpen)
	assert.Equal(t, int32(0), gw.calls.Load())
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *Form)
		wantMsg string
		field   string
	}{
		{name: "missing name", mutate: func(f *Form) { f.CardholderName = "" }, wantMsg: MsgMissingFields, field: "CardholderName"},
		{name: "missing number", mutate: func(f *Form) { f.CardNumber = "" }, wantMsg: MsgMissingFields, field: "CardNumber"},
		{name: "missing expiry", mutate: func(f *Form) { f.ExpiryDate = "" }, wantMsg: MsgMissingFields, field: "ExpiryDate"},
		{name: "missing cvv", mutate: func(f *Form) { f.CVV = "" }, wantMsg: MsgMissingFields, field: "CVV"},
		{name: "short card number", mutate: func(f *Form) { f.CardNumber = "411111111111111" }, wantMsg: MsgInvalidCard, field: "CardNumber"},
		{name: "missing wins over short", mutate: func(f *Form) { f.CardNumber = "4111"; f.CVV = "" }, wantMsg: MsgMissingFields, field: "CVV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := exampleCart()
			gw := &mockGateway{}
			n := &mockNotifier{}
			o := newOrchestrator(c, gw, n)
			_, err := o.Open()
			require.NoError(t, err)

			f := validForm()
			tt.mutate(&f)
			_, err = o.Submit(context.Background(), f)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantMsg, ve.Message)
			assert.Contains(t, ve.Fields, tt.field)
			assert.Equal(t, FormOpen, o.State())
			assert.Equal(t, sent{message: tt.wantMsg, severity: notify.Error}, n.last())
			assert.Equal(t, int32(0), gw.calls.Load(), "no request may be sent for invalid input")
			assert.Equal(t, 2, c.Len())
		})
	}
}

func TestSubmit_Completed(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{resp: &payment.Response{Status: payment.StatusCompleted, TransactionID: "TX123"}}
	n := &mockNotifier{}

	var transitions []State
	completed := false
	o := newOrchestrator(c, gw, n,
		WithTransitionHook(func(_, to State) { transitions = append(transitions, to) }),
		WithOnCompleted(func() { completed = true }),
	)
	_, err := o.Open()
	require.NoError(t, err)

	resp, err := o.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, "TX123", resp.TransactionID)

	assert.True(t, c.IsEmpty())
	assert.Equal(t, Idle, o.State())
	assert.True(t, completed)
	assert.Equal(t, notify.Success, n.last().severity)
	assert.Contains(t, n.last().message, "TX123")
	assert.Equal(t, []State{FormOpen, Validating, Submitting, Succeeded, Idle}, transitions)

	req := gw.lastRequest()
	assert.True(t, decimal.RequireFromString("24.48").Equal(req.Amount))
	require.Len(t, req.OrderItems, 2)
	assert.Equal(t, payment.OrderItem{ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("9.99")}, req.OrderItems[0])
	assert.Equal(t, "Gadget", req.OrderItems[1].ProductName)
	assert.Equal(t, "Jane Doe", req.CardholderName)
}

func TestSubmit_Declined(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{resp: &payment.Response{Status: "DECLINED", ErrorMessage: "Insufficient funds"}}
	n := &mockNotifier{}
	o := newOrchestrator(c, gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())

	var de *DeclinedError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "DECLINED", de.Status)
	assert.Equal(t, sent{message: "Insufficient funds", severity: notify.Error}, n.last())

	snap := c.Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.True(t, decimal.RequireFromString("24.48").Equal(snap.Total))
	assert.Equal(t, FormOpen, o.State())
}

func TestSubmit_DeclinedWithoutMessage(t *testing.T) {
	gw := &mockGateway{resp: &payment.Response{Status: "FAILED"}}
	n := &mockNotifier{}
	o := newOrchestrator(exampleCart(), gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())
	var de *DeclinedError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, MsgPaymentFailed, n.last().message)
}

func TestSubmit_TransportFailure(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{err: &payment.TransportError{Err: errors.New("connection refused")}}
	n := &mockNotifier{}
	o := newOrchestrator(c, gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	var pte *payment.TransportError
	assert.ErrorAs(t, err, &pte)
	assert.Equal(t, "Payment processing failed: connection refused", n.last().message)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, FormOpen, o.State())
}

func TestSubmit_TransportFailureMessageOmitsEndpoint(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{err: &payment.TransportError{Err: errors.Wrap(&url.Error{
		Op:  "Post",
		URL: "http://payments.internal:8081" + payment.DefaultPath,
		Err: context.Canceled,
	}, "send request")}}
	n := &mockNotifier{}
	o := newOrchestrator(c, gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Payment processing failed: context canceled", te.Message())
	assert.Equal(t, te.Message(), n.last().message)
	assert.NotContains(t, n.last().message, "payments.internal")
}

func TestSubmit_RetryAfterFailure(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{resp: &payment.Response{Status: "DECLINED", ErrorMessage: "Insufficient funds"}}
	o := newOrchestrator(c, gw, &mockNotifier{})
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())
	require.Error(t, err)

	gw.resp = &payment.Response{Status: payment.StatusCompleted, TransactionID: "TX2"}
	_, err = o.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, int32(2), gw.calls.Load())
}

func TestSubmit_UsesCartAtSubmissionTime(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{resp: &payment.Response{Status: payment.StatusCompleted, TransactionID: "TX1"}}
	o := newOrchestrator(c, gw, &mockNotifier{})
	_, err := o.Open()
	require.NoError(t, err)

	c.Add("Sprocket", decimal.RequireFromString("1.02"))

	_, err = o.Submit(context.Background(), validForm())
	require.NoError(t, err)
	req := gw.lastRequest()
	assert.True(t, decimal.RequireFromString("25.50").Equal(req.Amount))
	assert.Len(t, req.OrderItems, 3)
}

func TestSubmit_CartEmptiedAfterOpen(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{}
	n := &mockNotifier{}
	o := newOrchestrator(c, gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	c.Clear()
	_, err = o.Submit(context.Background(), validForm())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, int32(0), gw.calls.Load())
}

func TestSubmit_SecondSubmitWhileInFlightIsRejected(t *testing.T) {
	c := exampleCart()
	gw := &mockGateway{
		resp:    &payment.Response{Status: payment.StatusCompleted, TransactionID: "TX1"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := newOrchestrator(c, gw, &mockNotifier{})
	_, err := o.Open()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), validForm())
		done <- err
	}()

	<-gw.started
	assert.Equal(t, Submitting, o.State())

	_, err = o.Submit(context.Background(), validForm())
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	_, err = o.Open()
	require.ErrorIs(t, err, ErrSubmissionInFlight)

	// Closing while in flight is ignored.
	o.Close()
	assert.Equal(t, Submitting, o.State())

	// Cart edits stay allowed; the in-flight request already has its snapshot.
	c.Add("Sprocket", decimal.NewFromInt(1))

	close(gw.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submission did not finish")
	}
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Len(t, gw.lastRequest().OrderItems, 2)
	assert.Equal(t, Idle, o.State())
}

func TestSubmit_NotificationCount(t *testing.T) {
	n := &mockNotifier{}
	gw := &mockGateway{resp: &payment.Response{Status: payment.StatusCompleted, TransactionID: "TX1"}}
	o := newOrchestrator(exampleCart(), gw, n)
	_, err := o.Open()
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, 1, n.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "submitting", Submitting.String())
	assert.Equal(t, "state(42)", State(42).String())
}
