package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/checkout"
)

func (h *Handler) openCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if _, err := s.OpenCheckout(); err != nil {
		status, msg := mapCheckoutError(err)
		writeError(w, status, msg)
		return
	}
	writeState(w, http.StatusOK, s)
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	f, err := decodeForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(w, r)
	resp, err := s.SubmitPayment(r.Context(), f)
	if err != nil {
		status, msg := mapCheckoutError(err)
		if status >= http.StatusInternalServerError {
			zctx.From(r.Context()).Warn("Payment failed", zap.Error(err))
		}
		var ve *checkout.ValidationError
		if errors.As(err, &ve) {
			writeValidationError(w, status, ve)
			return
		}
		writeError(w, status, msg)
		return
	}

	st := s.State()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("transactionId")
		e.Str(resp.TransactionID)
		e.FieldStart("status")
		e.Str(resp.Status)
		e.FieldStart("state")
		encodeState(e, st)
		e.ObjEnd()
	})
}

func (h *Handler) closeCheckout(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.ClosePayment()
	writeState(w, http.StatusOK, s)
}

// mapCheckoutError converts checkout errors to a status code and the message
// the page shows.
func mapCheckoutError(err error) (int, string) {
	var (
		ve *checkout.ValidationError
		de *checkout.DeclinedError
		te *checkout.TransportError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, checkout.MsgEmptyCart
	case errors.Is(err, checkout.ErrSubmissionInFlight), errors.Is(err, checkout.ErrFormNotOpen):
		return http.StatusConflict, err.Error()
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Message
	case errors.As(err, &de):
		if de.Reason != "" {
			return http.StatusPaymentRequired, de.Reason
		}
		return http.StatusPaymentRequired, checkout.MsgPaymentFailed
	case errors.As(err, &te):
		return http.StatusBadGateway, te.Message()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeValidationError(w http.ResponseWriter, status int, ve *checkout.ValidationError) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(ve.Message)
		e.FieldStart("fields")
		e.ObjStart()
		for field, reason := range ve.Fields {
			e.FieldStart(field)
			e.Str(reason)
		}
		e.ObjEnd()
		e.ObjEnd()
	})
}
