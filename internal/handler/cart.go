package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storefront"
)

func writeState(w http.ResponseWriter, status int, s *storefront.Session) {
	st := s.State()
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeState(e, st)
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeState(w, http.StatusOK, h.session(w, r))
}

// addItem adds either the named item at the given price or, for
// {productId}, the catalog product's name and price.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAddItem(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ProductID != "" {
		p, err := h.products.GetByID(r.Context(), req.ProductID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			writeError(w, http.StatusNotFound, "product not found")
			return
		case err != nil:
			zctx.From(r.Context()).Error("Resolve product", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		req.Name, req.Price = p.Name, p.Price
	}

	s := h.session(w, r)
	s.AddToCart(req.Name, req.Price)
	writeState(w, http.StatusOK, s)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.RemoveItem(r.PathValue("name"))
	writeState(w, http.StatusOK, s)
}

func (h *Handler) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	delta, err := decodeDelta(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(w, r)
	s.AdjustQuantity(r.PathValue("name"), delta)
	writeState(w, http.StatusOK, s)
}

// dispatchAction runs a row action exactly as it was rendered.
func (h *Handler) dispatchAction(w http.ResponseWriter, r *http.Request) {
	a, err := decodeAction(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(w, r)
	if err := s.Dispatch(a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeState(w, http.StatusOK, s)
}

func (h *Handler) toggleCart(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.ToggleCart()
	writeState(w, http.StatusOK, s)
}

func (h *Handler) escape(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.Escape()
	writeState(w, http.StatusOK, s)
}

func (h *Handler) outsideClick(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOutsideClick(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.session(w, r)
	s.OutsideClick(req.Target, req.Narrow)
	writeState(w, http.StatusOK, s)
}
