// Package handler exposes the storefront sessions and the product catalog
// over HTTP.
package handler

import (
	"net/http"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storefront"
)

// HeaderSession identifies the browser session. Requests without it get a
// fresh session whose id is returned in the same header.
const HeaderSession = "X-Session-ID"

// maxBodySize caps request bodies; the largest is the payment form.
const maxBodySize = 64 << 10

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
}

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	sessions     *storefront.Registry
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, products product.Repository, sessions *storefront.Registry) *Handler {
	return &Handler{
		products:     products,
		sessions:     sessions,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addItem)
	mux.HandleFunc("DELETE /api/cart/items/{name}", h.removeItem)
	mux.HandleFunc("POST /api/cart/items/{name}/quantity", h.adjustQuantity)
	mux.HandleFunc("POST /api/cart/actions", h.dispatchAction)
	mux.HandleFunc("POST /api/cart/toggle", h.toggleCart)

	mux.HandleFunc("POST /api/ui/escape", h.escape)
	mux.HandleFunc("POST /api/ui/outside-click", h.outsideClick)

	mux.HandleFunc("POST /api/checkout", h.openCheckout)
	mux.HandleFunc("POST /api/checkout/payment", h.submitPayment)
	mux.HandleFunc("DELETE /api/checkout", h.closeCheckout)
}

// session resolves the caller's session, creating one when the header is
// absent or names an evicted session, and echoes its id.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *storefront.Session {
	s, _ := h.sessions.GetOrCreate(r.Header.Get(HeaderSession))
	w.Header().Set(HeaderSession, s.ID())
	return s
}
