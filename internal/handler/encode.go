package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/notify"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/storefront"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

func encodeState(e *jx.Encoder, st storefront.State) {
	e.ObjStart()
	e.FieldStart("cart")
	encodeView(e, st.View)
	e.FieldStart("cartOpen")
	e.Bool(st.CartOpen)
	e.FieldStart("paymentOpen")
	e.Bool(st.PaymentOpen)
	e.FieldStart("checkout")
	e.Str(st.Checkout.String())
	e.FieldStart("summary")
	if st.Summary != nil {
		encodeSummary(e, *st.Summary)
	} else {
		e.Null()
	}
	e.FieldStart("notification")
	if st.Notification != nil {
		encodeNotification(e, *st.Notification)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func encodeView(e *jx.Encoder, v render.View) {
	e.ObjStart()
	e.FieldStart("count")
	e.Int(v.Count)
	e.FieldStart("lines")
	e.Int(v.Lines)
	e.FieldStart("empty")
	e.Bool(v.Empty)
	e.FieldStart("total")
	e.Str(v.Total)
	e.FieldStart("currency")
	e.Str(v.Currency)
	e.FieldStart("rows")
	e.ArrStart()
	for _, row := range v.Rows {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(row.Name)
		e.FieldStart("unitPrice")
		e.Str(row.UnitPrice)
		e.FieldStart("quantity")
		e.Int(row.Quantity)
		e.FieldStart("lineTotal")
		e.Str(row.LineTotal)
		e.FieldStart("actions")
		e.ArrStart()
		for _, a := range row.Actions {
			encodeAction(e, a)
		}
		e.ArrEnd()
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeAction(e *jx.Encoder, a render.Action) {
	e.ObjStart()
	e.FieldStart("kind")
	e.Str(string(a.Kind))
	e.FieldStart("item")
	e.Str(a.Item)
	if a.Delta != 0 {
		e.FieldStart("delta")
		e.Int(a.Delta)
	}
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s render.Summary) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range s.Items {
		e.ObjStart()
		e.FieldStart("label")
		e.Str(item.Label)
		e.FieldStart("amount")
		e.Str(item.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Str(s.Total)
	e.FieldStart("currency")
	e.Str(s.Currency)
	e.ObjEnd()
}

func encodeNotification(e *jx.Encoder, n notify.Notification) {
	e.ObjStart()
	e.FieldStart("id")
	e.UInt64(n.ID)
	e.FieldStart("message")
	e.Str(n.Message)
	e.FieldStart("severity")
	e.Str(string(n.Severity))
	e.FieldStart("expiresAt")
	e.Str(n.ExpiresAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	p.Image = product.Image{
		Thumbnail: h.imageBaseURL + p.Image.Thumbnail,
		Mobile:    h.imageBaseURL + p.Image.Mobile,
		Tablet:    h.imageBaseURL + p.Image.Tablet,
		Desktop:   h.imageBaseURL + p.Image.Desktop,
	}
	p.Encode(e)
}
