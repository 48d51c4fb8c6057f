package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/render"
	"github.com/xenking/kart-storefront/internal/storefront"
)

// maxQuantityDelta bounds a single quantity change. The page only sends ±1.
const maxQuantityDelta = 1000

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// decodeBody reads the request body and hands each top-level field to fn.
// An empty body decodes as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %s", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		if errors.Is(err, errBadRequest) {
			return err
		}
		return badRequest("invalid JSON: %s", err)
	}
	return nil
}

// addItemRequest is either {name, price} or {productId}.
type addItemRequest struct {
	Name      string
	Price     decimal.Decimal
	HasPrice  bool
	ProductID string
}

func decodeAddItem(w http.ResponseWriter, r *http.Request) (addItemRequest, error) {
	var req addItemRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			req.Name = v
			return err
		case "productId":
			v, err := d.Str()
			req.ProductID = v
			return err
		case "price":
			price, err := decodeDecimal(d)
			if err != nil {
				return badRequest("price: %s", err)
			}
			req.Price, req.HasPrice = price, true
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, err
	}
	switch {
	case req.ProductID != "":
	case req.Name == "" || !req.HasPrice:
		return req, badRequest("either productId or name and price are required")
	case req.Price.IsNegative():
		return req, badRequest("price must not be negative")
	}
	return req, nil
}

func decodeDelta(w http.ResponseWriter, r *http.Request) (int, error) {
	var (
		delta int
		seen  bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "delta" {
			return d.Skip()
		}
		v, err := d.Int()
		delta, seen = v, true
		return err
	})
	switch {
	case err != nil:
	case !seen:
		err = badRequest("delta is required")
	case delta > maxQuantityDelta || delta < -maxQuantityDelta:
		err = badRequest("delta must be within ±%d", maxQuantityDelta)
	}
	return delta, err
}

func decodeAction(w http.ResponseWriter, r *http.Request) (render.Action, error) {
	var a render.Action
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "kind":
			v, err := d.Str()
			a.Kind = render.ActionKind(v)
			return err
		case "item":
			v, err := d.Str()
			a.Item = v
			return err
		default:
			return d.Skip()
		}
	})
	if err == nil && a.Item == "" {
		err = badRequest("item is required")
	}
	return a, err
}

type outsideClickRequest struct {
	Target storefront.Target
	Narrow bool
}

func decodeOutsideClick(w http.ResponseWriter, r *http.Request) (outsideClickRequest, error) {
	var req outsideClickRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "target":
			v, err := d.Str()
			req.Target = storefront.Target(v)
			return err
		case "narrow":
			v, err := d.Bool()
			req.Narrow = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, err
	}
	switch req.Target {
	case storefront.TargetPage, storefront.TargetPaymentBackdrop:
		return req, nil
	default:
		return req, badRequest("unknown target %q", req.Target)
	}
}

// decodeForm reads the payment form. Missing fields stay empty; validation
// is the checkout's job.
func decodeForm(w http.ResponseWriter, r *http.Request) (checkout.Form, error) {
	var f checkout.Form
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "cardholderName":
			dst = &f.CardholderName
		case "cardNumber":
			dst = &f.CardNumber
		case "expiryDate":
			dst = &f.ExpiryDate
		case "cvv":
			dst = &f.CVV
		default:
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
	return f, err
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}
