package payment

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// StatusCompleted is the only status that signals a successful payment.
const StatusCompleted = "COMPLETED"

// OrderItem is one cart line as sent to the payment service.
type OrderItem struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

// Request is the body of a payment call. It is built once per checkout
// attempt and never modified afterwards.
type Request struct {
	CardholderName string
	CardNumber     string
	ExpiryDate     string
	CVV            string
	Amount         decimal.Decimal
	OrderItems     []OrderItem
}

// Encode writes the request in the field order the payment service expects.
func (r *Request) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("cardholderName")
	e.Str(r.CardholderName)
	e.FieldStart("cardNumber")
	e.Str(r.CardNumber)
	e.FieldStart("expiryDate")
	e.Str(r.ExpiryDate)
	e.FieldStart("cvv")
	e.Str(r.CVV)
	e.FieldStart("amount")
	encodeDecimal(e, r.Amount)
	e.FieldStart("orderItems")
	e.ArrStart()
	for _, item := range r.OrderItems {
		e.ObjStart()
		e.FieldStart("productName")
		e.Str(item.ProductName)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		encodeDecimal(e, item.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (r *Request) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	r.Encode(&e)
	return e.Bytes(), nil
}

// Response is the payment service's reply. Fields the service left null or
// omitted are zero.
type Response struct {
	TransactionID string
	Status        string
	Message       string
	Amount        decimal.Decimal
	ProcessedAt   string
	ErrorMessage  string
}

// Completed reports whether the service accepted the payment.
func (r *Response) Completed() bool {
	return r.Status == StatusCompleted
}

// Decode reads a response object, skipping unknown fields.
func (r *Response) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "transactionId":
			r.TransactionID, err = decodeOptStr(d)
		case "status":
			r.Status, err = decodeOptStr(d)
		case "message":
			r.Message, err = decodeOptStr(d)
		case "processedAt":
			r.ProcessedAt, err = decodeOptStr(d)
		case "errorMessage":
			r.ErrorMessage, err = decodeOptStr(d)
		case "amount":
			r.Amount, err = decodeOptDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	return r.Decode(jx.DecodeBytes(data))
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.String()))
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeOptDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return decimal.Zero, d.Null()
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	// Quoted numbers keep their quotes in the raw form.
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}
