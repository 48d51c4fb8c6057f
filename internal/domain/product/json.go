package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeList parses a JSON array of catalog entries:
//
//	[{"id":"1","name":"Waffle","price":6.5,"category":"Waffle",
//	  "image":{"thumbnail":"..","mobile":"..","tablet":"..","desktop":".."}}]
//
// Unknown fields are ignored. Entries without an id or name are rejected.
func DecodeList(data []byte) ([]Product, error) {
	d := jx.DecodeBytes(data)

	var out []Product
	if err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return errors.Wrapf(err, "product #%d", len(out))
		}
		if p.ID == "" || p.Name == "" {
			return errors.Errorf("product #%d: id and name are required", len(out))
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return out, nil
}

// Decode reads a single product object.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			p.ID = v
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "category":
			v, err := d.Str()
			p.Category = v
			return err
		case "price":
			num, err := d.Num()
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price, err := decimal.NewFromString(numString(num))
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = price
			return nil
		case "image":
			return p.Image.Decode(d)
		default:
			return d.Skip()
		}
	})
}

// Encode writes the product in the same shape DecodeList accepts.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Raw([]byte(p.Price.String()))
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("image")
	p.Image.Encode(e)
	e.ObjEnd()
}

// Decode reads the image URL set.
func (i *Image) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
		case "thumbnail":
			dst = &i.Thumbnail
		case "mobile":
			dst = &i.Mobile
		case "tablet":
			dst = &i.Tablet
		case "desktop":
			dst = &i.Desktop
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
}

// Encode writes the image URL set.
func (i Image) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("thumbnail")
	e.Str(i.Thumbnail)
	e.FieldStart("mobile")
	e.Str(i.Mobile)
	e.FieldStart("tablet")
	e.Str(i.Tablet)
	e.FieldStart("desktop")
	e.Str(i.Desktop)
	e.ObjEnd()
}

// numString returns the textual form of a number, accepting quoted numbers.
func numString(n jx.Num) string {
	s := n.String()
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
