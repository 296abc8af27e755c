package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode writes p as {"id","title","price","image"}.
func (p *Product) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { EncodeDecimal(e, p.Price) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
	})
}

// Decode reads a product object. Unknown fields are skipped.
func (p *Product) Decode(d *jx.Decoder) error {
	var hasID bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
			hasID = err == nil
		case "title":
			p.Title, err = d.Str()
		case "price":
			p.Price, err = DecodeDecimal(d)
		case "image":
			p.Image, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "decode product")
	}
	if !hasID {
		return errors.New("decode product: missing id")
	}
	return nil
}

// Encode writes s as {"id","amount"}.
func (s *Stock) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(s.ProductID) })
		e.Field("amount", func(e *jx.Encoder) { e.Int(s.Amount) })
	})
}

// Decode reads a stock object. Only "amount" is required: inventories may
// answer /stock/{id} with {"amount": n} alone, leaving ProductID as is.
func (s *Stock) Decode(d *jx.Decoder) error {
	var hasAmount bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ProductID, err = d.Int64()
		case "amount":
			s.Amount, err = d.Int()
			hasAmount = err == nil
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	switch {
	case err != nil:
		return errors.Wrap(err, "decode stock")
	case !hasAmount:
		return errors.New("decode stock: missing amount")
	}
	return nil
}

// EncodeDecimal writes v as a bare JSON number, preserving its exact digits.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// DecodeDecimal reads a JSON number or numeric string as a decimal.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
