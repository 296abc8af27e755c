package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/cart-keeper/internal/domain/product"
)

// Marshal encodes the cart as a JSON array of
// {"id","title","price","image","amount"} objects in cart order.
func Marshal(c Cart) []byte {
	var e jx.Encoder
	EncodeItems(&e, c)
	return e.Bytes()
}

// EncodeItems writes the cart array to e.
func EncodeItems(e *jx.Encoder, c Cart) {
	e.ArrStart()
	for _, it := range c {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
			e.Field("title", func(e *jx.Encoder) { e.Str(it.Title) })
			e.Field("price", func(e *jx.Encoder) { product.EncodeDecimal(e, it.Price) })
			e.Field("image", func(e *jx.Encoder) { e.Str(it.Image) })
			e.Field("amount", func(e *jx.Encoder) { e.Int(it.Amount) })
		})
	}
	e.ArrEnd()
}

// Unmarshal decodes a cart produced by Marshal. It rejects malformed
// documents, duplicate ids and non-positive amounts.
func Unmarshal(data []byte) (Cart, error) {
	d := jx.DecodeBytes(data)
	c, err := DecodeItems(d)
	if err != nil {
		return nil, err
	}
	if d.Next() != jx.Invalid {
		return nil, errors.New("unexpected data after cart array")
	}
	return c, nil
}

// DecodeItems reads a cart array from d.
func DecodeItems(d *jx.Decoder) (Cart, error) {
	c := Cart{}
	seen := make(map[int64]struct{})
	if err := d.Arr(func(d *jx.Decoder) error {
		it, err := decodeItem(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(c))
		}
		if _, dup := seen[it.ID]; dup {
			return errors.Errorf("duplicate product id %d", it.ID)
		}
		seen[it.ID] = struct{}{}
		c = append(c, it)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return c, nil
}

func decodeItem(d *jx.Decoder) (Item, error) {
	var (
		it     Item
		hasID  bool
		hasAmt bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Int64()
			hasID = err == nil
		case "title":
			it.Title, err = d.Str()
		case "price":
			it.Price, err = product.DecodeDecimal(d)
		case "image":
			it.Image, err = d.Str()
		case "amount":
			it.Amount, err = d.Int()
			hasAmt = err == nil
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	switch {
	case !hasID:
		return Item{}, errors.New("missing id")
	case !hasAmt:
		return Item{}, errors.New("missing amount")
	case it.Amount < 1:
		return Item{}, errors.Errorf("amount %d for product %d", it.Amount, it.ID)
	}
	return it, nil
}
