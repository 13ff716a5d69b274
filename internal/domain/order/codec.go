package order

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// EncodeItems writes items as a JSON array.
func EncodeItems(e *jx.Encoder, items []OrderItem) {
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
}

// MarshalItems returns the JSON encoding of items.
func MarshalItems(items []OrderItem) []byte {
	var e jx.Encoder
	EncodeItems(&e, items)
	return e.Bytes()
}

// DecodeItems reads a JSON array written by EncodeItems. Unknown fields are
// skipped.
func DecodeItems(d *jx.Decoder) ([]OrderItem, error) {
	var items []OrderItem
	if err := d.Arr(func(d *jx.Decoder) error {
		var item OrderItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "product_id":
				v, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "product_id")
				}
				item.ProductID = v
			case "quantity":
				v, err := d.Int()
				if err != nil {
					return errors.Wrap(err, "quantity")
				}
				item.Quantity = v
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode items")
	}
	return items, nil
}

// UnmarshalItems decodes the JSON encoding of items.
func UnmarshalItems(data []byte) ([]OrderItem, error) {
	return DecodeItems(jx.DecodeBytes(data))
}
