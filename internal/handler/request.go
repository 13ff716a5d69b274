package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-promo/internal/domain/order"
)

const maxBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// itemRequest leaves quantity checks to the order service, which reports
// them as unprocessable rather than malformed.
type itemRequest struct {
	ProductID string `validate:"required,max=64"`
	Quantity  int
}

type cartRequest struct {
	Items     []itemRequest `validate:"max=100,dive"`
	CartToken string        `validate:"omitempty,uuid"`
	Locale    string        `validate:"omitempty,bcp47_language_tag"`
}

func (r cartRequest) orderItems() []order.OrderItem {
	items := make([]order.OrderItem, len(r.Items))
	for i, item := range r.Items {
		items[i] = order.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items
}

// requestError marks a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func decodeCartRequest(w http.ResponseWriter, r *http.Request) (cartRequest, error) {
	var req cartRequest
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodySize), 4096)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "cartToken":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "cartToken")
			}
			req.CartToken = v
			return nil
		case "locale":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "locale")
			}
			req.Locale = v
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return req, &requestError{msg: "invalid request body: " + err.Error()}
	}

	if err := validate.Struct(req); err != nil {
		return req, &requestError{msg: validationMessage(err)}
	}
	return req, nil
}

func decodeItem(d *jx.Decoder) (itemRequest, error) {
	var item itemRequest
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "productId")
			}
			item.ProductID = v
			return nil
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			item.Quantity = v
			return nil
		default:
			return d.Skip()
		}
	})
	return item, err
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fields))
	for _, fe := range fields {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Namespace(), tagMessage(fe)))
	}
	return strings.Join(msgs, "; ")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "bcp47_language_tag":
		return "must be a BCP 47 language tag"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
