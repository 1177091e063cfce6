package basket

import (
	"github.com/alecthomas/types/optional"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeData serializes lines and codes into the record blob. Decimals are
// written as strings so no precision is lost.
func EncodeData(d Data) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range d.Lines {
					encodeLine(e, l)
				}
			})
		})
		e.Field("codes", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range d.Codes.List() {
					e.Str(c)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeLine(e *jx.Encoder, l Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("line_id", func(e *jx.Encoder) { e.Str(l.ID) })
		if parent, ok := l.ParentID.Get(); ok {
			e.Field("parent_line_id", func(e *jx.Encoder) { e.Str(parent) })
		}
		e.Field("type", func(e *jx.Encoder) { e.Str(string(l.Type)) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("supplier_id", func(e *jx.Encoder) { e.Str(l.SupplierID) })
		e.Field("shop_id", func(e *jx.Encoder) { e.Str(l.ShopID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Str(l.Quantity.String()) })
		if len(l.Extra) > 0 {
			e.Field("extra", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for k, v := range l.Extra {
						e.Field(k, func(e *jx.Encoder) { e.Str(v) })
					}
				})
			})
		}
		e.Field("text", func(e *jx.Encoder) { e.Str(l.Text) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice.String()) })
		e.Field("discount_amount", func(e *jx.Encoder) { e.Str(l.DiscountAmount.String()) })
		e.Field("weight", func(e *jx.Encoder) { e.Str(l.Weight.String()) })
		e.Field("shippable", func(e *jx.Encoder) { e.Bool(l.Shippable) })
	})
}

// DecodeData parses a record blob. An empty blob yields empty data.
func DecodeData(b []byte) (Data, error) {
	var d Data
	if len(b) == 0 {
		return d, nil
	}

	err := jx.DecodeBytes(b).Obj(func(dec *jx.Decoder, key string) error {
		switch key {
		case "lines":
			return dec.Arr(func(dec *jx.Decoder) error {
				l, err := decodeLine(dec)
				if err != nil {
					return err
				}
				d.Lines = append(d.Lines, l)
				return nil
			})
		case "codes":
			return dec.Arr(func(dec *jx.Decoder) error {
				c, err := dec.Str()
				if err != nil {
					return err
				}
				d.Codes.Add(c)
				return nil
			})
		default:
			return dec.Skip()
		}
	})
	if err != nil {
		return Data{}, errors.Wrap(err, "decode basket data")
	}
	return d, nil
}

func decodeLine(dec *jx.Decoder) (Line, error) {
	var l Line
	err := dec.Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "line_id":
			l.ID, err = dec.Str()
		case "parent_line_id":
			var parent string
			if parent, err = dec.Str(); err == nil {
				l.ParentID = optional.Some(parent)
			}
		case "type":
			var t string
			t, err = dec.Str()
			l.Type = LineType(t)
		case "product_id":
			l.ProductID, err = dec.Str()
		case "supplier_id":
			l.SupplierID, err = dec.Str()
		case "shop_id":
			l.ShopID, err = dec.Str()
		case "quantity":
			l.Quantity, err = decodeDecimal(dec)
		case "extra":
			l.Extra = Extra{}
			err = dec.Obj(func(dec *jx.Decoder, k string) error {
				v, err := dec.Str()
				if err != nil {
					return err
				}
				l.Extra[k] = v
				return nil
			})
		case "text":
			l.Text, err = dec.Str()
		case "unit_price":
			l.UnitPrice, err = decodeDecimal(dec)
		case "discount_amount":
			l.DiscountAmount, err = decodeDecimal(dec)
		case "weight":
			l.Weight, err = decodeDecimal(dec)
		case "shippable":
			l.Shippable, err = dec.Bool()
		default:
			err = dec.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	return l, err
}

func decodeDecimal(dec *jx.Decoder) (decimal.Decimal, error) {
	s, err := dec.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
