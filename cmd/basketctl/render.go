package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

// render writes the basket state, its totals and validation errors as JSON.
func render(ctx context.Context, b *basket.Basket) ([]byte, error) {
	lines, err := b.AllLines(ctx)
	if err != nil {
		return nil, err
	}
	orderable, err := b.Lines(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := b.Codes(ctx)
	if err != nil {
		return nil, err
	}
	total, err := b.TotalPrice(ctx)
	if err != nil {
		return nil, err
	}
	count, err := b.ProductCount(ctx)
	if err != nil {
		return nil, err
	}
	var problems []basket.ValidationError
	for ve, err := range b.ValidationErrors(ctx) {
		if err != nil {
			return nil, errors.Wrap(err, "validate")
		}
		problems = append(problems, ve)
	}

	ok := make(map[string]bool, len(orderable))
	for _, l := range orderable {
		ok[l.ID] = true
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("key", func(e *jx.Encoder) { e.Str(b.Key()) })
		e.Field("shop", func(e *jx.Encoder) { e.Str(b.Shop().ID) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(b.Shop().Currency) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					renderLine(e, l, ok[l.ID])
				}
			})
		})
		e.Field("codes", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range codes {
					e.Str(c)
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Str(total.String()) })
		e.Field("product_count", func(e *jx.Encoder) { e.Str(count.String()) })
		if len(problems) > 0 {
			e.Field("problems", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range problems {
						e.Obj(func(e *jx.Encoder) {
							e.Field("code", func(e *jx.Encoder) { e.Str(p.Code) })
							e.Field("message", func(e *jx.Encoder) { e.Str(p.Message) })
						})
					}
				})
			})
		}
	})
	return e.Bytes(), nil
}

func renderLine(e *jx.Encoder, l basket.Line, orderable bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
		if parent, ok := l.ParentID.Get(); ok {
			e.Field("parent", func(e *jx.Encoder) { e.Str(parent) })
		}
		e.Field("type", func(e *jx.Encoder) { e.Str(string(l.Type)) })
		if l.ProductID != "" {
			e.Field("product", func(e *jx.Encoder) { e.Str(l.ProductID) })
		}
		e.Field("text", func(e *jx.Encoder) { e.Str(l.Text) })
		e.Field("quantity", func(e *jx.Encoder) { e.Str(l.Quantity.String()) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice.String()) })
		e.Field("orderable", func(e *jx.Encoder) { e.Bool(orderable) })
	})
}

func renderCheckout(res *basket.CheckoutResult) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { e.Str(res.OrderID) })
		e.Field("total", func(e *jx.Encoder) { e.Str(res.Total.String()) })
	})
	return e.Bytes()
}
