package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/domain/coupon"
	"github.com/xenking/kart-basket/internal/domain/method"
	"github.com/xenking/kart-basket/internal/domain/product"
)

type seedProduct struct {
	product.Product
	Stock      []product.Stock
	Components []product.Component
}

type seedData struct {
	Products []seedProduct
	Methods  []method.Method
	Coupons  []coupon.Rule
}

func parseSeed(data []byte) (*seedData, error) {
	var s seedData
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				s.Products = append(s.Products, p)
				return nil
			})
		case "methods":
			return d.Arr(func(d *jx.Decoder) error {
				m, err := decodeMethod(d)
				if err != nil {
					return err
				}
				s.Methods = append(s.Methods, m)
				return nil
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				c, err := decodeCoupon(d)
				if err != nil {
					return err
				}
				s.Coupons = append(s.Coupons, c)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &s, nil
}

func decodeProduct(d *jx.Decoder) (seedProduct, error) {
	p := seedProduct{Product: product.Product{
		Purchasable:     true,
		Shippable:       true,
	}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "sku":
			p.SKU, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "weight":
			p.Weight, err = decodeDecimal(d)
		case "shippable":
			p.Shippable, err = d.Bool()
		case "purchasable":
			p.Purchasable, err = d.Bool()
		case "variation_parent":
			p.VariationParent, err = d.Bool()
		case "minimum_quantity":
			p.MinimumQuantity, err = decodeDecimal(d)
		case "purchase_multiple":
			p.PurchaseMultiple, err = decodeDecimal(d)
		case "stock":
			err = d.Arr(func(d *jx.Decoder) error {
				st := product.Stock{}
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "supplier":
						st.SupplierID, err = d.Str()
					case "quantity":
						st.Quantity, err = decodeDecimal(d)
					case "unlimited":
						st.Unlimited, err = d.Bool()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				p.Stock = append(p.Stock, st)
				return nil
			})
		case "components":
			err = d.Arr(func(d *jx.Decoder) error {
				var c product.Component
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "child":
						c.ChildID, err = d.Str()
					case "quantity":
						c.Quantity, err = decodeDecimal(d)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				p.Components = append(p.Components, c)
				return nil
			})
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	if err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, errors.New("product without id")
	}
	for i := range p.Stock {
		p.Stock[i].ProductID = p.ID
	}
	return p, nil
}

func decodeMethod(d *jx.Decoder) (method.Method, error) {
	m := method.Method{Enabled: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			m.ID, err = d.Str()
		case "kind":
			var kind string
			kind, err = d.Str()
			m.Kind = basket.MethodKind(kind)
		case "shop":
			m.ShopID, err = d.Str()
		case "name":
			m.Name, err = d.Str()
		case "enabled":
			m.Enabled, err = d.Bool()
		case "max_weight":
			m.MaxWeight, err = decodeDecimal(d)
		case "min_total":
			m.MinTotal, err = decodeDecimal(d)
		case "excluded_products":
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				m.ExcludedProductIDs = append(m.ExcludedProductIDs, id)
				return err
			})
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	if err != nil {
		return m, err
	}
	if m.Kind != basket.MethodShipping && m.Kind != basket.MethodPayment {
		return m, errors.Errorf("method %q: unknown kind %q", m.ID, m.Kind)
	}
	return m, nil
}

func decodeCoupon(d *jx.Decoder) (coupon.Rule, error) {
	var r coupon.Rule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			r.Code, err = d.Str()
		case "shop":
			r.ShopID, err = d.Str()
		case "description":
			r.Description, err = d.Str()
		case "valid_from":
			r.ValidFrom, err = decodeTime(d)
		case "valid_until":
			r.ValidUntil, err = decodeTime(d)
		case "max_uses":
			r.MaxUses, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	return r, err
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		s = v
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		s = n.String()
	}
	return decimal.NewFromString(s)
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
