package basket

import (
	"maps"

	"github.com/alecthomas/types/optional"
	"github.com/shopspring/decimal"
)

// LineType distinguishes product lines from charge lines.
type LineType string

const (
	// LineTypeProduct is a line referring to a concrete product.
	LineTypeProduct LineType = "product"
	// LineTypeDiscount is a negative charge, e.g. produced by a campaign.
	LineTypeDiscount LineType = "discount"
	// LineTypeOther is any other charge attached to the basket.
	LineTypeOther LineType = "other"
)

// Extra holds line-specific attributes. Two lines with different extras are
// never coalesced.
type Extra map[string]string

// Line is a single basket entry.
type Line struct {
	ID         string
	ParentID   optional.Option[string]
	Type       LineType
	ProductID  string
	SupplierID string
	ShopID     string
	Quantity   decimal.Decimal
	Extra      Extra

	// Annotations written by the Pricer.
	Text           string
	UnitPrice      decimal.Decimal
	DiscountAmount decimal.Decimal
	Weight         decimal.Decimal
	Shippable      bool
}

// IsProduct reports whether the line refers to a product.
func (l Line) IsProduct() bool {
	return l.Type == LineTypeProduct
}

// IsChildOf reports whether the line is a package child of parentID.
func (l Line) IsChildOf(parentID string) bool {
	id, ok := l.ParentID.Get()
	return ok && id == parentID
}

// Total is the line price after discount.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity).Sub(l.DiscountAmount)
}

// matches reports whether an addition of productID with extra should be
// merged into l. Quantity and ID do not take part in the comparison.
func (l Line) matches(productID, supplierID, shopID string, extra Extra) bool {
	if !l.IsProduct() {
		return false
	}
	if l.ProductID != productID || l.SupplierID != supplierID || l.ShopID != shopID {
		return false
	}
	return equalExtra(l.Extra, extra)
}

func (l Line) clone() Line {
	c := l
	c.Extra = maps.Clone(l.Extra)
	return c
}

func equalExtra(a, b Extra) bool {
	// nil and empty are the same thing here.
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l.clone()
	}
	return out
}
