package basket

import (
	"context"
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Partition splits basket lines into those that can be fulfilled now and
// those that cannot. Both keep basket order.
type Partition struct {
	Orderable   []Line
	Unorderable []Line
}

// reservations counts product units already accepted during one resolver pass.
type reservations map[string]decimal.Decimal

func (r reservations) get(productID string) decimal.Decimal {
	return r[productID] // zero value of decimal.Decimal is 0
}

func (r reservations) add(productID string, q decimal.Decimal) {
	r[productID] = r.get(productID).Add(q)
}

// Resolve partitions lines by orderability. Each product line is checked
// with the quantity already reserved by earlier accepted lines of the same
// product. A package parent is accepted only if every child is orderable in
// the quantity the package needs on top of what is already reserved. A
// rejected line never affects its siblings.
//
// An accepted ordinary line reserves its own quantity. An accepted package
// parent reserves its effective quantity, so repeated lines of one package
// grow their reservation geometrically.
//
// Lines with a non-positive quantity are logically deleted and skipped.
func Resolve(ctx context.Context, catalog Catalog, customerID string, lines []Line) (Partition, error) {
	var (
		p        Partition
		reserved = make(reservations)
	)
	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			continue
		}
		if !line.IsProduct() {
			p.Orderable = append(p.Orderable, line)
			continue
		}

		ok, effective, children, err := acceptLine(ctx, catalog, customerID, line, reserved)
		if err != nil {
			return Partition{}, errors.Wrapf(err, "resolve line %s", line.ID)
		}
		if !ok {
			p.Unorderable = append(p.Unorderable, line)
			continue
		}

		p.Orderable = append(p.Orderable, line)
		if len(children) == 0 {
			reserved.add(line.ProductID, line.Quantity)
			continue
		}
		reserved.add(line.ProductID, effective)
		for childID, ratio := range children {
			reserved.add(childID, ratio.Mul(line.Quantity))
		}
	}
	return p, nil
}

// acceptLine checks a single product line against the running reservations
// without committing anything. It returns the effective quantity checked and
// the package composition so the caller can reserve units.
func acceptLine(
	ctx context.Context,
	catalog Catalog,
	customerID string,
	line Line,
	reserved reservations,
) (bool, decimal.Decimal, map[string]decimal.Decimal, error) {
	quantity := line.Quantity.Add(reserved.get(line.ProductID))

	ok, err := catalog.IsOrderable(ctx, line.ProductID, line.SupplierID, customerID, quantity)
	if err != nil || !ok {
		return false, quantity, nil, err
	}

	children, err := catalog.PackageChildren(ctx, line.ProductID)
	if err != nil {
		return false, quantity, nil, errors.Wrap(err, "package children")
	}

	for _, childID := range slices.Sorted(maps.Keys(children)) {
		total := quantity.Mul(children[childID]).Add(reserved.get(childID))
		ok, err := catalog.IsOrderable(ctx, childID, line.SupplierID, customerID, total)
		if err != nil || !ok {
			return false, quantity, nil, err
		}
	}
	return true, quantity, children, nil
}
