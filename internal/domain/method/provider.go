package method

import (
	"context"

	sets "github.com/deckarep/golang-set/v2"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

var _ basket.MethodProvider = (*Provider)(nil)

// Provider offers the enabled methods of a shop that can handle every
// product in the basket.
type Provider struct {
	repo Repository
}

// NewProvider creates a Provider backed by repo.
func NewProvider(repo Repository) *Provider {
	return &Provider{repo: repo}
}

func (p *Provider) Available(
	ctx context.Context,
	kind basket.MethodKind,
	shopID string,
	productIDs []string,
) ([]basket.Method, error) {
	methods, err := p.repo.ListByShop(ctx, shopID, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s methods of shop %s", kind, shopID)
	}

	products := sets.NewSet(productIDs...)
	var out []basket.Method
	for _, m := range methods {
		if !m.Enabled {
			continue
		}
		excluded := sets.NewSet(m.ExcludedProductIDs...)
		if products.Intersect(excluded).Cardinality() > 0 {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
