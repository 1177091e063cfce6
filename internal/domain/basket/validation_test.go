package basket

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSourceValidator struct {
	errs []ValidationError
	err  error
}

func (m *mockSourceValidator) Validate(context.Context, *Basket) ([]ValidationError, error) {
	return m.errs, m.err
}

func collectCodes(t *testing.T, b *Basket) []string {
	t.Helper()
	var codes []string
	for ve, err := range b.ValidationErrors(context.Background()) {
		require.NoError(t, err)
		codes = append(codes, ve.Code)
	}
	return codes
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		shippable bool
		shipping  []Method
		payment   []Method
		source    []ValidationError
		want      []string
	}{
		{
			name:      "all methods available",
			shippable: true,
			want:      nil,
		},
		{
			name:      "no shipping for shippable lines",
			shippable: true,
			shipping:  []Method{mockMethod{id: "post", accept: false}},
			want:      []string{CodeNoCommonShipping},
		},
		{
			name:     "no shipping needed",
			shipping: []Method{},
			want:     nil,
		},
		{
			name:      "source errors first",
			shippable: true,
			shipping:  []Method{},
			payment:   []Method{},
			source:    []ValidationError{{Code: "min_total"}},
			want:      []string{"min_total", CodeNoCommonShipping, CodeNoCommonPayment},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			f.pricer.shippable = map[string]bool{"p1": tt.shippable}
			if tt.shipping != nil {
				f.methods.shipping = tt.shipping
			}
			if tt.payment != nil {
				f.methods.payment = tt.payment
			}
			f.env.Validator = &mockSourceValidator{errs: tt.source}
			b := f.basket("k")
			_, err := b.AddProduct(ctx, addParams("p1", "1"))
			require.NoError(t, err)

			assert.Equal(t, tt.want, collectCodes(t, b))
		})
	}
}

func TestValidationErrors_StopsEarly(t *testing.T) {
	f := newFixture()
	f.methods.err = errors.New("methods down")
	f.env.Validator = &mockSourceValidator{errs: []ValidationError{{Code: "a"}, {Code: "b"}}}
	b := f.basket("k")

	var codes []string
	for ve := range b.ValidationErrors(context.Background()) {
		codes = append(codes, ve.Code)
		break
	}
	assert.Equal(t, []string{"a"}, codes)
}

func TestValidationErrors_CollaboratorFailure(t *testing.T) {
	f := newFixture()
	f.methods.err = errors.New("methods down")
	b := f.basket("k")

	var errs []error
	for _, err := range b.ValidationErrors(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "methods down")
}
