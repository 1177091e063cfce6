package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule         *Rule
	err          error
	incrementErr error
	incremented  []string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) IncrementUses(_ context.Context, code string) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.incremented = append(m.incremented, code)
	return nil
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)
	farFuture := fixedNow.Add(48 * time.Hour)

	tests := []struct {
		name    string
		repo    *mockCouponRepo
		shopID  string
		code    string
		wantErr error
	}{
		{
			name:   "valid code",
			repo:   &mockCouponRepo{rule: &Rule{Code: "SAVE10", Description: "10% off"}},
			shopID: "s1",
			code:   "SAVE10",
		},
		{
			name:    "unknown code returns ErrInvalidCoupon",
			repo:    &mockCouponRepo{err: ErrInvalidCoupon},
			shopID:  "s1",
			code:    "BOGUS",
			wantErr: ErrInvalidCoupon,
		},
		{
			name:   "code of the same shop",
			repo:   &mockCouponRepo{rule: &Rule{Code: "LOCAL", ShopID: "s1"}},
			shopID: "s1",
			code:   "LOCAL",
		},
		{
			name:    "code of another shop returns ErrInvalidCoupon",
			repo:    &mockCouponRepo{rule: &Rule{Code: "LOCAL", ShopID: "s2"}},
			shopID:  "s1",
			code:    "LOCAL",
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "expired coupon (valid_until in past)",
			repo:    &mockCouponRepo{rule: &Rule{Code: "OLD", ValidUntil: &pastTime}},
			shopID:  "s1",
			code:    "OLD",
			wantErr: ErrCouponExpired,
		},
		{
			name:    "coupon not yet valid (valid_from in future)",
			repo:    &mockCouponRepo{rule: &Rule{Code: "FUTURE", ValidFrom: &futureTime}},
			shopID:  "s1",
			code:    "FUTURE",
			wantErr: ErrCouponExpired,
		},
		{
			name:   "coupon within valid window succeeds",
			repo:   &mockCouponRepo{rule: &Rule{Code: "WINDOW", ValidFrom: &pastTime, ValidUntil: &futureTime}},
			shopID: "s1",
			code:   "WINDOW",
		},
		{
			name:   "coupon with valid_from=nil and valid_until in future succeeds",
			repo:   &mockCouponRepo{rule: &Rule{Code: "NOSTART", ValidUntil: &farFuture}},
			shopID: "s1",
			code:   "NOSTART",
		},
		{
			name:    "usage limit reached",
			repo:    &mockCouponRepo{rule: &Rule{Code: "LIMITED", MaxUses: 100, Uses: 100}},
			shopID:  "s1",
			code:    "LIMITED",
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name:   "usage under limit succeeds",
			repo:   &mockCouponRepo{rule: &Rule{Code: "HASROOM", MaxUses: 100, Uses: 50}},
			shopID: "s1",
			code:   "HASROOM",
		},
		{
			name:   "unlimited uses (max_uses=0) always succeeds",
			repo:   &mockCouponRepo{rule: &Rule{Code: "UNLIMITED", Uses: 9999}},
			shopID: "s1",
			code:   "UNLIMITED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			err := v.Validate(context.Background(), tt.shopID, tt.code)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, tt.repo.incremented, "validation must not count a use")
		})
	}
}

func TestRepoValidator_LookupError(t *testing.T) {
	v := NewRepoValidator(&mockCouponRepo{err: errors.New("db error")})

	err := v.Validate(context.Background(), "s1", "ANY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestRepoValidator_Redeem(t *testing.T) {
	repo := &mockCouponRepo{}
	v := NewRepoValidator(repo)

	require.NoError(t, v.Redeem(context.Background(), []string{"A", "B"}))
	assert.Equal(t, []string{"A", "B"}, repo.incremented)
}

func TestRepoValidator_RedeemError(t *testing.T) {
	repo := &mockCouponRepo{incrementErr: errors.New("db error")}
	v := NewRepoValidator(repo)

	err := v.Redeem(context.Background(), []string{"FAIL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `increment uses of "FAIL"`)
}
