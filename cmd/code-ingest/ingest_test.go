package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kart-basket/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func testScanner(quorum int) *scanner {
	return &scanner{
		lg:       zap.NewNop(),
		capacity: 1000,
		fpr:      0.0001,
		minLen:   8,
		maxLen:   10,
		quorum:   quorum,
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", "HAPPYHRS", "FIFTYOFF", "ONLYINAAA", "short"),
		writeGz(t, dir, "b.gz", "happyhrs", "SIXTYOFF", "ONLYINBBB", "WAYTOOLONGCODE"),
		writeGz(t, dir, "c.gz", "FIFTYOFF", "SIXTYOFF", "HAPPYHRS", "ONLYINCCC"),
	}

	for _, tt := range []struct {
		quorum int
		want   []string
	}{
		{2, []string{"FIFTYOFF", "HAPPYHRS", "SIXTYOFF"}},
		{3, []string{"HAPPYHRS"}},
		{1, []string{"FIFTYOFF", "HAPPYHRS", "ONLYINAAA", "ONLYINBBB", "ONLYINCCC", "SIXTYOFF"}},
	} {
		got, err := testScanner(tt.quorum).scan(context.Background(), files)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "quorum %d", tt.quorum)
	}
}

func TestScan_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeGz(t, dir, "a.gz", "ABCDEFGH")

	_, err := testScanner(2).scan(context.Background(), []string{a})
	assert.ErrorContains(t, err, "quorum")

	_, err = testScanner(1).scan(context.Background(), []string{filepath.Join(dir, "missing.gz")})
	assert.ErrorContains(t, err, "missing.gz")

	plain := filepath.Join(dir, "plain.gz")
	require.NoError(t, os.WriteFile(plain, []byte("not gzip"), 0o600))
	_, err = testScanner(1).scan(context.Background(), []string{plain})
	assert.ErrorContains(t, err, "gzip reader")
}

func TestRules(t *testing.T) {
	template := coupon.Rule{ShopID: "shop", Description: "promo", MaxUses: 3}
	batches := rules([]string{"A", "B", "C", "D", "E"}, template, 2)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, coupon.Rule{Code: "E", ShopID: "shop", Description: "promo", MaxUses: 3}, batches[2][0])

	assert.Empty(t, rules(nil, template, 10))
	assert.Len(t, rules([]string{"A", "B"}, template, 0), 2)
}
