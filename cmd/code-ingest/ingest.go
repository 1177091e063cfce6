package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// scanner finds codes listed in at least quorum of the input files without
// holding any whole file in memory: one bloom filter per file is built
// first, then every file is streamed again against the other filters.
type scanner struct {
	lg       *zap.Logger
	capacity uint
	fpr      float64
	minLen   int
	maxLen   int
	quorum   int
	progress uint64
}

func (s *scanner) accept(code string) bool {
	return len(code) >= s.minLen && len(code) <= s.maxLen
}

// scan returns the accepted codes appearing in at least quorum files,
// sorted.
func (s *scanner) scan(ctx context.Context, files []string) ([]string, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("at most %d files supported, got %d", bits.UintSize, len(files))
	}
	if s.quorum < 1 || s.quorum > len(files) {
		return nil, errors.Errorf("quorum %d out of range for %d files", s.quorum, len(files))
	}

	s.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := s.buildFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	s.lg.Info("Pass 2: finding candidate codes")
	masks := make([]map[string]uint, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			m, err := s.candidates(gCtx, i, path, filters)
			masks[i] = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= s.quorum {
			valid = append(valid, code)
		}
	}
	slices.Sort(valid)
	return valid, nil
}

func (s *scanner) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(s.capacity, s.fpr)
			var count uint64
			err := streamGz(ctx, path, func(code string) {
				if !s.accept(code) {
					return
				}
				filter.AddString(code)
				count++
				if s.progress > 0 && count%s.progress == 0 {
					s.lg.Info("Pass 1 progress", zap.String("file", path), zap.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "filter %s", path)
			}
			s.lg.Info("Pass 1 complete", zap.String("file", path), zap.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// candidates marks every code of file idx with the bit of each file whose
// filter may contain it, its own bit included.
func (s *scanner) candidates(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (map[string]uint, error) {
	out := make(map[string]uint)
	var count uint64
	err := streamGz(ctx, path, func(code string) {
		if !s.accept(code) {
			return
		}
		count++
		if s.progress > 0 && count%s.progress == 0 {
			s.lg.Info("Pass 2 progress", zap.String("file", path), zap.Uint64("codes", count))
		}

		mask := uint(1) << uint(idx)
		for j, f := range filters {
			if j != idx && f.TestString(code) {
				mask |= uint(1) << uint(j)
			}
		}
		if bits.OnesCount(mask) >= s.quorum {
			out[code] |= mask
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", path)
	}
	s.lg.Info("Pass 2 complete",
		zap.String("file", path),
		zap.Uint64("codes", count),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

// streamGz calls fn for every trimmed, upper-cased line of a gzip file.
func streamGz(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(strings.ToUpper(strings.TrimSpace(sc.Text())))
	}
	return sc.Err()
}
