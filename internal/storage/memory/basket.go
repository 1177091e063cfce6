// Package memory provides in-process implementations of the storage
// interfaces, used by tests and local runs.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/kart-basket/internal/domain/basket"
)

var _ basket.RecordStore = (*RecordStore)(nil)

// RecordStore keeps basket records in a map. Closed records are kept so
// their keys cannot be reused.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]basket.StoredRecord
	now     func() time.Time
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *RecordStore) { s.now = now }
}

// NewRecordStore creates an empty RecordStore.
func NewRecordStore(opts ...Option) *RecordStore {
	s := &RecordStore{
		records: make(map[string]basket.StoredRecord),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RecordStore) Get(_ context.Context, key string) (basket.StoredRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok || rec.Deleted {
		return basket.StoredRecord{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *RecordStore) Put(_ context.Context, rec basket.StoredRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.Key]
	switch {
	case ok && cur.Deleted:
		return 0, basket.ErrBasketClosed
	case ok && cur.Version != rec.Version:
		return 0, basket.ErrVersionConflict
	case !ok && rec.Version != 0:
		return 0, basket.ErrVersionConflict
	}

	rec = cloneRecord(rec)
	rec.Deleted = false
	rec.Finished = false
	rec.Version++
	rec.UpdatedAt = s.now().UTC()
	s.records[rec.Key] = rec
	return rec.Version, nil
}

func (s *RecordStore) Close(_ context.Context, key string, finish bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Deleted {
		return false, nil
	}
	rec.Deleted = true
	rec.Finished = finish
	rec.UpdatedAt = s.now().UTC()
	s.records[key] = rec
	return true, nil
}

// DeleteStale closes the least recently updated live records first.
func (s *RecordStore) DeleteStale(_ context.Context, before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []basket.StoredRecord
	for _, rec := range s.records {
		if !rec.Deleted && rec.UpdatedAt.Before(before) {
			stale = append(stale, rec)
		}
	}
	slices.SortFunc(stale, func(a, b basket.StoredRecord) int {
		return cmp.Or(a.UpdatedAt.Compare(b.UpdatedAt), cmp.Compare(a.Key, b.Key))
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	for _, rec := range stale {
		rec.Deleted = true
		s.records[rec.Key] = rec
	}
	return len(stale), nil
}

func cloneRecord(src basket.StoredRecord) basket.StoredRecord {
	dst := src
	dst.Data = slices.Clone(src.Data)
	dst.ProductIDs = slices.Clone(src.ProductIDs)
	return dst
}
