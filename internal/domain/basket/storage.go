package basket

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Data is the mutable state of a basket as persisted in a record blob.
type Data struct {
	Lines []Line
	Codes Codes
	// Version of the record the data was loaded from; 0 if never stored.
	Version int64
}

// StoredRecord is the durable projection of a basket.
type StoredRecord struct {
	Key               string
	ShopID            string
	Currency          string
	PricesIncludeTax  bool
	Data              []byte
	TaxlessTotalPrice decimal.NullDecimal
	TaxfulTotalPrice  decimal.NullDecimal
	ProductCount      decimal.Decimal
	ProductIDs        []string
	CustomerID        string
	OrdererID         string
	CreatorID         string
	Deleted           bool
	Finished          bool
	Version           int64
	UpdatedAt         time.Time
}

// RecordStore is the key-value store holding StoredRecords.
//
// Get only returns live records: deleted and finished records are reported
// as not found. Put inserts a record when rec.Version is 0 and otherwise
// updates the live record with that exact version, returning the new
// version. Put fails with ErrVersionConflict on a version mismatch and with
// ErrBasketClosed when the key was deleted or finalized.
type RecordStore interface {
	Get(ctx context.Context, key string) (StoredRecord, bool, error)
	Put(ctx context.Context, rec StoredRecord) (int64, error)
	// Close marks a live record deleted, and finished when finish is set.
	// It reports whether a live record existed.
	Close(ctx context.Context, key string, finish bool) (bool, error)
	// DeleteStale soft-deletes at most limit live records last updated
	// before the given time and returns how many were deleted.
	DeleteStale(ctx context.Context, before time.Time, limit int) (int, error)
}

// Storage maps basket keys to stored records, enforcing that a record is
// only ever loaded into a basket of the same shop and price unit.
type Storage struct {
	records RecordStore
}

// NewStorage creates a Storage over records.
func NewStorage(records RecordStore) *Storage {
	return &Storage{records: records}
}

// IsSaved reports whether key has a live stored record.
func (s *Storage) IsSaved(ctx context.Context, key string) (bool, error) {
	_, found, err := s.records.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "get basket %s", key)
	}
	return found, nil
}

// Load returns the data stored for key. It returns empty data when nothing
// is stored yet.
func (s *Storage) Load(ctx context.Context, key string, shop Shop) (Data, error) {
	rec, found, err := s.records.Get(ctx, key)
	if err != nil {
		return Data{}, errors.Wrapf(err, "get basket %s", key)
	}
	if !found {
		return Data{}, nil
	}
	if err := checkCompatible(rec, shop); err != nil {
		return Data{}, err
	}

	data, err := DecodeData(rec.Data)
	if err != nil {
		return Data{}, errors.Wrapf(err, "decode basket %s", key)
	}
	data.Version = rec.Version
	return data, nil
}

// Save writes rec, which must carry the version the data was loaded with.
// It returns the version of the written record.
func (s *Storage) Save(ctx context.Context, rec StoredRecord) (int64, error) {
	version, err := s.records.Put(ctx, rec)
	if err != nil {
		return 0, errors.Wrapf(err, "put basket %s", rec.Key)
	}
	return version, nil
}

// Delete soft-deletes the stored record of key. Deleting a basket that was
// never stored is a no-op.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.records.Close(ctx, key, false); err != nil {
		return errors.Wrapf(err, "delete basket %s", key)
	}
	return nil
}

// Finalize closes the stored record of key for good. It is idempotent.
func (s *Storage) Finalize(ctx context.Context, key string) error {
	if _, err := s.records.Close(ctx, key, true); err != nil {
		return errors.Wrapf(err, "finalize basket %s", key)
	}
	return nil
}

func checkCompatible(rec StoredRecord, shop Shop) error {
	if rec.ShopID != shop.ID {
		return &ShopMismatchError{Key: rec.Key, StoredShop: rec.ShopID, RequestShop: shop.ID}
	}

	var diff []string
	if rec.Currency != shop.Currency {
		diff = append(diff, "currency: "+rec.Currency+" vs "+shop.Currency)
	}
	if rec.PricesIncludeTax != shop.PricesIncludeTax {
		diff = append(diff, "prices_include_tax")
	}
	if len(diff) > 0 {
		return &PriceUnitMismatchError{Key: rec.Key, Diff: diff}
	}
	return nil
}
