// Package store persists the verification ledger so that records survive
// between CLI invocations and server restarts.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/internal/model"
)

// Driver names accepted by store.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store defines the persistence interface for the ledger.
type Store interface {
	// Append inserts new records. Existing IDs are an error.
	Append(ctx context.Context, records ...model.Record) error
	// Load returns every record in ledger order.
	Load(ctx context.Context) ([]model.Record, error)
	// Save writes the mutable fields of existing records, inserting any
	// that are missing.
	Save(ctx context.Context, records ...model.Record) error
	// Clear deletes every record.
	Clear(ctx context.Context) error
	// DemoteStale moves InFlight records last updated at or before
	// now-olderThan back to Pending and returns how many moved.
	DemoteStale(ctx context.Context, olderThan time.Duration, now time.Time) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver. An empty driver means SQLite.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		st, err := NewSQLite(databaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverPostgres:
		st, err := NewPostgres(ctx, databaseURL, nil)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// LoadLedger reads every record into a fresh ledger.
func LoadLedger(ctx context.Context, st Store) (*model.Ledger, error) {
	records, err := st.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "store: load ledger")
	}
	return model.NewLedger(records...), nil
}

func encodeSources(sources []model.Source) ([]byte, error) {
	if sources == nil {
		sources = []model.Source{}
	}
	b, err := json.Marshal(sources)
	return b, eris.Wrap(err, "store: marshal sources")
}

func decodeSources(raw []byte) ([]model.Source, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sources []model.Source
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal sources")
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return sources, nil
}
