package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/verify"
)

// Persister writes every batch step of a run through to a Store so other
// readers see InFlight state while the oracle call is pending.
type Persister struct {
	store Store
}

// NewPersister creates a run observer backed by st.
func NewPersister(st Store) *Persister {
	return &Persister{store: st}
}

// Enqueue persists names as Pending records and then appends them to the
// ledger. Blank names are skipped. A failed write leaves the ledger untouched.
func Enqueue(ctx context.Context, st Store, ledger *model.Ledger, names []string) ([]model.Record, error) {
	records, err := ledger.AppendWith(func(records []model.Record) error {
		return st.Append(ctx, records...)
	}, names...)
	if err != nil {
		return nil, eris.Wrap(err, "store: enqueue names")
	}
	return records, nil
}

// BatchStarted implements verify.Observer.
func (p *Persister) BatchStarted(ctx context.Context, batch []model.Record) error {
	return eris.Wrap(p.store.Save(context.WithoutCancel(ctx), batch...), "store: persist in-flight batch")
}

// BatchFinished implements verify.Observer.
func (p *Persister) BatchFinished(ctx context.Context, batch []model.Record, _ verify.BatchOutcome) error {
	return eris.Wrap(p.store.Save(context.WithoutCancel(ctx), batch...), "store: persist batch outcome")
}
