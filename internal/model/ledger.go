package model

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is the insertion-ordered collection of verification records.
// Records are only ever appended; existing entries are mutated in place
// through Mutate. Observers may read Snapshot concurrently with a run.
type Ledger struct {
	mu      sync.RWMutex
	records []*Record
	nextSeq int64

	// Now is the clock used to stamp transitions.
	Now func() time.Time
}

// NewLedger builds a ledger from previously persisted records, which must
// already be in ledger order.
func NewLedger(records ...Record) *Ledger {
	l := &Ledger{Now: time.Now}
	for i := range records {
		r := records[i].Clone()
		l.records = append(l.records, &r)
		if r.Seq >= l.nextSeq {
			l.nextSeq = r.Seq + 1
		}
	}
	return l
}

// Append creates one pending record per non-blank name, preserving order and
// duplicates, and returns the new records.
func (l *Ledger) Append(names ...string) []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := l.build(names)
	l.commit(added)
	return added
}

// AppendWith is Append with a write-through step. persist receives copies of
// the new records before they become visible; if it fails the ledger is left
// unchanged and its error is returned.
func (l *Ledger) AppendWith(persist func([]Record) error, names ...string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := l.build(names)
	copies := make([]Record, len(added))
	for i, r := range added {
		copies[i] = r.Clone()
	}
	if len(added) > 0 {
		if err := persist(copies); err != nil {
			return nil, err
		}
	}
	l.commit(added)
	return copies, nil
}

// build creates records for names without adding them. Callers hold mu.
func (l *Ledger) build(names []string) []*Record {
	now := l.now()
	seq := l.nextSeq
	var added []*Record
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		added = append(added, &Record{
			ID:           uuid.New().String(),
			Seq:          seq,
			OriginalName: name,
			QueryText:    QueryTextFor(name),
			Status:       StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		seq++
	}
	return added
}

func (l *Ledger) commit(added []*Record) {
	l.records = append(l.records, added...)
	l.nextSeq += int64(len(added))
}

// Eligible returns the live records a run should process, in ledger order.
func (l *Ledger) Eligible() []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Record
	for _, r := range l.records {
		if r.Status.Eligible() {
			out = append(out, r)
		}
	}
	return out
}

// Records returns the live record pointers. Callers other than the single
// writer should use Snapshot instead.
func (l *Ledger) Records() []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Record(nil), l.records...)
}

// Mutate runs fn while holding the write lock so snapshot readers never see
// a half-applied step.
func (l *Ledger) Mutate(fn func(now time.Time)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.now())
}

// Snapshot returns deep copies of all records in ledger order.
func (l *Ledger) Snapshot() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[i] = r.Clone()
	}
	return out
}

// Filter returns copies of the records in the given status.
func (l *Ledger) Filter(status Status) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	for _, r := range l.records {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Counts tallies records by status.
func (l *Ledger) Counts() map[Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[Status]int, 4)
	for _, r := range l.records {
		counts[r.Status]++
	}
	return counts
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear discards every record. This is a user-level reset; the orchestrator
// never calls it.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}
