package verify

import (
	"time"

	"github.com/sells-group/portverify/internal/model"
)

// DemoteStale moves InFlight records last touched at least olderThan before
// now back to Pending, so records abandoned by an interrupted run become
// eligible again. It returns copies of the demoted records. A non-positive
// threshold disables demotion.
func DemoteStale(ledger *model.Ledger, olderThan time.Duration, now time.Time) []model.Record {
	if olderThan <= 0 {
		return nil
	}

	records := ledger.Records()
	var demoted []model.Record
	ledger.Mutate(func(stamp time.Time) {
		for _, r := range records {
			if r.Status != model.StatusInFlight || now.Sub(r.UpdatedAt) < olderThan {
				continue
			}
			r.Status = model.StatusPending
			r.UpdatedAt = stamp
			demoted = append(demoted, r.Clone())
		}
	})
	return demoted
}
