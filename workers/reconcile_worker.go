// workers/reconcile_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"community-engagement-system/services"
)

// PollReconciliation periodically recomputes every aggregate from the ledger
// sum and corrects drift — the safety net for a crash between a ledger write
// and its aggregate update.
func PollReconciliation(ctx context.Context, xp *services.XPService, pollInterval time.Duration) {
	log.Println("Starting ledger reconciliation polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger reconciliation polling stopped.")
			return
		case <-ticker.C:
			drifted, err := xp.ReconcileAll()
			if err != nil {
				log.Printf("❌ Reconciliation pass failed: %v", err)
				continue
			}
			if len(drifted) == 0 {
				continue
			}
			for _, report := range drifted {
				log.Printf("⚠️ Corrected XP drift for %s: aggregate=%d ledger=%d",
					report.UserID, report.Aggregate, report.LedgerSum)
			}
			log.Printf("✅ Reconciliation corrected %d aggregate(s).", len(drifted))
		}
	}
}
