package workers

import (
	"log"
	"time"

	"quest-reward-system/models"
	"quest-reward-system/storage"

	"github.com/go-co-op/gocron/v2"
)

// StartMintReconciler sweeps records stuck in `minting` (a crash between the
// status write and the relayer result) and parks them as pending_offchain.
// They are never auto-requeued: the mint may have landed on chain without
// the txHash being recorded, and a second attempt risks a double mint.
// Parked records are reprocessable via the admin endpoint after inspection.
func StartMintReconciler(store storage.Store, interval, staleAfter time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-staleAfter)
			recs, err := store.StaleMintingRecords(cutoff)
			if err != nil {
				log.Printf("[MintReconciler] DB error: %v", err)
				return
			}

			for _, rec := range recs {
				status := models.MintStatusPendingOffchain
				if err := store.UpdateMintRecord(rec.UserID, rec.Level, storage.MintUpdate{Status: &status}); err != nil {
					log.Printf("[MintReconciler] Failed to park job %s: %v", rec.JobID, err)
				} else {
					log.Printf("🧹 Parked stale mint job %s (user=%s, level=%d) as pending_offchain", rec.JobID, rec.UserID, rec.Level)
				}
			}
		}),
	)
}
