package workers

import (
	"context"
	"fmt"
	"log"
	"sync"

	"quest-reward-system/models"
	"quest-reward-system/services"
	"quest-reward-system/storage"
)

// Relayer submits the actual on-chain mint. Transaction mechanics live
// behind this boundary; the worker only cares about the resulting hash.
type Relayer interface {
	// Configured reports whether signing/contract configuration is present.
	Configured() bool
	Mint(ctx context.Context, recipient string, level int, metadataURI string) (txHash, tokenID string, err error)
}

// MetadataUploadFunc stores an NFT metadata document and returns its URI.
type MetadataUploadFunc func(key string, payload interface{}) (string, error)

// MintWorker is a single-consumer FIFO over mint jobs. Enqueue is
// non-blocking for callers; one job fully completes (including the relayer
// call) before the next starts, so the record-check-before-act guard needs
// no extra locking. Jobs get at most one attempt: a failed mint is logged,
// emitted as mint:error and dropped; the record stays in minting for the
// reconciliation sweep.
type MintWorker struct {
	Store   storage.Store
	Hub     *services.EventHub
	Relayer Relayer
	Upload  MetadataUploadFunc // optional; nil leaves metadata_uri empty

	mu     sync.Mutex
	jobs   []models.MintJob
	closed bool
	signal chan struct{} // buffered size 1, signals job availability
}

func NewMintWorker(store storage.Store, hub *services.EventHub, relayer Relayer, upload MetadataUploadFunc) *MintWorker {
	return &MintWorker{
		Store:   store,
		Hub:     hub,
		Relayer: relayer,
		Upload:  upload,
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends a job to the queue and returns immediately. The original
// claim request never waits on mint completion.
func (w *MintWorker) Enqueue(job models.MintJob) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		log.Printf("⚠️  Mint queue closed, dropping job %s", job.JobID)
		return
	}
	w.jobs = append(w.jobs, job)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *MintWorker) dequeue() (models.MintJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.jobs) == 0 {
		return models.MintJob{}, false
	}
	job := w.jobs[0]
	w.jobs = w.jobs[1:]
	return job, true
}

// Pending returns the current queue depth.
func (w *MintWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.jobs)
}

// Start runs the consumer loop until the context is cancelled. Jobs are
// processed strictly sequentially.
func (w *MintWorker) Start(ctx context.Context) {
	log.Println("Starting mint worker...")
	for {
		job, ok := w.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				w.mu.Lock()
				w.closed = true
				w.mu.Unlock()
				log.Println("Mint worker stopped.")
				return
			case <-w.signal:
				continue
			}
		}
		w.process(ctx, job)
	}
}

// process drives one job through the state machine:
// queued -> minting -> minted | pending_offchain | skipped.
func (w *MintWorker) process(ctx context.Context, job models.MintJob) {
	w.publish(services.MintEventStarted, job, "", "", "")

	rec, err := w.Store.GetMintRecord(job.UserID, job.Level)
	if err != nil {
		log.Printf("❌ Mint job %s: no record for (user=%s, level=%d): %v", job.JobID, job.UserID, job.Level, err)
		w.publish(services.MintEventError, job, "", "", err.Error())
		return
	}

	// Idempotency guard: a record with a txHash is terminal. Duplicate
	// enqueues (two XP awards racing on the same level-up) end here.
	if rec.TxHash != nil && *rec.TxHash != "" {
		w.setStatus(job, models.MintStatusSkipped)
		w.publish(services.MintEventSkipped, job, *rec.TxHash, "", "")
		log.Printf("⏭️  Mint job %s skipped: level %d already minted (tx %s)", job.JobID, job.Level, *rec.TxHash)
		return
	}

	// Record-before-act: persist the in-flight state before any external
	// call so a crash is recoverable from stored intent.
	if !w.setStatus(job, models.MintStatusMinting) {
		w.publish(services.MintEventError, job, "", "", "failed to persist minting state")
		return
	}

	if w.Relayer == nil || !w.Relayer.Configured() {
		w.setStatus(job, models.MintStatusPendingOffchain)
		w.publish(services.MintEventPending, job, "", "", "")
		log.Printf("⏸️  Mint job %s parked as pending_offchain (relayer not configured)", job.JobID)
		return
	}

	var metadataURI string
	if w.Upload != nil {
		key := fmt.Sprintf("nft-metadata/%s/level-%d.json", job.UserID, job.Level)
		metadataURI, err = w.Upload(key, map[string]interface{}{
			"name":        fmt.Sprintf("Level %d Achievement", job.Level),
			"description": fmt.Sprintf("Reached level %d", job.Level),
			"attributes": []map[string]interface{}{
				{"trait_type": "Level", "value": job.Level},
			},
		})
		if err != nil {
			// Left in minting; the reconciliation sweep will park it.
			log.Printf("❌ Mint job %s: metadata upload failed: %v", job.JobID, err)
			w.publish(services.MintEventError, job, "", "", err.Error())
			return
		}
	}

	txHash, tokenID, err := w.Relayer.Mint(ctx, job.Recipient, job.Level, metadataURI)
	if err != nil {
		log.Printf("❌ Mint job %s failed: %v", job.JobID, err)
		w.publish(services.MintEventError, job, "", "", err.Error())
		return
	}

	status := models.MintStatusMinted
	upd := storage.MintUpdate{Status: &status, TxHash: &txHash, TokenID: &tokenID}
	if metadataURI != "" {
		upd.MetadataURI = &metadataURI
	}
	if err := w.Store.UpdateMintRecord(job.UserID, job.Level, upd); err != nil {
		log.Printf("❌ Mint job %s: minted (tx %s) but record update failed: %v", job.JobID, txHash, err)
		w.publish(services.MintEventError, job, txHash, tokenID, err.Error())
		return
	}

	w.publish(services.MintEventCompleted, job, txHash, tokenID, "")
	log.Printf("✅ Minted: user=%s level=%d tx=%s token=%s", job.UserID, job.Level, txHash, tokenID)
}

func (w *MintWorker) setStatus(job models.MintJob, status models.MintStatus) bool {
	if err := w.Store.UpdateMintRecord(job.UserID, job.Level, storage.MintUpdate{Status: &status}); err != nil {
		log.Printf("❌ Mint job %s: failed to set status %s: %v", job.JobID, status, err)
		return false
	}
	return true
}

func (w *MintWorker) publish(eventType string, job models.MintJob, txHash, tokenID, errMsg string) {
	if w.Hub == nil {
		return
	}
	w.Hub.Publish(services.MintEvent{
		Type:    eventType,
		JobID:   job.JobID,
		UserID:  job.UserID,
		Level:   job.Level,
		TxHash:  txHash,
		TokenID: tokenID,
		Error:   errMsg,
	})
}
