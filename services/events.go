package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mint event types for the observability stream.
const (
	MintEventStarted   = "mint:started"
	MintEventCompleted = "mint:completed"
	MintEventError     = "mint:error"
	MintEventPending   = "mint:pending"
	MintEventSkipped   = "mint:skipped"
)

// MintEvent is a fire-and-forget notification. Delivery is best-effort and
// must never be relied upon for correctness.
type MintEvent struct {
	Type    string    `json:"type"`
	JobID   string    `json:"job_id"`
	UserID  string    `json:"user_id"`
	Level   int       `json:"level"`
	TxHash  string    `json:"tx_hash,omitempty"`
	TokenID string    `json:"token_id,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// EventHub fans mint events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full simply misses the event.
type EventHub struct {
	mu   sync.Mutex
	subs map[string]chan MintEvent
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]chan MintEvent)}
}

// Subscribe returns a buffered event channel and its subscription ID.
func (h *EventHub) Subscribe() (string, <-chan MintEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan MintEvent, 16)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe drops a subscriber and closes its channel.
func (h *EventHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber that has buffer room.
func (h *EventHub) Publish(ev MintEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow consumer; drop rather than block the mint worker.
		}
	}
}
