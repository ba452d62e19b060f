package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fanledger/internal/metrics"
)

const (
	TypePurchaseCreated       = "purchase.created"
	TypePurchaseComplimentary = "purchase.complimentary"
	TypePPVUnlocked           = "ppv.unlocked"
	TypeGrantChanged          = "entitlement.changed"
	TypeWalletTopUp           = "wallet.topup"
)

type Event struct {
	EventID   string                 `json:"eventId"`
	Type      string                 `json:"type"`
	CreatorID int                    `json:"creatorId"`
	FanID     int                    `json:"fanId"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Emitter is the fire-and-forget publish side. At-most-once, no
// persistence; emitting never blocks the caller.
type Emitter interface {
	Emit(e Event)
}

// Hub fans events out to in-process subscribers. Slow subscribers drop
// events rather than slow down the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and an unsubscribe func. The buffer
// bounds how far a subscriber may lag before it starts losing events.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan Event, buffer)
	h.subs[id] = ch
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

func (h *Hub) Emit(e Event) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	metrics.RecordEventEmitted(e.Type)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			metrics.RecordEventDropped()
		}
	}
}

// NopEmitter discards everything. Useful where a hub is not wired.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
