// Package notify fans policy change events out to connected subscribers.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/policy-navigator/backend/pkg/logger"
)

const (
	UpdateIngested = "ingested"
	UpdateNewRule  = "new_rule"
)

type Update struct {
	PolicyTitle string `json:"policy_title"`
	UpdateType  string `json:"update_type"`
	Details     string `json:"details"`
}

// Hub is a broadcast channel registry. Publish never blocks: a subscriber
// that cannot keep up has the update dropped rather than stalling ingestion.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Update]struct{})}
}

func (h *Hub) Subscribe() chan Update {
	ch := make(chan Update, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

func (h *Hub) Unsubscribe(ch chan Update) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(update Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- update:
		default:
			logger.Warn("Dropping update for slow subscriber",
				zap.String("policy_title", update.PolicyTitle),
			)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
