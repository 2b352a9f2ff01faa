package events

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/types"
)

const subscriberBuffer = 64

// DecisionEvent is the live feed entry published for every analyzed request.
type DecisionEvent struct {
	RequestID string          `json:"request_id"`
	TenantID  string          `json:"tenant_id"`
	ClientIP  string          `json:"client_ip"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Score     float64         `json:"score"`
	RiskLevel types.RiskLevel `json:"risk_level"`
	Action    types.Action    `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
}

type subscriber struct {
	ch chan DecisionEvent
}

// Hub fans decision events out to websocket subscribers. Publish never
// blocks: a subscriber that cannot keep up loses events, not the gateway.
type Hub struct {
	logger *logrus.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Publish delivers the event to every subscriber with room in its buffer.
func (h *Hub) Publish(evt DecisionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// SubscriberCount reports the number of attached feeds.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{ch: make(chan DecisionEvent, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

// Handle pumps events to one websocket connection until it drops.
func (h *Hub) Handle(c *websocket.Conn) {
	sub := h.subscribe()
	defer h.unsubscribe(sub)
	defer func() {
		if err := c.Close(); err != nil {
			h.logger.WithError(err).Debug("Failed to close event feed connection")
		}
	}()

	// drain reads so control frames are processed; any read error ends
	// the session
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := c.WriteJSON(evt); err != nil {
				h.logger.WithError(err).Debug("Event feed write failed")
				return
			}
		}
	}
}
