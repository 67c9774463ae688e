package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/observability"
)

const (
	eventStreamBufferSize = 16
	relayRetryDelay       = 500 * time.Millisecond
)

// EventHub delivers workflow events to connected stream clients on this node and forwards
// them to the wrapped publisher. With Redis configured, it also relays events published
// by other nodes.
type EventHub struct {
	inner   EventPublisher
	redis   *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger
	retry   time.Duration

	mu          sync.RWMutex
	subscribers map[uint]map[chan WorkflowEvent]struct{}
}

// NewEventHub wraps inner. channelBase must match the one given to NewEventPublisher.
func NewEventHub(inner EventPublisher, client *redis.Client, channelBase string, logger zerolog.Logger) *EventHub {
	if inner == nil {
		inner = NopEventPublisher()
	}
	channel := ""
	if channelBase != "" {
		channel = channelBase + ":events"
	}
	return &EventHub{
		inner:       inner,
		redis:       client,
		channel:     channel,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "event_hub").Logger(),
		retry:       relayRetryDelay,
		subscribers: make(map[uint]map[chan WorkflowEvent]struct{}),
	}
}

// Publish stamps the event with this node's id, delivers it locally and forwards it.
func (h *EventHub) Publish(ctx context.Context, event WorkflowEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Source = h.nodeID

	h.deliver(event)
	h.inner.Publish(ctx, event)
}

// Subscribe registers a stream for events addressed to userID. The returned func must be
// called to release it.
func (h *EventHub) Subscribe(userID uint) (<-chan WorkflowEvent, func()) {
	ch := make(chan WorkflowEvent, eventStreamBufferSize)

	h.mu.Lock()
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[chan WorkflowEvent]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()
	observability.StreamClients().Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subscribers, ok := h.subscribers[userID]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(h.subscribers, userID)
				}
			}
			close(ch)
			h.mu.Unlock()
			observability.StreamClients().Dec()
		})
	}
}

// Start relays events from other nodes until ctx is cancelled. It is a no-op without Redis.
// Receive errors are retried; the subscription is re-established on the next receive.
func (h *EventHub) Start(ctx context.Context) {
	if h.redis == nil || h.channel == "" {
		return
	}

	pubsub := h.redis.Subscribe(ctx, h.channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				h.logger.Warn().Err(err).Dur("retry_in", h.retry).Msg("event relay receive failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(h.retry):
				}
				continue
			}
			h.relay([]byte(msg.Payload))
		}
	}()
}

func (h *EventHub) relay(payload []byte) {
	var event WorkflowEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn().Err(err).Msg("invalid workflow event payload")
		return
	}
	if event.Source == h.nodeID {
		return
	}
	h.deliver(event)
}

// deliver drops events for slow clients rather than blocking the publisher.
func (h *EventHub) deliver(event WorkflowEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range uniqueIDs(event.Recipients) {
		for ch := range h.subscribers[userID] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}
