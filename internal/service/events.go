package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/observability"
)

// Workflow event types.
const (
	EventActionLogCreated       = "action_log.created"
	EventActionLogAssigned      = "action_log.assigned"
	EventActionLogStatusChanged = "action_log.status_changed"
	EventActionLogApproved      = "action_log.approved"
	EventActionLogRejected      = "action_log.rejected"
	EventActionLogCommented     = "action_log.commented"
	EventActionLogAttached      = "action_log.attached"
	EventActionLogDueToday      = "action_log.due_today"
)

// WorkflowEvent is published after a command commits.
type WorkflowEvent struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	Source         string                 `json:"source"`
	ActionLogID    uint                   `json:"action_log_id"`
	ActorID        uint                   `json:"actor_id"`
	Status         string                 `json:"status,omitempty"`
	ApprovalStatus string                 `json:"approval_status,omitempty"`
	Recipients     []uint                 `json:"recipients,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// EventPublisher fans workflow events out to subscribers. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event WorkflowEvent)
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewEventPublisher publishes to the Redis channel "<base>:events" and the NATS subject
// "<base>.events" (colons become dots). Nil transports are skipped.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event WorkflowEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = p.nodeID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to encode workflow event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.EventPublishFailures().WithLabelValues("redis").Inc()
			p.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish workflow event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.EventPublishFailures().WithLabelValues("nats").Inc()
			p.logger.Warn().Err(err).Str("event_type", event.Type).Msg("failed to publish workflow event to nats")
		}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, WorkflowEvent) {}

// NopEventPublisher discards events.
func NopEventPublisher() EventPublisher { return nopPublisher{} }
