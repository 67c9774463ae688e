package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

// Notice describes a notification addressed to several users about one action log.
type Notice struct {
	Recipients  []uint
	ActionLogID uint
	CommentID   *uint
	Type        string
	Message     string
	// ExcludeUserID is typically the actor, who is never notified about their own action.
	ExcludeUserID uint
}

// Notifier records notifications. Delivery is left to event subscribers.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// NotificationService records notifications and serves the caller's inbox.
type NotificationService interface {
	Notifier
	List(ctx context.Context, userID uint, query dto.NotificationListQuery) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error)
	NotifiedOn(ctx context.Context, userID, actionLogID uint, notificationType string, day time.Time) (bool, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
}

// NewNotificationService constructs a notification service.
func NewNotificationService(repo repository.NotificationRepository, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/actionlog-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *notificationService) Notify(ctx context.Context, notice Notice) error {
	message := strings.TrimSpace(s.sanitizer.Sanitize(notice.Message))
	if message == "" {
		return errors.New("notification message empty after sanitization")
	}

	seen := make(map[uint]struct{}, len(notice.Recipients))
	batch := make([]models.Notification, 0, len(notice.Recipients))
	for _, userID := range notice.Recipients {
		if userID == 0 || userID == notice.ExcludeUserID {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		batch = append(batch, models.Notification{
			UserID:      userID,
			ActionLogID: notice.ActionLogID,
			CommentID:   notice.CommentID,
			Type:        notice.Type,
			Message:     message,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.notify", trace.WithAttributes(
		attribute.String("notification.type", notice.Type),
		attribute.Int("notification.recipients", len(batch)),
		attribute.Int64("notification.action_log_id", int64(notice.ActionLogID)),
	))
	defer span.End()

	if err := s.repo.CreateBatch(spanCtx, batch); err != nil {
		span.RecordError(err)
		return err
	}

	observability.NotificationsPublishedTotal().WithLabelValues(notice.Type).Add(float64(len(batch)))
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uint, query dto.NotificationListQuery) ([]dto.NotificationResponse, error) {
	if userID == 0 {
		return nil, newValidationError("user_id", "is required")
	}
	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(query)); err != nil {
		return nil, err
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	notifications, err := s.repo.ListByUser(ctx, userID, query.UnreadOnly, query.Limit, query.Offset)
	if err != nil {
		return nil, storageError(err, ErrNotificationNotFound)
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
		}
		return dto.NotificationResponse{}, storageError(err, ErrNotificationNotFound)
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) NotifiedOn(ctx context.Context, userID, actionLogID uint, notificationType string, day time.Time) (bool, error) {
	start := midnight(day)
	return s.repo.ExistsForDay(ctx, userID, actionLogID, notificationType, start, start.AddDate(0, 0, 1))
}
