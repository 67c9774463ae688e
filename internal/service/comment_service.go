package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/lock"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

// CommentService manages the comment thread of an action log.
type CommentService interface {
	Post(ctx context.Context, actorID, actionLogID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error)
	List(ctx context.Context, actorID, actionLogID uint) ([]dto.CommentResponse, error)
	UnreadCount(ctx context.Context, actorID, actionLogID uint) (dto.UnreadCountResponse, error)
}

type commentService struct {
	logs      repository.ActionLogRepository
	comments  repository.CommentRepository
	directory DirectoryService
	locker    lock.Locker
	reads     ReadTracker
	notifier  Notifier
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	lockWait  time.Duration
	now       func() time.Time
}

// NewCommentService constructs the comment thread service. The locker should be the one
// shared with the workflow engine so status snapshots are consistent.
func NewCommentService(
	logs repository.ActionLogRepository,
	comments repository.CommentRepository,
	directory DirectoryService,
	locker lock.Locker,
	reads ReadTracker,
	notifier Notifier,
	events EventPublisher,
	validate *validator.Validate,
	lockTimeout time.Duration,
	logger zerolog.Logger,
) CommentService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if reads == nil {
		reads = newMemoryReadTracker()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = NopEventPublisher()
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}

	return &commentService{
		logs:      logs,
		comments:  comments,
		directory: directory,
		locker:    locker,
		reads:     reads,
		notifier:  notifier,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "comment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/actionlog-api/internal/service/comment"),
		sanitizer: bluemonday.StrictPolicy(),
		lockWait:  lockTimeout,
		now:       time.Now,
	}
}

func (s *commentService) Post(ctx context.Context, actorID, actionLogID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "comments.post", trace.WithAttributes(attribute.Int64("action_log.id", int64(actionLogID))))
	defer span.End()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.CommentResponse{}, err
	}
	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Comment))
	if body == "" {
		errs.add("comment", "is required")
	}
	if err := errs.err(); err != nil {
		return dto.CommentResponse{}, err
	}

	actor, err := resolveActor(ctx, s.directory, actorID)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, lockKey(actionLogID))
	if err != nil {
		return dto.CommentResponse{}, storageError(err, ErrActionLogNotFound)
	}
	defer release()

	log, err := s.logs.GetByID(ctx, actionLogID)
	if err != nil {
		return dto.CommentResponse{}, storageError(err, ErrActionLogNotFound)
	}
	if !CanView(actor, log) {
		return dto.CommentResponse{}, ErrActionLogNotFound
	}

	var parent *models.Comment
	if req.ParentCommentID != nil {
		found, err := s.comments.FindByID(ctx, *req.ParentCommentID)
		if err != nil {
			return dto.CommentResponse{}, storageError(err, ErrCommentNotFound)
		}
		if found.ActionLogID != log.ID {
			return dto.CommentResponse{}, ErrCommentNotFound
		}
		parent = &found
	}

	comment := &models.Comment{
		ActionLogID:     log.ID,
		AuthorID:        actor.ID,
		ParentCommentID: req.ParentCommentID,
		Body:            body,
	}
	comment.SnapshotFrom(log)

	audit := &models.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.RoleName(),
		Action:    models.AuditActionComment,
		Metadata:  map[string]interface{}{"reply": parent != nil},
		CreatedAt: s.now(),
	}
	if err := s.comments.Create(ctx, comment, audit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create comment")
		return dto.CommentResponse{}, storageError(err, ErrActionLogNotFound)
	}
	comment.Author = actor

	recipients := stakeholders(log)
	if parent != nil {
		recipients = append(recipients, parent.AuthorID)
	}
	commentID := comment.ID
	if err := s.notifier.Notify(ctx, Notice{
		Recipients:    recipients,
		ActionLogID:   log.ID,
		CommentID:     &commentID,
		Type:          models.NotificationComment,
		Message:       fmt.Sprintf("%s commented on %q", displayName(actor), log.Title),
		ExcludeUserID: actor.ID,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("action_log_id", log.ID).Msg("failed to record comment notifications")
	}
	s.events.Publish(ctx, WorkflowEvent{
		Type:        EventActionLogCommented,
		ActionLogID: log.ID,
		ActorID:     actor.ID,
		Status:      log.Status,
		Data:        map[string]interface{}{"comment_id": comment.ID},
		OccurredAt:  s.now().UTC(),
	})

	s.logger.Info().Uint("action_log_id", log.ID).Uint("comment_id", comment.ID).Uint("actor_id", actor.ID).Msg("comment posted")
	return dto.NewCommentResponse(*comment), nil
}

// List returns the thread and marks every returned comment as read for the viewer.
func (s *commentService) List(ctx context.Context, actorID, actionLogID uint) ([]dto.CommentResponse, error) {
	actor, comments, err := s.thread(ctx, actorID, actionLogID)
	if err != nil {
		return nil, err
	}

	read, err := s.reads.ReadSet(ctx, actor.ID, actionLogID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load read state")
		read = map[uint]struct{}{}
	}

	tree, unread := buildCommentTree(comments, actor.ID, read)
	if len(unread) > 0 {
		if err := s.reads.MarkRead(ctx, actor.ID, actionLogID, unread); err != nil {
			s.logger.Warn().Err(err).Msg("failed to mark comments read")
		}
	}
	return tree, nil
}

func (s *commentService) UnreadCount(ctx context.Context, actorID, actionLogID uint) (dto.UnreadCountResponse, error) {
	actor, comments, err := s.thread(ctx, actorID, actionLogID)
	if err != nil {
		return dto.UnreadCountResponse{}, err
	}

	read, err := s.reads.ReadSet(ctx, actor.ID, actionLogID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load read state")
		read = map[uint]struct{}{}
	}

	count := 0
	for _, comment := range comments {
		if isUnread(comment, actor.ID, read) {
			count++
		}
	}
	return dto.UnreadCountResponse{ActionLogID: actionLogID, Unread: count}, nil
}

func (s *commentService) thread(ctx context.Context, actorID, actionLogID uint) (models.User, []models.Comment, error) {
	actor, err := resolveActor(ctx, s.directory, actorID)
	if err != nil {
		return models.User{}, nil, err
	}
	log, err := s.logs.GetByID(ctx, actionLogID)
	if err != nil {
		return models.User{}, nil, storageError(err, ErrActionLogNotFound)
	}
	if !CanView(actor, log) {
		return models.User{}, nil, ErrActionLogNotFound
	}
	comments, err := s.comments.ListByActionLog(ctx, actionLogID)
	if err != nil {
		return models.User{}, nil, storageError(err, ErrActionLogNotFound)
	}
	return actor, comments, nil
}

func isUnread(comment models.Comment, viewerID uint, read map[uint]struct{}) bool {
	if comment.AuthorID == viewerID {
		return false
	}
	_, seen := read[comment.ID]
	return !seen
}

// buildCommentTree expects comments oldest first. Roots come back newest first and replies
// oldest first. Replies whose parent is missing are promoted to roots.
func buildCommentTree(comments []models.Comment, viewerID uint, read map[uint]struct{}) ([]dto.CommentResponse, []uint) {
	known := make(map[uint]struct{}, len(comments))
	for _, comment := range comments {
		known[comment.ID] = struct{}{}
	}

	children := make(map[uint][]models.Comment)
	roots := make([]models.Comment, 0, len(comments))
	unread := make([]uint, 0)
	for _, comment := range comments {
		if isUnread(comment, viewerID, read) {
			unread = append(unread, comment.ID)
		}
		if comment.ParentCommentID != nil {
			if _, ok := known[*comment.ParentCommentID]; ok && *comment.ParentCommentID != comment.ID {
				children[*comment.ParentCommentID] = append(children[*comment.ParentCommentID], comment)
				continue
			}
		}
		roots = append(roots, comment)
	}

	var node func(comment models.Comment) dto.CommentResponse
	node = func(comment models.Comment) dto.CommentResponse {
		response := dto.NewCommentResponse(comment)
		response.Unread = isUnread(comment, viewerID, read)
		for _, reply := range children[comment.ID] {
			response.Replies = append(response.Replies, node(reply))
		}
		return response
	}

	tree := make([]dto.CommentResponse, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		tree = append(tree, node(roots[i]))
	}
	return tree, unread
}
