package service

import (
	"context"
	"errors"
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
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

const (
	commandCreate       = "create"
	commandAssign       = "assign"
	commandUpdateStatus = "update_status"
	commandApprove      = "approve"
	commandReject       = "reject"
	commandPatch        = "patch"
)

// WorkflowSettings tunes the engine.
type WorkflowSettings struct {
	// Location is used to truncate dates to midnight when computing days remaining.
	Location    *time.Location
	LockTimeout time.Duration
}

// ActionLogService runs the assignment, status and approval workflow.
type ActionLogService interface {
	Create(ctx context.Context, actorID uint, req dto.ActionLogCreateRequest) (dto.ActionLogResponse, error)
	Get(ctx context.Context, actorID, id uint) (dto.ActionLogResponse, error)
	List(ctx context.Context, actorID uint, query dto.ActionLogListQuery) (dto.ActionLogListResponse, error)
	Assign(ctx context.Context, actorID, id uint, req dto.ActionLogAssignRequest) (dto.ActionLogResponse, error)
	UpdateStatus(ctx context.Context, actorID, id uint, req dto.ActionLogStatusRequest) (dto.ActionLogResponse, error)
	Approve(ctx context.Context, actorID, id uint, req dto.ActionLogApproveRequest) (dto.ActionLogResponse, error)
	Reject(ctx context.Context, actorID, id uint, req dto.ActionLogRejectRequest) (dto.ActionLogResponse, error)
	Patch(ctx context.Context, actorID, id uint, req dto.ActionLogPatchRequest) (dto.ActionLogResponse, error)
	AssignmentHistory(ctx context.Context, actorID, id uint) ([]dto.AssignmentHistoryResponse, error)
	Approvals(ctx context.Context, actorID, id uint) ([]dto.ApprovalRecordResponse, error)
	AssignableUsers(ctx context.Context, actorID uint) ([]dto.UserSummary, error)
}

type actionLogService struct {
	repo        repository.ActionLogRepository
	directory   DirectoryService
	locker      lock.Locker
	notifier    Notifier
	events      EventPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	loc         *time.Location
	lockTimeout time.Duration
	now         func() time.Time
}

// NewActionLogService wires the workflow engine. A nil locker falls back to an in-process keyed mutex.
func NewActionLogService(
	repo repository.ActionLogRepository,
	directory DirectoryService,
	locker lock.Locker,
	notifier Notifier,
	events EventPublisher,
	validate *validator.Validate,
	settings WorkflowSettings,
	logger zerolog.Logger,
) ActionLogService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if events == nil {
		events = NopEventPublisher()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.LockTimeout <= 0 {
		settings.LockTimeout = 5 * time.Second
	}

	return &actionLogService{
		repo:        repo,
		directory:   directory,
		locker:      locker,
		notifier:    notifier,
		events:      events,
		validator:   validate,
		logger:      logger.With().Str("component", "action_log_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/actionlog-api/internal/service/action_log"),
		sanitizer:   bluemonday.StrictPolicy(),
		loc:         settings.Location,
		lockTimeout: settings.LockTimeout,
		now:         time.Now,
	}
}

func (s *actionLogService) Create(ctx context.Context, actorID uint, req dto.ActionLogCreateRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.create")
	defer func() { s.finish(span, commandCreate, err) }()

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	if actor.Role == nil || !actor.Role.CanCreateLogs {
		return dto.ActionLogResponse{}, denied("your role cannot create action logs")
	}

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	title := s.clean(req.Title)
	description := s.clean(req.Description)
	if title == "" {
		errs.add("title", "is required")
	}
	if description == "" {
		errs.add("description", "is required")
	}
	now := s.now()
	if days, ok := DaysRemaining(req.DueDate, now, s.loc); ok && days < 0 {
		errs.add("due_date", "must not be in the past")
	}
	if isSenior(actor) && len(req.AssignedTo) == 0 {
		errs.add("assigned_to", "is required when the creator has no department unit")
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	assignees, err := s.resolveAssignees(ctx, req.AssignedTo)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	if err := ensureAssignable(actor, assignees); err != nil {
		return dto.ActionLogResponse{}, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	log := &models.ActionLog{
		Title:            title,
		Description:      description,
		Priority:         priority,
		DueDate:          req.DueDate,
		Status:           models.StatusOpen,
		ApprovalStatus:   models.ApprovalNone,
		CreatedByID:      actor.ID,
		DepartmentID:     actor.DepartmentID,
		DepartmentUnitID: actor.DepartmentUnitID,
		Assignees:        assignees,
	}
	if isSenior(actor) {
		log.DepartmentID = assignees[0].DepartmentID
		log.DepartmentUnitID = assignees[0].DepartmentUnitID
	}

	assigneeIDs := log.AssigneeIDs()
	change := repository.ActionLogChange{
		Audit: []models.AuditEntry{s.audit(actor, models.AuditActionCreate, map[string]interface{}{
			"title":       title,
			"priority":    priority,
			"assigned_to": assigneeIDs,
		})},
	}
	if len(assignees) > 0 {
		change.History = &models.AssignmentHistory{
			AssignedByID: actor.ID,
			AssignedTo:   assignees,
			AssignedAt:   now,
			Comment:      "Initial assignment",
		}
	}

	if err := s.repo.Create(ctx, log, change); err != nil {
		return dto.ActionLogResponse{}, storageError(err, ErrActionLogNotFound)
	}
	span.SetAttributes(attribute.Int64("action_log.id", int64(log.ID)))

	stored := s.reload(ctx, *log)
	s.logger.Info().
		Uint("action_log_id", stored.ID).
		Uint("actor_id", actor.ID).
		Int("assignees", len(assigneeIDs)).
		Msg("action log created")

	var notice *Notice
	if len(assigneeIDs) > 0 {
		notice = &Notice{
			Recipients: assigneeIDs,
			Type:       models.NotificationAssignment,
			Message:    fmt.Sprintf("%s assigned you to %q", displayName(actor), stored.Title),
		}
	}
	s.afterCommit(ctx, actor, stored, EventActionLogCreated, notice, nil)

	return s.present(ctx, actor, stored), nil
}

func (s *actionLogService) Get(ctx context.Context, actorID, id uint) (dto.ActionLogResponse, error) {
	actor, log, err := s.loadVisible(ctx, actorID, id)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	return s.present(ctx, actor, log), nil
}

func (s *actionLogService) List(ctx context.Context, actorID uint, query dto.ActionLogListQuery) (dto.ActionLogListResponse, error) {
	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(query)); err != nil {
		return dto.ActionLogListResponse{}, err
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogListResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogListResponse{}, err
	}

	logs, err := s.repo.List(ctx)
	if err != nil {
		return dto.ActionLogListResponse{}, storageError(err, ErrActionLogNotFound)
	}

	filtered := SearchAndFilter(VisibleLogs(actor, logs), ActionLogFilter{
		Text:         query.Search,
		Status:       query.Status,
		AssignedToMe: query.AssignedToMe,
	}, actor)
	page, meta := paginate(filtered, query.Page, query.PageSize)

	ids := make([]uint, 0, len(page))
	for _, log := range page {
		ids = append(ids, log.ID)
	}
	counts := s.commentCounts(ctx, ids)

	items := make([]dto.ActionLogResponse, 0, len(page))
	for _, log := range page {
		items = append(items, s.presentWithCount(actor, log, counts[log.ID]))
	}

	return dto.ActionLogListResponse{Items: items, Pagination: meta}, nil
}

func (s *actionLogService) Assign(ctx context.Context, actorID, id uint, req dto.ActionLogAssignRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.assign", trace.WithAttributes(attribute.Int64("action_log.id", int64(id))))
	defer func() { s.finish(span, commandAssign, err) }()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	users, err := s.resolveAssignees(ctx, req.AssignedTo)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	comment := s.clean(req.Comment)

	log, err := s.mutate(ctx, commandAssign, id, func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
		return s.applyAssign(actor, users, comment, log, change, now)
	})
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	s.logger.Info().Uint("action_log_id", log.ID).Uint("actor_id", actor.ID).Msg("action log assigned")
	s.afterCommit(ctx, actor, log, EventActionLogAssigned, s.assignmentNotice(actor, log), nil)
	return s.present(ctx, actor, log), nil
}

func (s *actionLogService) UpdateStatus(ctx context.Context, actorID, id uint, req dto.ActionLogStatusRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.update_status", trace.WithAttributes(
		attribute.Int64("action_log.id", int64(id)),
		attribute.String("action_log.status", req.Status),
	))
	defer func() { s.finish(span, commandUpdateStatus, err) }()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	comment := s.clean(req.Comment)
	if comment == "" {
		errs.add("comment", "is required")
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	log, err := s.mutate(ctx, commandUpdateStatus, id, func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
		return s.applyStatus(actor, req.Status, comment, log, change)
	})
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	s.logger.Info().Uint("action_log_id", log.ID).Uint("actor_id", actor.ID).Str("status", log.Status).Msg("action log status updated")
	s.afterCommit(ctx, actor, log, EventActionLogStatusChanged, s.statusNotice(actor, log), nil)
	return s.present(ctx, actor, log), nil
}

func (s *actionLogService) Approve(ctx context.Context, actorID, id uint, req dto.ActionLogApproveRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.approve", trace.WithAttributes(attribute.Int64("action_log.id", int64(id))))
	defer func() { s.finish(span, commandApprove, err) }()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}
	comment := s.clean(req.Comment)

	log, err := s.mutate(ctx, commandApprove, id, func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
		return s.applyApprove(actor, "", comment, log, change, now)
	})
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	s.logger.Info().Uint("action_log_id", log.ID).Uint("actor_id", actor.ID).Str("approval_status", log.ApprovalStatus).Msg("action log approved")
	s.afterCommit(ctx, actor, log, EventActionLogApproved, s.approvalNotice(actor, log), nil)
	return s.present(ctx, actor, log), nil
}

func (s *actionLogService) Reject(ctx context.Context, actorID, id uint, req dto.ActionLogRejectRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.reject", trace.WithAttributes(attribute.Int64("action_log.id", int64(id))))
	defer func() { s.finish(span, commandReject, err) }()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	reason := s.clean(req.Reason)
	if reason == "" {
		errs.add("reason", "is required")
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	log, err := s.mutate(ctx, commandReject, id, func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
		return s.applyReject(actor, reason, log, change, now)
	})
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	s.logger.Info().Uint("action_log_id", log.ID).Uint("actor_id", actor.ID).Msg("action log rejected")
	notice := &Notice{
		Recipients: stakeholders(log),
		Type:       models.NotificationRejection,
		Message:    fmt.Sprintf("%s sent %q back: %s", displayName(actor), log.Title, reason),
	}
	s.afterCommit(ctx, actor, log, EventActionLogRejected, notice, map[string]interface{}{"reason": reason})
	return s.present(ctx, actor, log), nil
}

// Patch applies assignment, then approval or status, inside one lock and one transaction.
func (s *actionLogService) Patch(ctx context.Context, actorID, id uint, req dto.ActionLogPatchRequest) (response dto.ActionLogResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "action_logs.patch", trace.WithAttributes(attribute.Int64("action_log.id", int64(id))))
	defer func() { s.finish(span, commandPatch, err) }()

	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(req)); err != nil {
		return dto.ActionLogResponse{}, err
	}
	comment := s.clean(req.Comment)
	if req.AssignedTo == nil && req.Status == nil && req.ApprovalStatus == nil {
		errs.add("assigned_to", "one of assigned_to, status or approval_status is required")
	}
	if req.AssignedTo != nil && len(*req.AssignedTo) == 0 {
		errs.add("assigned_to", "must contain at least 1 item(s)")
	}
	if req.ApprovalStatus != nil && req.Status != nil && *req.Status != models.StatusClosed {
		errs.add("status", "must be closed when approving")
	}
	if req.ApprovalStatus == nil && req.Status != nil && comment == "" {
		errs.add("comment", "is required")
	}
	if err := errs.err(); err != nil {
		return dto.ActionLogResponse{}, err
	}

	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	var users []models.User
	if req.AssignedTo != nil {
		users, err = s.resolveAssignees(ctx, *req.AssignedTo)
		if err != nil {
			return dto.ActionLogResponse{}, err
		}
	}

	log, err := s.mutate(ctx, commandPatch, id, func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
		if req.AssignedTo != nil {
			if err := s.applyAssign(actor, users, comment, log, change, now); err != nil {
				return err
			}
		}
		switch {
		case req.ApprovalStatus != nil:
			return s.applyApprove(actor, *req.ApprovalStatus, comment, log, change, now)
		case req.Status != nil:
			return s.applyStatus(actor, *req.Status, comment, log, change)
		}
		return nil
	})
	if err != nil {
		return dto.ActionLogResponse{}, err
	}

	s.logger.Info().Uint("action_log_id", log.ID).Uint("actor_id", actor.ID).Msg("action log patched")
	if req.AssignedTo != nil {
		s.afterCommit(ctx, actor, log, EventActionLogAssigned, s.assignmentNotice(actor, log), nil)
	}
	switch {
	case req.ApprovalStatus != nil:
		s.afterCommit(ctx, actor, log, EventActionLogApproved, s.approvalNotice(actor, log), nil)
	case req.Status != nil:
		s.afterCommit(ctx, actor, log, EventActionLogStatusChanged, s.statusNotice(actor, log), nil)
	}
	return s.present(ctx, actor, log), nil
}

func (s *actionLogService) AssignmentHistory(ctx context.Context, actorID, id uint) ([]dto.AssignmentHistoryResponse, error) {
	if _, _, err := s.loadVisible(ctx, actorID, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAssignmentHistory(ctx, id)
	if err != nil {
		return nil, storageError(err, ErrActionLogNotFound)
	}
	return dto.NewAssignmentHistoryResponseSlice(entries), nil
}

func (s *actionLogService) Approvals(ctx context.Context, actorID, id uint) ([]dto.ApprovalRecordResponse, error) {
	if _, _, err := s.loadVisible(ctx, actorID, id); err != nil {
		return nil, err
	}
	records, err := s.repo.ListApprovals(ctx, id)
	if err != nil {
		return nil, storageError(err, ErrActionLogNotFound)
	}
	return dto.NewApprovalRecordResponseSlice(records), nil
}

func (s *actionLogService) AssignableUsers(ctx context.Context, actorID uint) ([]dto.UserSummary, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	users, err := s.directory.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewUserSummarySlice(AssignableUsers(actor, users)), nil
}

type mutation func(log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error

// mutate serialises on the log id, applies fn to a fresh copy and persists the result with
// an optimistic version check. The returned log is re-read after commit.
func (s *actionLogService) mutate(ctx context.Context, command string, id uint, fn mutation) (models.ActionLog, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	waitStart := time.Now()
	release, err := s.locker.Acquire(lockCtx, lockKey(id))
	observability.LockWait().WithLabelValues(command).Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return models.ActionLog{}, storageError(err, ErrActionLogNotFound)
	}
	defer release()

	log, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.ActionLog{}, storageError(err, ErrActionLogNotFound)
	}

	change := repository.ActionLogChange{ExpectedVersion: log.Version}
	if err := fn(&log, &change, s.now()); err != nil {
		return models.ActionLog{}, err
	}

	if err := s.repo.Apply(ctx, &log, change); err != nil {
		return models.ActionLog{}, storageError(err, ErrActionLogNotFound)
	}

	return s.reload(ctx, log), nil
}

func (s *actionLogService) applyAssign(actor models.User, users []models.User, comment string, log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
	if !CanAssign(actor, *log) {
		return denied("only commissioners, assistant commissioners and unit heads can assign action logs")
	}
	if err := ensureAssignable(actor, users); err != nil {
		return err
	}
	if log.HasAssignees() && !CanReassign(*log, now, s.loc) {
		return ErrNotReassignable
	}

	previous := log.AssigneeIDs()
	log.ReplaceAssignees(users)
	if log.DepartmentUnitID == nil && len(users) > 0 && users[0].DepartmentUnitID != nil {
		log.DepartmentUnitID = users[0].DepartmentUnitID
		if log.DepartmentID == nil {
			log.DepartmentID = users[0].DepartmentID
		}
	}

	change.ReplaceAssignees = true
	change.History = &models.AssignmentHistory{
		AssignedByID: actor.ID,
		AssignedTo:   users,
		AssignedAt:   now,
		Comment:      comment,
	}
	change.Audit = append(change.Audit, s.audit(actor, models.AuditActionAssign, map[string]interface{}{
		"previous":    previous,
		"assigned_to": log.AssigneeIDs(),
		"reassigned":  len(previous) > 0,
	}))
	return nil
}

func (s *actionLogService) applyStatus(actor models.User, status, comment string, log *models.ActionLog, change *repository.ActionLogChange) error {
	if !CanUpdateStatus(actor, *log) {
		return denied("only assignees can update the status of this action log")
	}

	from := log.Status
	if err := log.ChangeStatus(status); err != nil {
		if errors.Is(err, models.ErrInvalidStatus) {
			return newValidationError("status", "must be one of: open in_progress closed")
		}
		return err
	}

	note := &models.Comment{AuthorID: actor.ID, Body: comment}
	note.SnapshotFrom(*log)
	change.Comments = append(change.Comments, note)
	change.Audit = append(change.Audit, s.audit(actor, models.AuditActionUpdateStatus, map[string]interface{}{
		"from": from,
		"to":   log.Status,
	}))
	return nil
}

func (s *actionLogService) applyApprove(actor models.User, requested, comment string, log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
	stage, ok := ApprovalStageFor(actor, *log)
	if !ok || !HasApprovalAuthority(actor, *log) {
		return denied(approvalDeniedReason(*log))
	}
	if requested != "" && requested != stage {
		return denied(fmt.Sprintf("you can only record %s at this stage", stage))
	}

	previous := log.Status
	if err := log.Approve(stage, actor.ID, now); err != nil {
		return denied(err.Error())
	}

	change.Approval = &models.ApprovalRecord{
		ApproverID: actor.ID,
		Decision:   models.DecisionApproved,
		Stage:      stage,
		Comment:    comment,
		CreatedAt:  now,
	}
	if comment != "" {
		note := &models.Comment{AuthorID: actor.ID, Body: comment}
		note.SnapshotFrom(*log)
		change.Comments = append(change.Comments, note)
	}
	change.Audit = append(change.Audit, s.audit(actor, models.AuditActionApprove, map[string]interface{}{
		"stage":           stage,
		"previous_status": previous,
	}))
	return nil
}

func (s *actionLogService) applyReject(actor models.User, reason string, log *models.ActionLog, change *repository.ActionLogChange, now time.Time) error {
	stage, ok := ApprovalStageFor(actor, *log)
	if !ok || !HasApprovalAuthority(actor, *log) {
		return denied(approvalDeniedReason(*log))
	}

	previous := log.Status
	log.Reject(reason)

	change.Approval = &models.ApprovalRecord{
		ApproverID: actor.ID,
		Decision:   models.DecisionRejected,
		Stage:      stage,
		Comment:    reason,
		CreatedAt:  now,
	}
	change.Audit = append(change.Audit, s.audit(actor, models.AuditActionReject, map[string]interface{}{
		"stage":           stage,
		"previous_status": previous,
		"reason":          reason,
	}))
	return nil
}

func approvalDeniedReason(log models.ActionLog) string {
	switch log.ApprovalStatus {
	case models.ApprovalNone:
		return "awaiting approval by the unit head of the action log's unit"
	case models.ApprovalUnitHeadApproved:
		return "awaiting approval by an assistant commissioner"
	case models.ApprovalAssistantCommissionerApproved:
		return "awaiting approval by the commissioner"
	default:
		return "action log is already fully approved"
	}
}

// resolveAssignees reports unknown or inactive users as field violations.
func (s *actionLogService) resolveAssignees(ctx context.Context, ids []uint) ([]models.User, error) {
	users, err := s.directory.UsersByIDs(ctx, ids)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, newValidationError("assigned_to", err.Error())
		}
		return nil, err
	}
	for _, user := range users {
		if !user.IsActive {
			return nil, newValidationError("assigned_to", fmt.Sprintf("user %d is inactive", user.ID))
		}
	}
	return users, nil
}

func ensureAssignable(actor models.User, users []models.User) error {
	allowed := make(map[uint]struct{}, len(users))
	for _, user := range AssignableUsers(actor, users) {
		allowed[user.ID] = struct{}{}
	}
	for _, user := range users {
		if _, ok := allowed[user.ID]; !ok {
			return denied(fmt.Sprintf("you cannot assign action logs to %s", displayName(user)))
		}
	}
	return nil
}

func (s *actionLogService) actor(ctx context.Context, actorID uint) (models.User, error) {
	return resolveActor(ctx, s.directory, actorID)
}

// resolveActor loads the caller. Unknown or inactive users are refused rather than reported missing.
func resolveActor(ctx context.Context, directory DirectoryService, actorID uint) (models.User, error) {
	user, err := directory.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, denied("unknown user")
		}
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, denied("user account is inactive")
	}
	return user, nil
}

// loadVisible hides logs outside the viewer's scope behind ErrActionLogNotFound.
func (s *actionLogService) loadVisible(ctx context.Context, actorID, id uint) (models.User, models.ActionLog, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return models.User{}, models.ActionLog{}, err
	}
	log, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.User{}, models.ActionLog{}, storageError(err, ErrActionLogNotFound)
	}
	if !CanView(actor, log) {
		return models.User{}, models.ActionLog{}, ErrActionLogNotFound
	}
	return actor, log, nil
}

func (s *actionLogService) reload(ctx context.Context, log models.ActionLog) models.ActionLog {
	fresh, err := s.repo.GetByID(ctx, log.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("action_log_id", log.ID).Msg("failed to reload action log after commit")
		return log
	}
	return fresh
}

func (s *actionLogService) present(ctx context.Context, actor models.User, log models.ActionLog) dto.ActionLogResponse {
	counts := s.commentCounts(ctx, []uint{log.ID})
	return s.presentWithCount(actor, log, counts[log.ID])
}

func (s *actionLogService) presentWithCount(actor models.User, log models.ActionLog, comments int64) dto.ActionLogResponse {
	now := s.now()
	response := dto.NewActionLogResponse(log)
	response.CommentCount = comments

	canReassign := CanReassign(log, now, s.loc)
	response.Permissions = dto.ActionLogPermissions{
		CanAssign:       CanAssign(actor, log) && (!log.HasAssignees() || canReassign),
		CanReassign:     canReassign,
		CanUpdateStatus: CanUpdateStatus(actor, log),
		CanApprove:      CanApprove(actor, log) && HasApprovalAuthority(actor, log),
	}
	if days, ok := DaysRemaining(log.DueDate, now, s.loc); ok {
		response.Permissions.DaysRemaining = &days
	}
	return response
}

func (s *actionLogService) commentCounts(ctx context.Context, ids []uint) map[uint]int64 {
	counts, err := s.repo.CountComments(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count comments")
		return map[uint]int64{}
	}
	return counts
}

func (s *actionLogService) afterCommit(ctx context.Context, actor models.User, log models.ActionLog, eventType string, notice *Notice, data map[string]interface{}) {
	var recipients []uint
	if notice != nil {
		notice.ActionLogID = log.ID
		notice.ExcludeUserID = actor.ID
		recipients = notice.Recipients
		if err := s.notifier.Notify(ctx, *notice); err != nil {
			s.logger.Warn().Err(err).Uint("action_log_id", log.ID).Str("type", notice.Type).Msg("failed to record notifications")
		}
	}

	s.events.Publish(ctx, WorkflowEvent{
		Type:           eventType,
		ActionLogID:    log.ID,
		ActorID:        actor.ID,
		Status:         log.Status,
		ApprovalStatus: log.ApprovalStatus,
		Recipients:     recipients,
		Data:           data,
		OccurredAt:     s.now().UTC(),
	})
}

func (s *actionLogService) assignmentNotice(actor models.User, log models.ActionLog) *Notice {
	return &Notice{
		Recipients: log.AssigneeIDs(),
		Type:       models.NotificationAssignment,
		Message:    fmt.Sprintf("%s assigned you to %q", displayName(actor), log.Title),
	}
}

func (s *actionLogService) statusNotice(actor models.User, log models.ActionLog) *Notice {
	return &Notice{
		Recipients: stakeholders(log),
		Type:       models.NotificationStatusChange,
		Message:    fmt.Sprintf("%s moved %q to %s", displayName(actor), log.Title, log.Status),
	}
}

func (s *actionLogService) approvalNotice(actor models.User, log models.ActionLog) *Notice {
	return &Notice{
		Recipients: stakeholders(log),
		Type:       models.NotificationApproval,
		Message:    fmt.Sprintf("%s recorded %s on %q", displayName(actor), strings.ReplaceAll(log.ApprovalStatus, "_", " "), log.Title),
	}
}

func (s *actionLogService) audit(actor models.User, action string, metadata map[string]interface{}) models.AuditEntry {
	return models.AuditEntry{
		ActorID:   actor.ID,
		ActorRole: actor.RoleName(),
		Action:    action,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
}

func (s *actionLogService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *actionLogService) finish(span trace.Span, command string, err error) {
	outcome := outcomeOf(err)
	observability.WorkflowCommands().WithLabelValues(command, outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetStatus(codes.Ok, outcome)
	}
	span.End()
}

func outcomeOf(err error) string {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case errors.Is(err, ErrNotReassignable):
		return "not_reassignable"
	case errors.Is(err, ErrActionLogNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrCommentNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func stakeholders(log models.ActionLog) []uint {
	return append([]uint{log.CreatedByID}, log.AssigneeIDs()...)
}

func displayName(user models.User) string {
	if name := user.FullName(); name != "" {
		return name
	}
	return user.Username
}

func lockKey(id uint) string {
	return fmt.Sprintf("action_log:%d", id)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) error { return nil }
