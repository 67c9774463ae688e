package service

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

const defaultAuditPageSize = 50

// AuditService exposes the audit trail written by the workflow.
type AuditService interface {
	ForActionLog(ctx context.Context, actorID, actionLogID uint) ([]dto.AuditEntryResponse, error)
	List(ctx context.Context, actorID uint, query dto.AuditListQuery) (dto.AuditListResponse, error)
}

type auditService struct {
	repo      repository.AuditRepository
	logs      repository.ActionLogRepository
	directory DirectoryService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAuditService constructs the audit trail service.
func NewAuditService(repo repository.AuditRepository, logs repository.ActionLogRepository, directory DirectoryService, validate *validator.Validate, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:      repo,
		logs:      logs,
		directory: directory,
		validator: validate,
		logger:    logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) ForActionLog(ctx context.Context, actorID, actionLogID uint) ([]dto.AuditEntryResponse, error) {
	actor, err := resolveActor(ctx, s.directory, actorID)
	if err != nil {
		return nil, err
	}
	log, err := s.logs.GetByID(ctx, actionLogID)
	if err != nil {
		return nil, storageError(err, ErrActionLogNotFound)
	}
	if !CanView(actor, log) {
		return nil, ErrActionLogNotFound
	}

	entries, _, err := s.repo.List(ctx, repository.AuditFilter{ActionLogID: &actionLogID})
	if err != nil {
		return nil, storageError(err, ErrActionLogNotFound)
	}
	return dto.NewAuditEntryResponseSlice(entries), nil
}

// List is the global trail, reserved for commissioners and super admins.
func (s *auditService) List(ctx context.Context, actorID uint, query dto.AuditListQuery) (dto.AuditListResponse, error) {
	errs := validationErrors{}
	if err := errs.fold(s.validator.Struct(query)); err != nil {
		return dto.AuditListResponse{}, err
	}
	if err := errs.err(); err != nil {
		return dto.AuditListResponse{}, err
	}

	actor, err := resolveActor(ctx, s.directory, actorID)
	if err != nil {
		return dto.AuditListResponse{}, err
	}
	if !IsCommissioner(actor) && actor.RoleName() != models.RoleSuperAdmin {
		return dto.AuditListResponse{}, denied("only the commissioner can review the audit trail")
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}

	entries, total, err := s.repo.List(ctx, repository.AuditFilter{
		Page:     page,
		PageSize: pageSize,
		ActorID:  query.ActorID,
		Action:   query.Action,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list audit entries")
		return dto.AuditListResponse{}, storageError(err, ErrActionLogNotFound)
	}

	return dto.AuditListResponse{
		Items: dto.NewAuditEntryResponseSlice(entries),
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}
