package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService installs the default roles and their capability flags.
type SeedService interface {
	EnsureRoles(ctx context.Context) (int64, error)
	SeedRoles(ctx context.Context, token string) (int64, error)
}

type seedService struct {
	directory repository.DirectoryRepository
	enabled   bool
	token     string
	logger    zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(directory repository.DirectoryRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		directory: directory,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

// DefaultRoles mirrors the capability matrix of the legacy deployment.
func DefaultRoles() []models.Role {
	full := func(name string) models.Role {
		return models.Role{
			Name:            name,
			CanCreateLogs:   true,
			CanUpdateStatus: true,
			CanApprove:      true,
			CanViewAllLogs:  true,
			CanConfigure:    true,
		}
	}
	staff := func(name string) models.Role {
		return models.Role{
			Name:            name,
			CanCreateLogs:   true,
			CanUpdateStatus: true,
		}
	}

	commissioner := full(models.RoleCommissioner)
	commissioner.CanViewAllUsers = true
	superAdmin := full(models.RoleSuperAdmin)
	superAdmin.CanViewAllUsers = true
	superAdmin.CanAssignToCommissioner = true

	return []models.Role{
		staff(models.RoleEconomist),
		staff(models.RoleSeniorEconomist),
		full(models.RolePrincipalEconomist),
		full(models.RoleAssistantCommissioner),
		commissioner,
		superAdmin,
	}
}

// EnsureRoles runs at startup and ignores the token.
func (s *seedService) EnsureRoles(ctx context.Context) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	return s.upsert(ctx)
}

func (s *seedService) SeedRoles(ctx context.Context, token string) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}
	return s.upsert(ctx)
}

func (s *seedService) upsert(ctx context.Context) (int64, error) {
	affected, err := s.directory.UpsertRoles(ctx, DefaultRoles())
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("roles seeded")
	return affected, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
