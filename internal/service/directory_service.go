package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
)

// DirectoryService exposes users, departments and units. Department listings are cached in Redis.
type DirectoryService interface {
	GetUser(ctx context.Context, id uint) (models.User, error)
	UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	ActiveUsers(ctx context.Context) ([]models.User, error)
	UsersByDepartment(ctx context.Context, departmentID uint) ([]dto.UserSummary, error)
	Departments(ctx context.Context) ([]dto.DepartmentResponse, error)
	DepartmentUnits(ctx context.Context) ([]dto.DepartmentUnitResponse, error)
	Invalidate(ctx context.Context)
}

type directoryService struct {
	repo     repository.DirectoryRepository
	cache    *redis.Client
	cacheTTL time.Duration
	prefix   string
	logger   zerolog.Logger
}

// NewDirectoryService constructs the directory service. A nil cache disables caching.
func NewDirectoryService(repo repository.DirectoryRepository, cache *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) DirectoryService {
	if prefix == "" {
		prefix = "actionlog"
	}
	return &directoryService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		prefix:   prefix,
		logger:   logger.With().Str("component", "directory_service").Logger(),
	}
}

func (s *directoryService) GetUser(ctx context.Context, id uint) (models.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return models.User{}, storageError(err, ErrUserNotFound)
	}
	return user, nil
}

// UsersByIDs resolves every id or fails with ErrUserNotFound. Duplicates are collapsed.
func (s *directoryService) UsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []models.User{}, nil
	}

	users, err := s.repo.ListUsersByIDs(ctx, unique)
	if err != nil {
		return nil, storageError(err, ErrUserNotFound)
	}
	if len(users) != len(unique) {
		found := make(map[uint]struct{}, len(users))
		for _, user := range users {
			found[user.ID] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, id)
			}
		}
	}

	// Keep the caller's order so "first assignee" stays meaningful.
	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	ordered := make([]models.User, 0, len(unique))
	for _, id := range unique {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

func (s *directoryService) ActiveUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, storageError(err, ErrUserNotFound)
	}
	return users, nil
}

func (s *directoryService) UsersByDepartment(ctx context.Context, departmentID uint) ([]dto.UserSummary, error) {
	var cached []dto.UserSummary
	key := fmt.Sprintf("%s:directory:department:%d:users", s.prefix, departmentID)
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	users, err := s.repo.ListUsersByDepartment(ctx, departmentID)
	if err != nil {
		return nil, storageError(err, ErrUserNotFound)
	}
	response := dto.NewUserSummarySlice(users)
	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *directoryService) Departments(ctx context.Context) ([]dto.DepartmentResponse, error) {
	var cached []dto.DepartmentResponse
	key := s.prefix + ":directory:departments"
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	departments, err := s.repo.ListDepartments(ctx)
	if err != nil {
		return nil, storageError(err, ErrUnavailable)
	}
	response := dto.NewDepartmentResponseSlice(departments)
	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *directoryService) DepartmentUnits(ctx context.Context) ([]dto.DepartmentUnitResponse, error) {
	var cached []dto.DepartmentUnitResponse
	key := s.prefix + ":directory:units"
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	units, err := s.repo.ListDepartmentUnits(ctx)
	if err != nil {
		return nil, storageError(err, ErrUnavailable)
	}
	response := dto.NewDepartmentUnitResponseSlice(units)
	s.writeCache(ctx, key, response)
	return response, nil
}

func (s *directoryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, s.prefix+":directory:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan directory cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate directory cache")
	}
}

func (s *directoryService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read directory cache")
		}
		observability.DirectoryCache().WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(cached), target); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt directory cache entry")
		observability.DirectoryCache().WithLabelValues("miss").Inc()
		return false
	}

	observability.DirectoryCache().WithLabelValues("hit").Inc()
	return true
}

func (s *directoryService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store directory cache")
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
