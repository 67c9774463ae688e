package service

import (
	"math"
	"strings"

	"github.com/noah-isme/actionlog-api/internal/dto"
	"github.com/noah-isme/actionlog-api/internal/models"
)

// ActionLogFilter narrows a visible set of logs. Zero values disable a filter.
type ActionLogFilter struct {
	Text         string
	Status       string
	AssignedToMe bool
}

// VisibleLogs keeps the logs the viewer may see, preserving order.
func VisibleLogs(viewer models.User, logs []models.ActionLog) []models.ActionLog {
	out := make([]models.ActionLog, 0, len(logs))
	for _, log := range logs {
		if CanView(viewer, log) {
			out = append(out, log)
		}
	}
	return out
}

// SearchAndFilter applies the text, status and "assigned to me" filters together.
func SearchAndFilter(logs []models.ActionLog, filter ActionLogFilter, viewer models.User) []models.ActionLog {
	text := strings.ToLower(strings.TrimSpace(filter.Text))
	status := strings.TrimSpace(filter.Status)

	out := make([]models.ActionLog, 0, len(logs))
	for _, log := range logs {
		if text != "" &&
			!strings.Contains(strings.ToLower(log.Title), text) &&
			!strings.Contains(strings.ToLower(log.Description), text) {
			continue
		}
		if status != "" && log.Status != status {
			continue
		}
		if filter.AssignedToMe && !log.IsAssignedTo(viewer.ID) {
			continue
		}
		out = append(out, log)
	}
	return out
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func paginate[T any](items []T, page, pageSize int) ([]T, dto.PaginationMeta) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(items)
	meta := dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: int64(total),
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}

	if page > meta.TotalPages {
		return []T{}, meta
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], meta
}
