package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/actionlog-api/internal/models"
	"github.com/noah-isme/actionlog-api/internal/observability"
	"github.com/noah-isme/actionlog-api/internal/repository"
	"github.com/noah-isme/actionlog-api/internal/service"
)

// DueDateReminder notifies assignees of open logs that fall due today. Each assignee is
// reminded at most once per log and day, so overlapping or repeated runs are harmless.
type DueDateReminder struct {
	logs          repository.ActionLogRepository
	notifications service.NotificationService
	events        service.EventPublisher
	schedule      string
	loc           *time.Location
	logger        zerolog.Logger
	now           func() time.Time

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewDueDateReminder constructs the job. An empty schedule disables it.
func NewDueDateReminder(
	logs repository.ActionLogRepository,
	notifications service.NotificationService,
	events service.EventPublisher,
	schedule string,
	loc *time.Location,
	logger zerolog.Logger,
) *DueDateReminder {
	if loc == nil {
		loc = time.UTC
	}
	if events == nil {
		events = service.NopEventPublisher()
	}
	return &DueDateReminder{
		logs:          logs,
		notifications: notifications,
		events:        events,
		schedule:      schedule,
		loc:           loc,
		logger:        logger.With().Str("component", "due_date_reminder").Logger(),
		now:           time.Now,
	}
}

// Start registers the cron entry and starts the scheduler.
func (r *DueDateReminder) Start() error {
	if r.schedule == "" {
		r.logger.Info().Msg("due date reminders disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	scheduler := cron.New(
		cron.WithLocation(r.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := scheduler.AddFunc(r.schedule, func() {
		if _, err := r.Run(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("due date reminder run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", r.schedule, err)
	}

	scheduler.Start()
	r.scheduler = scheduler
	r.logger.Info().Str("schedule", r.schedule).Str("timezone", r.loc.String()).Msg("due date reminders scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running reminder to finish.
func (r *DueDateReminder) Stop() {
	r.mu.Lock()
	scheduler := r.scheduler
	r.scheduler = nil
	r.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// Run sends today's reminders and returns how many assignees were notified.
func (r *DueDateReminder) Run(ctx context.Context) (int, error) {
	now := r.now().In(r.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	logs, err := r.logs.ListDueBetween(ctx, dayStart.UTC(), dayEnd.UTC(), []string{models.StatusOpen, models.StatusInProgress})
	if err != nil {
		observability.ReminderRuns().WithLabelValues("failure").Inc()
		return 0, fmt.Errorf("list logs due today: %w", err)
	}

	sent := 0
	for _, log := range logs {
		recipients := make([]uint, 0, len(log.Assignees))
		for _, assignee := range log.Assignees {
			already, err := r.notifications.NotifiedOn(ctx, assignee.ID, log.ID, models.NotificationDueDate, now)
			if err != nil {
				observability.ReminderRuns().WithLabelValues("failure").Inc()
				return sent, fmt.Errorf("check reminder for log %d: %w", log.ID, err)
			}
			if !already {
				recipients = append(recipients, assignee.ID)
			}
		}
		if len(recipients) == 0 {
			continue
		}

		if err := r.notifications.Notify(ctx, service.Notice{
			Recipients:  recipients,
			ActionLogID: log.ID,
			Type:        models.NotificationDueDate,
			Message:     fmt.Sprintf("%q is due today", log.Title),
		}); err != nil {
			observability.ReminderRuns().WithLabelValues("failure").Inc()
			return sent, fmt.Errorf("notify assignees of log %d: %w", log.ID, err)
		}
		sent += len(recipients)

		r.events.Publish(ctx, service.WorkflowEvent{
			Type:        service.EventActionLogDueToday,
			ActionLogID: log.ID,
			Status:      log.Status,
			Recipients:  recipients,
			OccurredAt:  now.UTC(),
		})
	}

	observability.ReminderRuns().WithLabelValues("success").Inc()
	r.logger.Info().Int("logs", len(logs)).Int("reminders", sent).Msg("due date reminders sent")
	return sent, nil
}
