// Package remind runs the daily due-task reminder: every confirmed user
// with unfinished tasks due today gets one summary email.
package remind

import (
	"context"
	"strings"
	"time"

	"github.com/adeilh/taskdo/auth"
	"github.com/adeilh/taskdo/internal/logutil"
	"github.com/adeilh/taskdo/mail"
	"github.com/adeilh/taskdo/task"
)

// UserSource lists the users eligible for reminders.
type UserSource interface {
	ListConfirmed(ctx context.Context) ([]auth.User, error)
}

// TaskSource lists a user's unfinished tasks due on a given date.
type TaskSource interface {
	ListDueOn(ctx context.Context, ownerID string, date time.Time) ([]task.Task, error)
}

// Reminder periodically emails each confirmed user their tasks due
// today. It reads storage and sends mail; it shares no mutable state
// with the request path.
type Reminder struct {
	users        UserSource
	tasks        TaskSource
	notifier     mail.Notifier
	hourUTC      int
	storeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Reminder)

// WithHourUTC sets the UTC hour of day at which reminders fire.
func WithHourUTC(hour int) Option {
	return func(r *Reminder) { r.hourUTC = hour }
}

// WithStoreTimeout bounds each storage round-trip made by the sweep.
func WithStoreTimeout(d time.Duration) Option {
	return func(r *Reminder) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// WithNowFunc overrides the clock, for deterministic tests.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Reminder) { r.now = now }
}

func New(users UserSource, tasks TaskSource, notifier mail.Notifier, opts ...Option) *Reminder {
	r := &Reminder{
		users:        users,
		tasks:        tasks,
		notifier:     notifier,
		storeTimeout: 5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fires RunOnce at the configured UTC hour every day until ctx is
// cancelled.
func (r *Reminder) Run(ctx context.Context) error {
	logger := logutil.GetOrDefault(ctx)
	for {
		wait := r.untilNextFire()
		logger.Info().Dur("sleep", wait).Msg("reminder scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := r.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("reminder run failed")
		}
	}
}

// RunOnce performs a single reminder sweep. Per-user failures are logged
// and skipped so one bad mailbox never starves the rest.
func (r *Reminder) RunOnce(ctx context.Context) error {
	logger := logutil.GetOrDefault(ctx)
	today := task.DateOnly(r.now())

	users, err := r.listConfirmed(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		due, err := r.listDueOn(ctx, user.ID, today)
		if err != nil {
			logger.Error().Err(err).Str("user", user.ID).Msg("due-task lookup failed")
			continue
		}
		if len(due) == 0 {
			continue
		}
		if err := r.notifier.Notify(ctx, user.Email, "Tasks due today", summarize(due)); err != nil {
			logger.Error().Err(err).Str("recipient", user.Email).Msg("reminder delivery failed")
			continue
		}
		logger.Info().Str("recipient", user.Email).Int("tasks", len(due)).Msg("reminder sent")
	}
	return nil
}

// listConfirmed and listDueOn bound each storage round-trip so a stuck
// query never wedges the long-lived sweep context.
func (r *Reminder) listConfirmed(ctx context.Context) ([]auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.users.ListConfirmed(ctx)
}

func (r *Reminder) listDueOn(ctx context.Context, ownerID string, date time.Time) ([]task.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.tasks.ListDueOn(ctx, ownerID, date)
}

func (r *Reminder) untilNextFire() time.Duration {
	now := r.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func summarize(tasks []task.Task) string {
	var b strings.Builder
	b.WriteString("These tasks are due today:\n")
	for _, t := range tasks {
		b.WriteString("- ")
		b.WriteString(t.Title)
		if t.Description != "" {
			b.WriteString(": ")
			b.WriteString(t.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
