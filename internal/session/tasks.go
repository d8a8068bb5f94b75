package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
	logx "taskbot/pkg/logx"
)

var ErrTaskNotFound = errors.New("task not found")

// NotAvailableError is returned when a task was already completed in its
// current period. NextReset is zero for unknown cadences.
type NotAvailableError struct {
	Task      backend.Task
	NextReset time.Time
}

func (e *NotAvailableError) Error() string {
	if e.NextReset.IsZero() {
		return fmt.Sprintf("task %q has unknown cadence %q", e.Task.Title, e.Task.TaskType)
	}
	return fmt.Sprintf("task %q is not available until %s", e.Task.Title, e.NextReset.Format(time.RFC3339))
}

// FindTask looks id up in the cached profile.
func (s *Session) FindTask(id string) (backend.Task, bool) {
	p, ok := s.Profile()
	if !ok {
		return backend.Task{}, false
	}
	for _, t := range p.User.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return backend.Task{}, false
}

// CompleteTask refreshes the profile, checks that the task is available at
// now and records now as its completion. The same instant is used for the
// check and the write.
func (s *Session) CompleteTask(ctx context.Context, id string, now time.Time) (backend.Task, error) {
	if err := s.UpdateProfile(ctx); err != nil {
		return backend.Task{}, err
	}
	task, ok := s.FindTask(id)
	if !ok {
		return backend.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	snap := task.Snapshot()
	if !recurrence.IsAvailable(snap, now) {
		return task, &NotAvailableError{Task: task, NextReset: recurrence.NextReset(snap.Cadence, now)}
	}

	start := time.Now()
	var done backend.Task
	err := s.Do(ctx, func(ctx context.Context, c *backend.Client) error {
		var err error
		done, err = c.CompleteTask(ctx, task.ID, now)
		return err
	})
	s.audit(ctx, "complete", task.ID, start, err)
	if err != nil {
		return task, err
	}
	if done.ID == "" {
		done = task
		done.LastCompleted = &now
	}
	if err := s.UpdateProfile(ctx); err != nil {
		s.log.Debug("profile refresh after completion failed", logx.Err(err))
	}
	return done, nil
}
