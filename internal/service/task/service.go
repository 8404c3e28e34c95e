// Package task is the core of the backend: every operation resolves the
// caller first, validates input before any store access, and mutates only
// through owner-guarded conditional statements.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/perrindl/taskhive/internal/apperr"
	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
	"github.com/perrindl/taskhive/internal/service/identity"
	"github.com/perrindl/taskhive/internal/ws"
)

// Service enforces the ownership and state-transition rules on tasks.
type Service struct {
	provider identity.Provider
	tasks    repository.TaskRepository
	hub      *ws.Hub
	logger   *slog.Logger
}

// New constructs a Service. The hub may be nil when no live feed is wired.
func New(provider identity.Provider, tasks repository.TaskRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{provider: provider, tasks: tasks, hub: hub, logger: logger}
}

// CreateInput carries the raw task creation fields. Deadline stays a
// string until validation parses it.
type CreateInput struct {
	Title       string
	Description string
	Deadline    string
}

// Event describes a task mutation pushed to the owner's live feed.
type Event struct {
	Type string       `json:"type"`
	Task *domain.Task `json:"task,omitempty"`
	ID   string       `json:"id,omitempty"`
}

const (
	// EventCreated is emitted after a task insert.
	EventCreated = "task.created"
	// EventStatus is emitted after a status transition.
	EventStatus = "task.status"
	// EventDeleted is emitted after a delete.
	EventDeleted = "task.deleted"
)

// deadline accepts full timestamps and bare dates.
var deadlineLayouts = []string{time.RFC3339, "2006-01-02"}

// List returns every task owned by the caller, and nothing else.
func (s Service) List(ctx context.Context, token string) ([]domain.Task, error) {
	caller, err := s.resolveCaller(ctx, token)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListTasksByOwner(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Store("error while retrieving tasks", err)
	}
	return tasks, nil
}

// Create inserts a pending task owned by the caller. Validation runs
// strictly before any store access.
func (s Service) Create(ctx context.Context, token string, input CreateInput) (*domain.Task, error) {
	caller, err := s.resolveCaller(ctx, token)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" || strings.TrimSpace(input.Deadline) == "" {
		return nil, apperr.Validation("please fill in all fields")
	}
	deadline, err := parseDeadline(input.Deadline)
	if err != nil {
		return nil, apperr.Validation("deadline must be a valid date")
	}
	task := &domain.Task{
		Title:       title,
		Description: description,
		Deadline:    deadline,
		Status:      false,
		OwnerID:     caller.ID,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, apperr.Store("error while adding the task to the database", err)
	}
	s.logger.Info("task created", "task_id", task.ID, "owner_id", task.OwnerID)
	s.publish(caller.ID, Event{Type: EventCreated, Task: task})
	return task, nil
}

// UpdateStatus transitions a task between pending and completed. A nil
// status means the field was absent, not false; it fails validation after
// the caller is resolved. The existence check distinguishes a missing task
// from a foreign one, and the mutation itself is owner-guarded so a
// concurrent delete surfaces as NotFound rather than a silent no-op.
func (s Service) UpdateStatus(ctx context.Context, token, id string, status *bool) (*domain.Task, error) {
	caller, err := s.resolveCaller(ctx, token)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" || status == nil {
		return nil, apperr.Validation("please provide a task id and a valid status")
	}
	existing, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("no task found with this id")
		}
		return nil, apperr.Store("error while checking the task", err)
	}
	if existing.OwnerID != caller.ID {
		return nil, apperr.Forbidden("you cannot modify a task that does not belong to you")
	}
	updated, err := s.tasks.UpdateTaskStatus(ctx, id, caller.ID, *status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("no task found with this id")
		}
		return nil, apperr.Store("error while updating the status", err)
	}
	s.logger.Info("task status updated", "task_id", id, "status", *status)
	s.publish(caller.ID, Event{Type: EventStatus, Task: updated})
	return updated, nil
}

// Delete removes a task owned by the caller and returns the deleted id.
func (s Service) Delete(ctx context.Context, token, id string) (string, error) {
	caller, err := s.resolveCaller(ctx, token)
	if err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperr.Validation("please provide the id of the task to delete")
	}
	existing, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound("no task found with this id")
		}
		return "", apperr.Store("error while checking the task", err)
	}
	if existing.OwnerID != caller.ID {
		return "", apperr.Forbidden("you cannot delete a task that does not belong to you")
	}
	if err := s.tasks.DeleteTask(ctx, id, caller.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound("no task found with this id")
		}
		return "", apperr.Store("error while deleting the task", err)
	}
	s.logger.Info("task deleted", "task_id", id, "owner_id", caller.ID)
	s.publish(caller.ID, Event{Type: EventDeleted, ID: id})
	return id, nil
}

// ResolveCaller exposes caller resolution for the websocket endpoint.
func (s Service) ResolveCaller(ctx context.Context, token string) (*domain.Identity, error) {
	return s.resolveCaller(ctx, token)
}

// Hub returns the live feed hub, which may be nil.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// resolveCaller runs on every operation; no session state is cached
// between requests.
func (s Service) resolveCaller(ctx context.Context, token string) (*domain.Identity, error) {
	caller, err := s.provider.CurrentUser(ctx, token)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthenticated {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "no user logged in", err)
	}
	return caller, nil
}

func (s Service) publish(ownerID string, event Event) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("could not marshal task event", "error", err)
		return
	}
	s.hub.Broadcast(ownerID, payload)
}

func parseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
