package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
)

const taskColumns = `id, title, description, deadline, status, owner_id, created_at`

// CreateTask inserts a task, assigning the id when absent.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (id, title, description, deadline, status, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, task.ID, task.Title, task.Description, task.Deadline, task.Status, task.OwnerID, task.CreatedAt)
	return err
}

// ListTasksByOwner returns all tasks owned by the given user.
func (r *Repository) ListTasksByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Deadline, &task.Status, &task.OwnerID, &task.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTaskByID fetches a single task row.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var task domain.Task
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Deadline, &task.Status, &task.OwnerID, &task.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus flips the status in a single statement guarded by the
// owner predicate, returning the updated row.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id, ownerID string, status bool) (*domain.Task, error) {
	const query = `UPDATE tasks SET status = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + taskColumns
	row := r.pool.QueryRow(ctx, query, id, ownerID, status)
	var task domain.Task
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Deadline, &task.Status, &task.OwnerID, &task.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task in a single owner-guarded statement.
func (r *Repository) DeleteTask(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
