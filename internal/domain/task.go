package domain

import "time"

// Task is a unit of work owned by exactly one user. The owner is set at
// creation and immutable; status is false while pending, true once
// completed.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Status      bool      `json:"status"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}
