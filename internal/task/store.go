package task

import (
	"context"
	"errors"
	"time"

	"taskdesk/internal/user"
)

// The persistence interfaces the lifecycle service consumes live here, on
// the consumer side, so that internal/store (whose backends mention *Task)
// can depend on this package without an import cycle. internal/store
// aliases these names to keep its exported surface unchanged.

// ErrStoreNotFound is the sentinel a store backend returns for a missing
// record. store.ErrNotFound is an alias of this value.
var ErrStoreNotFound = errors.New("record not found")

// TaskStore is the document-store surface the lifecycle service needs:
// find-by-id, insert, and field-level update returning the new document.
type TaskStore interface {
	InsertTask(ctx context.Context, t *Task) error
	TaskByID(ctx context.Context, id string) (*Task, error)
	// UpdateTask applies a partial field set keyed by the persisted field
	// names and returns the updated document.
	UpdateTask(ctx context.Context, id string, fields map[string]any) (*Task, error)
	// ListTasks returns every task, newest first.
	ListTasks(ctx context.Context) ([]*Task, error)
	// TasksCreatedBetween returns tasks created inside [from, to], newest first.
	TasksCreatedBetween(ctx context.Context, from, to time.Time) ([]*Task, error)
}

type UserStore interface {
	InsertUser(ctx context.Context, u *user.User) error
	UserByID(ctx context.Context, id string) (*user.User, error)
	UserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]*user.User, error)
}
