package store

import (
	"errors"

	"taskdesk/internal/task"
)

var (
	// ErrNotFound aliases the sentinel defined next to the consuming
	// service so both packages compare against the same value.
	ErrNotFound       = task.ErrStoreNotFound
	ErrDuplicateEmail = errors.New("email already registered")
)

// TaskStore is the document-store surface the lifecycle service needs:
// find-by-id, insert, and field-level update returning the new document.
// The definition lives in internal/task (the consumer) so this package can
// mention the task types without an import cycle.
type TaskStore = task.TaskStore

type UserStore = task.UserStore

// Store bundles both collections; the Mongo and in-memory backends satisfy it.
type Store interface {
	TaskStore
	UserStore
}
