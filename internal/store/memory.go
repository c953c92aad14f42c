package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/task"
	"taskdesk/internal/user"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and local
// development when no Mongo URI is configured.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
	users map[string]*user.User
}

func NewMemory() *Memory {
	return &Memory{
		tasks: make(map[string]*task.Task),
		users: make(map[string]*user.User),
	}
}

func (m *Memory) InsertTask(_ context.Context, t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.tasks[t.ID] = cloneTask(t)
	m.mu.Unlock()
	return nil
}

func (m *Memory) TaskByID(_ context.Context, id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, fields map[string]any) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	for key, value := range fields {
		if err := applyTaskField(t, key, value); err != nil {
			return nil, err
		}
	}
	return cloneTask(t), nil
}

// applyTaskField mirrors the persisted (bson) field names the service uses.
func applyTaskField(t *task.Task, key string, value any) error {
	switch key {
	case "status":
		t.Status = value.(task.Status)
	case "review_note":
		t.ReviewNote = value.(string)
	case "improve_note":
		t.ImproveNote = value.(string)
	case "reviewed_at":
		at := value.(time.Time)
		t.ReviewedAt = &at
	case "after_image":
		t.AfterImage = value.(*task.FileDescriptor)
	case "completed_files":
		t.CompletedFiles = value.([]task.FileDescriptor)
	case "updated_at":
		t.UpdatedAt = value.(time.Time)
	default:
		return fmt.Errorf("unknown task field: %q", key)
	}
	return nil
}

func (m *Memory) ListTasks(_ context.Context) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, cloneTask(t))
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) TasksCreatedBetween(_ context.Context, from, to time.Time) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) InsertUser(_ context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	clone := *u
	m.users[u.ID] = &clone
	return nil
}

func (m *Memory) UserByID(_ context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*user.User, 0, len(m.users))
	for _, u := range m.users {
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneTask(t *task.Task) *task.Task {
	clone := *t
	if t.BeforeImage != nil {
		img := *t.BeforeImage
		clone.BeforeImage = &img
	}
	if t.AfterImage != nil {
		img := *t.AfterImage
		clone.AfterImage = &img
	}
	if t.ReviewedAt != nil {
		at := *t.ReviewedAt
		clone.ReviewedAt = &at
	}
	clone.AttachedFiles = append([]task.FileDescriptor(nil), t.AttachedFiles...)
	clone.CompletedFiles = append([]task.FileDescriptor(nil), t.CompletedFiles...)
	return &clone
}

func sortNewestFirst(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
