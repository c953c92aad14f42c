package task

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"taskdesk/internal/user"
)

const (
	titleFromDescriptionRunes = 50
	fallbackTitle             = "ME Task"
)

// Service governs the task lifecycle: create, improvement submission and
// review decisions. All transitions validate the actor and the current
// status before touching the store; a refused request leaves the task as is.
type Service struct {
	tasks TaskStore
	users UserStore
	now   func() time.Time
}

func NewService(tasks TaskStore, users UserStore) *Service {
	return &Service{tasks: tasks, users: users, now: time.Now}
}

// UseClock replaces the time source. Intended for test setup only.
func (s *Service) UseClock(now func() time.Time) { s.now = now }

type CreateInput struct {
	Title         string
	Description   string
	Department    string
	Position      string
	Assignee      string
	StartDate     time.Time
	DueDate       time.Time
	BeforeImage   *FileDescriptor
	AttachedFiles []FileDescriptor
}

// Create opens a new task in the ongoing status.
func (s *Service) Create(ctx context.Context, actor user.User, in CreateInput) (*Task, error) {
	if !actor.CanAssign() {
		return nil, ErrNotAssigner
	}
	if in.Assignee == "" {
		return nil, ErrAssigneeRequired
	}
	if _, err := s.users.UserByID(ctx, in.Assignee); err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, ErrAssigneeUnknown
		}
		return nil, err
	}
	if in.DueDate.Before(in.StartDate) {
		return nil, ErrDueBeforeStart
	}

	now := s.now()
	t := &Task{
		Title:         resolveTitle(in.Title, in.Description),
		Description:   in.Description,
		Department:    in.Department,
		Position:      in.Position,
		AssignedBy:    actor.ID,
		Assignee:      in.Assignee,
		StartDate:     in.StartDate,
		DueDate:       in.DueDate,
		Status:        StatusOngoing,
		BeforeImage:   in.BeforeImage,
		AttachedFiles: in.AttachedFiles,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t.AttachedFiles == nil {
		t.AttachedFiles = []FileDescriptor{}
	}
	if err := s.tasks.InsertTask(ctx, t); err != nil {
		return nil, err
	}
	log.Info().Str("task_id", t.ID).Str("assignee", t.Assignee).Str("assigned_by", actor.ID).Msg("task created")
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	t, err := s.tasks.TaskByID(ctx, id)
	if errors.Is(err, ErrStoreNotFound) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *Service) List(ctx context.Context) ([]*Task, error) {
	return s.tasks.ListTasks(ctx)
}

// Improvable loads the task and verifies the actor may still submit
// evidence for it. Callers run this gate before any file processing so a
// doomed request wastes no transcode work.
func (s *Service) Improvable(ctx context.Context, id string, actor user.User) (*Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Assignee != actor.ID {
		return nil, ErrNotAssignee
	}
	switch t.Status.Canonical() {
	case StatusOngoing, StatusRejected, StatusNeedsImprovement:
	default:
		return nil, ErrNotImprovable
	}
	if s.now().After(EndOfDay(t.DueDate)) {
		return nil, ErrPastDue
	}
	return t, nil
}

type ImproveInput struct {
	Note           string
	AfterImage     *FileDescriptor
	CompletedFiles []FileDescriptor
}

// Improve submits completion evidence and moves the task into review.
// Coming out of rejected, the prior evidence is cleared first: a rejected
// cycle starts fresh.
func (s *Service) Improve(ctx context.Context, id string, actor user.User, in ImproveInput) (*Task, error) {
	t, err := s.Improvable(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if t.Status.Canonical() == StatusRejected {
		fields["after_image"] = (*FileDescriptor)(nil)
		fields["completed_files"] = []FileDescriptor{}
		fields["improve_note"] = ""
	}
	if in.AfterImage != nil {
		fields["after_image"] = in.AfterImage
	}
	if in.CompletedFiles != nil {
		fields["completed_files"] = in.CompletedFiles
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		fields["improve_note"] = note
	}
	fields["status"] = StatusReview
	fields["review_note"] = ""
	fields["updated_at"] = s.now()

	updated, err := s.tasks.UpdateTask(ctx, id, fields)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	log.Info().Str("task_id", id).Str("assignee", actor.ID).Msg("improvement submitted")
	return updated, nil
}

type ReviewInput struct {
	Status Status
	Note   string
}

// Review applies a reviewer decision to a task awaiting review. Negative
// outcomes require a non-empty note.
func (s *Service) Review(ctx context.Context, id string, actor user.User, in ReviewInput) (*Task, error) {
	if !ValidReviewOutcome(in.Status) {
		return nil, ErrInvalidStatus
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanReview(s.assigneeGroup(ctx, t.Assignee)) {
		return nil, ErrNotEligible
	}
	if t.Status.Canonical() != StatusReview {
		return nil, ErrNotInReview
	}

	note := strings.TrimSpace(in.Note)
	if note == "" && in.Status != StatusApproved {
		return nil, ErrNoteRequired
	}

	now := s.now()
	fields := map[string]any{
		"status":      in.Status,
		"reviewed_at": now,
		"updated_at":  now,
	}
	if note != "" {
		fields["review_note"] = note
	}
	updated, err := s.tasks.UpdateTask(ctx, id, fields)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	log.Info().Str("task_id", id).Str("reviewer", actor.ID).Str("outcome", string(in.Status)).Msg("task reviewed")
	return updated, nil
}

func (s *Service) assigneeGroup(ctx context.Context, assigneeID string) string {
	u, err := s.users.UserByID(ctx, assigneeID)
	if err != nil {
		return ""
	}
	return u.Group
}

func resolveTitle(title, description string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if d := strings.TrimSpace(description); d != "" {
		if utf8.RuneCountInString(d) > titleFromDescriptionRunes {
			return string([]rune(d)[:titleFromDescriptionRunes])
		}
		return d
	}
	return fallbackTitle
}
