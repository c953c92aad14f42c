package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskdesk/internal/store"
	. "taskdesk/internal/task"
	"taskdesk/internal/user"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService(mem, mem)
	return svc, mem
}

func seedUser(t *testing.T, mem *store.Memory, name, role, group string) user.User {
	t.Helper()
	u := &user.User{
		Name:       name,
		Email:      name + "@example.org",
		Role:       role,
		Department: user.DefaultDepartment,
		Group:      group,
		CreatedAt:  time.Now(),
	}
	if err := mem.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return *u
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestCreateRequiresAssignerRole(t *testing.T) {
	svc, mem := newTestService(t)
	member := seedUser(t, mem, "worker", user.RoleMember, "Lean")

	_, err := svc.Create(context.Background(), member, CreateInput{Assignee: member.ID})
	if !errors.Is(err, ErrNotAssigner) {
		t.Fatalf("expected ErrNotAssigner, got %v", err)
	}
}

func TestCreateValidatesAssignee(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")

	if _, err := svc.Create(context.Background(), manager, CreateInput{}); !errors.Is(err, ErrAssigneeRequired) {
		t.Fatalf("expected ErrAssigneeRequired, got %v", err)
	}
	if _, err := svc.Create(context.Background(), manager, CreateInput{Assignee: "ghost"}); !errors.Is(err, ErrAssigneeUnknown) {
		t.Fatalf("expected ErrAssigneeUnknown, got %v", err)
	}
}

func TestCreateRejectsDueBeforeStart(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")

	start := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), manager, CreateInput{
		Assignee:  worker.ID,
		StartDate: start,
		DueDate:   start.AddDate(0, 0, -1),
	})
	if !errors.Is(err, ErrDueBeforeStart) {
		t.Fatalf("expected ErrDueBeforeStart, got %v", err)
	}
}

func TestCreateTitleFallback(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	start := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	long := "replace the worn conveyor belt on line three and recalibrate the tensioners afterwards"
	created, err := svc.Create(context.Background(), manager, CreateInput{
		Description: long,
		Assignee:    worker.ID,
		StartDate:   start,
		DueDate:     start.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := len([]rune(created.Title)); got != TitleFromDescriptionRunes {
		t.Fatalf("expected %d-rune title, got %d (%q)", TitleFromDescriptionRunes, got, created.Title)
	}
	if created.Status != StatusOngoing {
		t.Fatalf("expected ongoing status, got %q", created.Status)
	}
	if created.AttachedFiles == nil {
		t.Fatalf("expected empty attached files slice, got nil")
	}

	blank, err := svc.Create(context.Background(), manager, CreateInput{
		Assignee:  worker.ID,
		StartDate: start,
		DueDate:   start.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if blank.Title != FallbackTitle {
		t.Fatalf("expected fallback title %q, got %q", FallbackTitle, blank.Title)
	}
}

func TestImproveDeadlineGate(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")

	due := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), manager, CreateInput{
		Title:     "fix gauge",
		Assignee:  worker.ID,
		StartDate: due.AddDate(0, 0, -5),
		DueDate:   due,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 23:59 on the due day is still in time.
	svc.UseClock(fixedClock(time.Date(2025, 5, 20, 23, 59, 0, 0, time.UTC)))
	if _, err := svc.Improvable(context.Background(), created.ID, worker); err != nil {
		t.Fatalf("expected improvable at 23:59, got %v", err)
	}

	svc.UseClock(fixedClock(time.Date(2025, 5, 21, 0, 0, 1, 0, time.UTC)))
	if _, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{Note: "done"}); !errors.Is(err, ErrPastDue) {
		t.Fatalf("expected ErrPastDue, got %v", err)
	}

	// A refused submission leaves the status untouched.
	after, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Status != StatusOngoing {
		t.Fatalf("expected status unchanged, got %q", after.Status)
	}
}

func TestImproveRequiresAssignee(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	other := seedUser(t, mem, "bystander", user.RoleMember, "IE")

	created := mustCreate(t, svc, manager, worker.ID)
	if _, err := svc.Improve(context.Background(), created.ID, other, ImproveInput{}); !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("expected ErrNotAssignee, got %v", err)
	}
}

func TestImproveMovesTaskIntoReview(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, worker.ID)

	after := &FileDescriptor{Original: "done.jpg", Stored: "after-1-abc.jpg", Mimetype: "image/jpeg", Size: 10}
	updated, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{
		Note:       "  replaced the belt  ",
		AfterImage: after,
	})
	if err != nil {
		t.Fatalf("improve: %v", err)
	}
	if updated.Status != StatusReview {
		t.Fatalf("expected review status, got %q", updated.Status)
	}
	if updated.ImproveNote != "replaced the belt" {
		t.Fatalf("expected trimmed note, got %q", updated.ImproveNote)
	}
	if updated.AfterImage == nil || updated.AfterImage.Stored != after.Stored {
		t.Fatalf("expected after image to be set, got %+v", updated.AfterImage)
	}
}

func TestRejectedCycleClearsPriorEvidence(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, worker.ID)

	first := &FileDescriptor{Original: "v1.jpg", Stored: "after-1-v1.jpg", Mimetype: "image/jpeg", Size: 5}
	if _, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{
		Note:           "first attempt",
		AfterImage:     first,
		CompletedFiles: []FileDescriptor{{Original: "log.pdf", Stored: "complete-1-x.pdf", Mimetype: "application/pdf", Size: 9}},
	}); err != nil {
		t.Fatalf("improve: %v", err)
	}
	if _, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{
		Status: StatusRejected,
		Note:   "wrong belt model",
	}); err != nil {
		t.Fatalf("review: %v", err)
	}

	// Resubmitting after rejection starts from a clean evidence set.
	updated, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{})
	if err != nil {
		t.Fatalf("improve after rejection: %v", err)
	}
	if updated.AfterImage != nil {
		t.Fatalf("expected cleared after image, got %+v", updated.AfterImage)
	}
	if len(updated.CompletedFiles) != 0 {
		t.Fatalf("expected cleared completed files, got %d", len(updated.CompletedFiles))
	}
	if updated.ImproveNote != "" {
		t.Fatalf("expected cleared improve note, got %q", updated.ImproveNote)
	}
	if updated.ReviewNote != "" {
		t.Fatalf("expected cleared review note, got %q", updated.ReviewNote)
	}
	if updated.Status != StatusReview {
		t.Fatalf("expected review status, got %q", updated.Status)
	}
}

func TestReviewRequiresReviewStatus(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, worker.ID)

	_, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{Status: StatusApproved})
	if !errors.Is(err, ErrNotInReview) {
		t.Fatalf("expected ErrNotInReview, got %v", err)
	}
}

func TestReviewNegativeOutcomeNeedsNote(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, worker.ID)
	if _, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{Note: "done"}); err != nil {
		t.Fatalf("improve: %v", err)
	}

	if _, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{
		Status: StatusNeedsImprovement,
		Note:   "   ",
	}); !errors.Is(err, ErrNoteRequired) {
		t.Fatalf("expected ErrNoteRequired for blank note, got %v", err)
	}

	updated, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{
		Status: StatusNeedsImprovement,
		Note:   "missing logo",
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if updated.Status != StatusNeedsImprovement || updated.ReviewNote != "missing logo" {
		t.Fatalf("unexpected review result: %+v", updated)
	}
	if updated.ReviewedAt == nil {
		t.Fatalf("expected reviewed_at to be set")
	}
}

func TestReviewApprovalAllowsEmptyNote(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	worker := seedUser(t, mem, "worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, worker.ID)
	if _, err := svc.Improve(context.Background(), created.ID, worker, ImproveInput{}); err != nil {
		t.Fatalf("improve: %v", err)
	}

	updated, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{Status: StatusApproved})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("expected approved, got %q", updated.Status)
	}
}

func TestReviewerGroupScoping(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")
	ieLeader := seedUser(t, mem, "ie lead", user.RoleLeader, "IE")
	leanWorker := seedUser(t, mem, "lean worker", user.RoleMember, "Lean")
	created := mustCreate(t, svc, manager, leanWorker.ID)
	if _, err := svc.Improve(context.Background(), created.ID, leanWorker, ImproveInput{}); err != nil {
		t.Fatalf("improve: %v", err)
	}

	// A leader from another group may not decide.
	if _, err := svc.Review(context.Background(), created.ID, ieLeader, ReviewInput{Status: StatusApproved}); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for foreign-group leader, got %v", err)
	}
	// Members never review, their own tasks included.
	if _, err := svc.Review(context.Background(), created.ID, leanWorker, ReviewInput{Status: StatusApproved}); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for member, got %v", err)
	}
	if _, err := svc.Review(context.Background(), created.ID, manager, ReviewInput{Status: StatusApproved}); err != nil {
		t.Fatalf("manager review: %v", err)
	}
}

func TestReviewRejectsInvalidOutcome(t *testing.T) {
	svc, mem := newTestService(t)
	manager := seedUser(t, mem, "boss", user.RoleManager, "")

	_, err := svc.Review(context.Background(), "any", manager, ReviewInput{Status: StatusOngoing})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func mustCreate(t *testing.T, svc *Service, actor user.User, assignee string) *Task {
	t.Helper()
	start := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), actor, CreateInput{
		Title:     "test task",
		Assignee:  assignee,
		StartDate: start,
		DueDate:   start.AddDate(0, 0, 14),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}
