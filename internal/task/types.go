package task

import "time"

type Status string

const (
	StatusOngoing          Status = "ongoing"
	StatusReview           Status = "review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusNeedsImprovement Status = "needs_improvement"

	// statusProcessing is a legacy stored label; it is read as ongoing.
	statusProcessing Status = "processing"
)

// Canonical folds legacy labels into the current status set.
func (s Status) Canonical() Status {
	if s == statusProcessing {
		return StatusOngoing
	}
	return s
}

// ValidReviewOutcome reports whether s is a status a reviewer may set.
func ValidReviewOutcome(s Status) bool {
	switch s {
	case StatusApproved, StatusRejected, StatusNeedsImprovement:
		return true
	default:
		return false
	}
}

// FileDescriptor describes one stored upload. Original keeps the
// human-readable name; Stored is the collision-free key under the upload dir.
type FileDescriptor struct {
	Original string `json:"original" bson:"original"`
	Stored   string `json:"stored" bson:"stored"`
	Mimetype string `json:"mimetype" bson:"mimetype"`
	Size     int64  `json:"size" bson:"size"`
}

// Task is an assignable unit of work tracked through the approval lifecycle.
// AssignedBy and Assignee hold user IDs.
type Task struct {
	ID             string           `json:"id" bson:"_id,omitempty"`
	Title          string           `json:"title" bson:"title"`
	Description    string           `json:"description" bson:"description"`
	Department     string           `json:"department" bson:"department"`
	Position       string           `json:"position" bson:"position"`
	AssignedBy     string           `json:"assigned_by" bson:"assigned_by"`
	Assignee       string           `json:"assignee" bson:"assignee"`
	StartDate      time.Time        `json:"start_date" bson:"start_date"`
	DueDate        time.Time        `json:"due_date" bson:"due_date"`
	Status         Status           `json:"status" bson:"status"`
	BeforeImage    *FileDescriptor  `json:"before_image,omitempty" bson:"before_image,omitempty"`
	AfterImage     *FileDescriptor  `json:"after_image,omitempty" bson:"after_image,omitempty"`
	AttachedFiles  []FileDescriptor `json:"attached_files" bson:"attached_files"`
	CompletedFiles []FileDescriptor `json:"completed_files" bson:"completed_files"`
	ReviewNote     string           `json:"review_note,omitempty" bson:"review_note,omitempty"`
	ImproveNote    string           `json:"improve_note,omitempty" bson:"improve_note,omitempty"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" bson:"updated_at"`
}

// EndOfDay returns 23:59:59 of d's calendar day in d's location. Due dates
// carry date-only semantics and are compared against this instant.
func EndOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}

// IsOverdue derives the overdue flag at read time. It is never persisted.
// Terminal statuses are never overdue regardless of date.
func (t *Task) IsOverdue(now time.Time) bool {
	switch t.Status.Canonical() {
	case StatusOngoing, StatusReview:
	default:
		return false
	}
	return now.After(EndOfDay(t.DueDate))
}
