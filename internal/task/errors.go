package task

import "errors"

var (
	ErrNotFound         = errors.New("task not found")
	ErrNotAssigner      = errors.New("role cannot assign tasks")
	ErrAssigneeRequired = errors.New("assignee is required")
	ErrAssigneeUnknown  = errors.New("assignee does not exist")
	ErrDueBeforeStart   = errors.New("due date is before start date")
	ErrInvalidStatus    = errors.New("invalid review status")
	ErrNoteRequired     = errors.New("a review note is required to reject or request improvement")
	ErrNotInReview      = errors.New("task is not awaiting review")
	ErrNotAssignee      = errors.New("only the assignee can submit improvements")
	ErrNotEligible      = errors.New("not eligible to review this task")
	ErrNotImprovable    = errors.New("task cannot be improved in its current status")
	ErrPastDue          = errors.New("task is past its due date and can no longer be improved")
	ErrGroupForbidden   = errors.New("leaders may only view statistics for their own group")
	ErrLeaderNoGroup    = errors.New("leader account has no group")
)
