package task

import (
	"testing"
	"time"
)

func TestEndOfDay(t *testing.T) {
	d := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	got := EndOfDay(d)
	want := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCanonicalFoldsLegacyProcessing(t *testing.T) {
	if got := statusProcessing.Canonical(); got != StatusOngoing {
		t.Fatalf("expected processing to read as ongoing, got %q", got)
	}
	if got := StatusReview.Canonical(); got != StatusReview {
		t.Fatalf("expected review to stay review, got %q", got)
	}
}

func TestValidReviewOutcome(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusRejected, StatusNeedsImprovement} {
		if !ValidReviewOutcome(s) {
			t.Fatalf("expected %q to be a review outcome", s)
		}
	}
	for _, s := range []Status{StatusOngoing, StatusReview, statusProcessing, Status("done")} {
		if ValidReviewOutcome(s) {
			t.Fatalf("expected %q to be refused as a review outcome", s)
		}
	}
}

func TestIsOverdue(t *testing.T) {
	due := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	beforeCutoff := time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC)
	afterCutoff := time.Date(2025, 6, 11, 0, 0, 1, 0, time.UTC)

	cases := []struct {
		name   string
		status Status
		now    time.Time
		want   bool
	}{
		{"ongoing before cutoff", StatusOngoing, beforeCutoff, false},
		{"ongoing after cutoff", StatusOngoing, afterCutoff, true},
		{"review after cutoff", StatusReview, afterCutoff, true},
		{"legacy processing after cutoff", statusProcessing, afterCutoff, true},
		{"approved after cutoff", StatusApproved, afterCutoff, false},
		{"rejected after cutoff", StatusRejected, afterCutoff, false},
		{"needs improvement after cutoff", StatusNeedsImprovement, afterCutoff, false},
	}
	for _, tc := range cases {
		tsk := &Task{Status: tc.status, DueDate: due}
		if got := tsk.IsOverdue(tc.now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
