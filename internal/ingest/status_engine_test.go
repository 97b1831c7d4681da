package ingest

import (
	"testing"
	"time"

	"github.com/david/bidsense/internal/models"
)

func due(s string) *string { return &s }

func TestComputeStatus_AwardNoticeClosed(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rec := models.ExtractedRecord{
		Title:   "Notice of Intent to Award - RFP 25-014",
		DueDate: due("12/01/2025"),
	}

	decision := ComputeStatus(rec, now)
	if decision.Status != models.StatusClosed {
		t.Fatalf("expected closed, got %s", decision.Status)
	}
	if decision.Reason != "award_or_cancellation_notice" {
		t.Fatalf("unexpected reason %s", decision.Reason)
	}
}

func TestComputeStatus_PastDueClosed(t *testing.T) {
	now := time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)

	decision := ComputeStatus(models.ExtractedRecord{DueDate: due("10/15/2025")}, now)
	if decision.Status != models.StatusClosed {
		t.Fatalf("expected closed, got %s", decision.Status)
	}
	if decision.DueAt == nil {
		t.Fatal("expected parsed due date")
	}
}

func TestComputeStatus_DueTodayStillOpen(t *testing.T) {
	now := time.Date(2025, 10, 15, 16, 0, 0, 0, time.UTC)

	decision := ComputeStatus(models.ExtractedRecord{DueDate: due("October 15, 2025")}, now)
	if decision.Status != models.StatusOpen {
		t.Fatalf("expected open, got %s", decision.Status)
	}
}

func TestComputeStatus_MissingOrUnreadableDueDate(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	if got := ComputeStatus(models.ExtractedRecord{}, now); got.Status != models.StatusNeedsReview || got.Reason != "missing_due_date" {
		t.Fatalf("unexpected decision for missing due date: %+v", got)
	}
	if got := ComputeStatus(models.ExtractedRecord{DueDate: due("13/45/2025")}, now); got.Status != models.StatusNeedsReview || got.Reason != "unparseable_due_date" {
		t.Fatalf("unexpected decision for bad due date: %+v", got)
	}
}
