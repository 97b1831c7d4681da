package ingest

import (
	"strings"
	"time"

	"github.com/david/bidsense/internal/dates"
	"github.com/david/bidsense/internal/models"
)

type StatusDecision struct {
	Status string
	Reason string
	DueAt  *time.Time
}

// closedKeywords mark award, tabulation and cancellation notices, which are
// published under the same solicitation but are no longer biddable.
var closedKeywords = []string{
	"notice of award",
	"award notice",
	"intent to award",
	"notice of intent to award",
	"bid tabulation",
	"solicitation cancelled",
	"solicitation canceled",
	"solicitation has been cancelled",
	"solicitation has been canceled",
}

// ComputeStatus derives the opportunity lifecycle state as of now.
func ComputeStatus(rec models.ExtractedRecord, now time.Time) StatusDecision {
	now = now.UTC()

	var dueAt *time.Time
	if rec.DueDate != nil {
		if t, ok := dates.Parse(*rec.DueDate); ok {
			dueAt = &t
		}
	}

	if isClosedNotice(rec) {
		return StatusDecision{Status: models.StatusClosed, Reason: "award_or_cancellation_notice", DueAt: dueAt}
	}
	if rec.DueDate == nil {
		return StatusDecision{Status: models.StatusNeedsReview, Reason: "missing_due_date"}
	}
	if dueAt == nil {
		return StatusDecision{Status: models.StatusNeedsReview, Reason: "unparseable_due_date"}
	}
	if dates.DaysUntil(*dueAt, now) < 0 {
		return StatusDecision{Status: models.StatusClosed, Reason: "due_date_passed", DueAt: dueAt}
	}
	return StatusDecision{Status: models.StatusOpen, Reason: "due_date_ahead", DueAt: dueAt}
}

func isClosedNotice(rec models.ExtractedRecord) bool {
	haystack := strings.ToLower(rec.Title + "\n" + rec.ScopeSummary)
	for _, kw := range closedKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
