package models

import (
	"time"

	"github.com/google/uuid"
)

// Opportunity is one stored solicitation or listing together with its latest
// evaluation. Score and Decision are nil until the opportunity has been scored.
type Opportunity struct {
	ID          uuid.UUID       `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	Record      ExtractedRecord `json:"record"`
	Text        string          `json:"text,omitempty"`
	Status      string          `json:"status"`
	Score       *ScoreBreakdown `json:"score"`
	Decision    *Decision       `json:"decision"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const (
	StatusOpen        = "open"
	StatusClosed      = "closed"
	StatusNeedsReview = "needs_review"
)

// Correction is one human fix of an extracted field. Corrections are
// append-only and never change the stored record.
type Correction struct {
	ID             uuid.UUID `json:"id"`
	OpportunityID  uuid.UUID `json:"opportunity_id"`
	Field          string    `json:"field"`
	ExtractedValue string    `json:"extracted_value"`
	CorrectedValue string    `json:"corrected_value"`
	Actor          string    `json:"actor"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScoreRun tracks one batch rescoring pass.
type ScoreRun struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	PolicyDigest string     `json:"policy_digest"`
	ItemsScanned int        `json:"items_scanned"`
	ItemsUpdated int        `json:"items_updated"`
	Errors       int        `json:"errors"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)
