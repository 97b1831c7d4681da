package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david/bidsense/internal/models"
)

// ErrNotFound is returned when a lookup matches no stored row.
var ErrNotFound = errors.New("not found")

// Store is the Opportunity Store. Writes are idempotent upserts keyed by
// fingerprint, so concurrent batch runs over the same set interleave safely.
type Store interface {
	// UpsertOpportunity inserts or updates opp by fingerprint together with its
	// score and decision, in one transaction. It fills opp.ID and the
	// timestamps and reports whether a new row was created.
	UpsertOpportunity(ctx context.Context, opp *models.Opportunity) (bool, error)
	// SaveEvaluation replaces the score, decision and status of a stored opportunity.
	SaveEvaluation(ctx context.Context, id uuid.UUID, status string, score models.ScoreBreakdown, d models.Decision) error
	// SaveDecision replaces only the decision, leaving the score untouched.
	SaveDecision(ctx context.Context, id uuid.UUID, d models.Decision) error
	GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, params ListParams) ([]models.Opportunity, error)
	AppendCorrections(ctx context.Context, corrections []models.Correction) error
	ListCorrections(ctx context.Context, opportunityID uuid.UUID) ([]models.Correction, error)
	StartRun(ctx context.Context, policyDigest string, startedAt time.Time) (models.ScoreRun, error)
	FinishRun(ctx context.Context, run models.ScoreRun) error
	ListRuns(ctx context.Context, limit int) ([]models.ScoreRun, error)
	Close() error
}

// ListParams filters a keyset-paginated listing ordered by id.
type ListParams struct {
	AfterID  uuid.UUID
	Limit    int
	Status   string
	Tier     string
	Category string
	MinScore *float64
}

const defaultListLimit = 100

const selectCols = `o.id, o.fingerprint, o.record, o.status, o.created_at, o.updated_at,
	s.breakdown, d.tier, d.reason, d.actor, d.decided_at`

const fromJoined = `FROM opportunities o
	LEFT JOIN scores s ON s.opportunity_id = o.id
	LEFT JOIN decisions d ON d.opportunity_id = o.id`

const upsertOpportunitySQL = `INSERT INTO opportunities (id, fingerprint, title, category, status, record, raw_text, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (fingerprint) DO UPDATE SET
		title = excluded.title,
		category = excluded.category,
		status = excluded.status,
		record = excluded.record,
		raw_text = excluded.raw_text,
		updated_at = excluded.updated_at
	RETURNING id, created_at`

const upsertScoreSQL = `INSERT INTO scores (opportunity_id, score, breakdown, policy_digest, scored_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (opportunity_id) DO UPDATE SET
		score = excluded.score,
		breakdown = excluded.breakdown,
		policy_digest = excluded.policy_digest,
		scored_at = excluded.scored_at`

const upsertDecisionSQL = `INSERT INTO decisions (opportunity_id, tier, reason, actor, decided_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (opportunity_id) DO UPDATE SET
		tier = excluded.tier,
		reason = excluded.reason,
		actor = excluded.actor,
		decided_at = excluded.decided_at`

const updateStatusSQL = `UPDATE opportunities SET status = ?, updated_at = ? WHERE id = ?`

const insertCorrectionSQL = `INSERT INTO corrections (id, opportunity_id, field, extracted_value, corrected_value, actor, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectCorrectionsSQL = `SELECT id, opportunity_id, field, extracted_value, corrected_value, actor, created_at
	FROM corrections`

const insertRunSQL = `INSERT INTO score_runs (id, status, policy_digest, items_scanned, items_updated, errors, started_at)
	VALUES (?, ?, ?, 0, 0, 0, ?)`

const finishRunSQL = `UPDATE score_runs
	SET status = ?, items_scanned = ?, items_updated = ?, errors = ?, completed_at = ?
	WHERE id = ?`

const selectRunsSQL = `SELECT id, status, policy_digest, items_scanned, items_updated, errors, started_at, completed_at
	FROM score_runs ORDER BY started_at DESC LIMIT ?`

// buildListWhere renders the WHERE clause, ordering and limit for
// ListOpportunities with "?" placeholders.
func buildListWhere(params ListParams) (string, []any) {
	where := "WHERE 1=1"
	var args []any

	if params.AfterID != uuid.Nil {
		where += " AND o.id > ?"
		args = append(args, params.AfterID.String())
	}
	if params.Status != "" && params.Status != "all" {
		where += " AND o.status = ?"
		args = append(args, params.Status)
	}
	if params.Category != "" {
		where += " AND o.category = ?"
		args = append(args, params.Category)
	}
	if params.Tier != "" {
		where += " AND d.tier = ?"
		args = append(args, params.Tier)
	}
	if params.MinScore != nil {
		where += " AND s.score >= ?"
		args = append(args, *params.MinScore)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	where += " ORDER BY o.id ASC LIMIT ?"
	args = append(args, limit)
	return where, args
}

// rebind rewrites "?" placeholders into PostgreSQL's numbered form.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// opportunityRow is a scanned row before JSON decoding. Decision columns are
// nil when the opportunity was never decided.
type opportunityRow struct {
	ID          uuid.UUID
	Fingerprint string
	Record      []byte
	Status      string
	Text        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Breakdown   []byte
	Tier        *string
	Reason      *string
	Actor       *string
	DecidedAt   *time.Time
}

func (r opportunityRow) decode() (models.Opportunity, error) {
	o := models.Opportunity{
		ID:          r.ID,
		Fingerprint: r.Fingerprint,
		Status:      r.Status,
		Text:        r.Text,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Record, &o.Record); err != nil {
		return o, fmt.Errorf("decode record %s: %w", r.ID, err)
	}
	if len(r.Breakdown) > 0 {
		var sb models.ScoreBreakdown
		if err := json.Unmarshal(r.Breakdown, &sb); err != nil {
			return o, fmt.Errorf("decode breakdown %s: %w", r.ID, err)
		}
		o.Score = &sb
	}
	if r.Tier != nil {
		d := models.Decision{Tier: models.Tier(*r.Tier)}
		if r.Reason != nil {
			d.Reason = *r.Reason
		}
		if r.Actor != nil {
			d.Actor = *r.Actor
		}
		if r.DecidedAt != nil {
			d.DecidedAt = r.DecidedAt.UTC()
		}
		o.Decision = &d
	}
	return o, nil
}

// encodedOpportunity holds the serialized columns shared by both stores.
type encodedOpportunity struct {
	record    []byte
	breakdown []byte
}

func encodeOpportunity(opp *models.Opportunity) (encodedOpportunity, error) {
	var enc encodedOpportunity
	var err error
	if enc.record, err = json.Marshal(opp.Record); err != nil {
		return enc, fmt.Errorf("encode record: %w", err)
	}
	if opp.Score != nil {
		if enc.breakdown, err = json.Marshal(opp.Score); err != nil {
			return enc, fmt.Errorf("encode breakdown: %w", err)
		}
	}
	return enc, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func runLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
