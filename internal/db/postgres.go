package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/bidsense/internal/models"
)

// PgStore is the PostgreSQL Opportunity Store.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var r opportunityRow
	err := scan(
		&r.ID, &r.Fingerprint, &r.Record, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		&r.Breakdown, &r.Tier, &r.Reason, &r.Actor, &r.DecidedAt, &r.Text,
	)
	if err != nil {
		return models.Opportunity{}, err
	}
	return r.decode()
}

func (s *PgStore) UpsertOpportunity(ctx context.Context, opp *models.Opportunity) (bool, error) {
	enc, err := encodeOpportunity(opp)
	if err != nil {
		return false, err
	}
	ts := stamp(opp.UpdatedAt)
	proposed := uuid.New()

	var id uuid.UUID
	var createdAt time.Time
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, rebind(upsertOpportunitySQL),
			proposed.String(), opp.Fingerprint, opp.Record.Title, opp.Record.Category,
			opp.Status, enc.record, opp.Text, ts, ts,
		).Scan(&id, &createdAt)
		if err != nil {
			return fmt.Errorf("upsert opportunity: %w", err)
		}
		return pgWriteEvaluation(ctx, tx, id, opp.Score, enc.breakdown, opp.Decision, ts)
	})
	if err != nil {
		return false, err
	}

	opp.ID = id
	opp.CreatedAt = createdAt.UTC()
	opp.UpdatedAt = ts
	return id == proposed, nil
}

func pgWriteEvaluation(ctx context.Context, tx pgx.Tx, id uuid.UUID, score *models.ScoreBreakdown, breakdown []byte, d *models.Decision, ts time.Time) error {
	if score != nil {
		if _, err := tx.Exec(ctx, rebind(upsertScoreSQL),
			id.String(), score.FinalScore, breakdown, score.PolicyDigest, ts,
		); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
	}
	if d != nil {
		if _, err := tx.Exec(ctx, rebind(upsertDecisionSQL),
			id.String(), string(d.Tier), d.Reason, d.Actor, d.DecidedAt.UTC(),
		); err != nil {
			return fmt.Errorf("upsert decision: %w", err)
		}
	}
	return nil
}

func (s *PgStore) SaveEvaluation(ctx context.Context, id uuid.UUID, status string, score models.ScoreBreakdown, d models.Decision) error {
	enc, err := encodeOpportunity(&models.Opportunity{Score: &score})
	if err != nil {
		return err
	}
	ts := stamp(d.DecidedAt)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, rebind(updateStatusSQL), status, ts, id.String())
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return pgWriteEvaluation(ctx, tx, id, &score, enc.breakdown, &d, ts)
	})
}

func (s *PgStore) SaveDecision(ctx context.Context, id uuid.UUID, d models.Decision) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM opportunities WHERE id = $1)", id.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check opportunity: %w", err)
		}
		if !exists {
			return fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return pgWriteEvaluation(ctx, tx, id, nil, nil, &d, d.DecidedAt)
	})
}

func (s *PgStore) getOne(ctx context.Context, column, value string) (*models.Opportunity, error) {
	query := fmt.Sprintf("SELECT %s, o.raw_text %s WHERE o.%s = $1", selectCols, fromJoined, column)
	o, err := scanPgOpportunity(s.pool.QueryRow(ctx, query, value).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("opportunity %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}

func (s *PgStore) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return s.getOne(ctx, "id", id.String())
}

func (s *PgStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Opportunity, error) {
	return s.getOne(ctx, "fingerprint", fingerprint)
}

func (s *PgStore) ListOpportunities(ctx context.Context, params ListParams) ([]models.Opportunity, error) {
	where, args := buildListWhere(params)
	query := rebind(fmt.Sprintf("SELECT %s, '' %s %s", selectCols, fromJoined, where))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanPgOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return opps, nil
}

func (s *PgStore) AppendCorrections(ctx context.Context, corrections []models.Correction) error {
	if len(corrections) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, c := range corrections {
			if _, err := tx.Exec(ctx, rebind(insertCorrectionSQL),
				c.ID.String(), c.OpportunityID.String(), c.Field, c.ExtractedValue,
				c.CorrectedValue, c.Actor, stamp(c.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert correction %s: %w", c.Field, err)
			}
		}
		return nil
	})
}

func (s *PgStore) ListCorrections(ctx context.Context, opportunityID uuid.UUID) ([]models.Correction, error) {
	query := selectCorrectionsSQL
	var args []any
	if opportunityID != uuid.Nil {
		query += " WHERE opportunity_id = ?"
		args = append(args, opportunityID.String())
	}
	query += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []models.Correction
	for rows.Next() {
		var c models.Correction
		if err := rows.Scan(&c.ID, &c.OpportunityID, &c.Field, &c.ExtractedValue, &c.CorrectedValue, &c.Actor, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgStore) StartRun(ctx context.Context, policyDigest string, startedAt time.Time) (models.ScoreRun, error) {
	run := models.ScoreRun{
		ID:           uuid.New(),
		Status:       models.RunRunning,
		PolicyDigest: policyDigest,
		StartedAt:    stamp(startedAt),
	}
	if _, err := s.pool.Exec(ctx, rebind(insertRunSQL), run.ID.String(), run.Status, run.PolicyDigest, run.StartedAt); err != nil {
		return run, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

func (s *PgStore) FinishRun(ctx context.Context, run models.ScoreRun) error {
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC()
	}
	tag, err := s.pool.Exec(ctx, rebind(finishRunSQL),
		run.Status, run.ItemsScanned, run.ItemsUpdated, run.Errors, completed, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *PgStore) ListRuns(ctx context.Context, limit int) ([]models.ScoreRun, error) {
	rows, err := s.pool.Query(ctx, rebind(selectRunsSQL), runLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScoreRun
	for rows.Next() {
		var r models.ScoreRun
		if err := rows.Scan(&r.ID, &r.Status, &r.PolicyDigest, &r.ItemsScanned, &r.ItemsUpdated, &r.Errors, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
