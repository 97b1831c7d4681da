package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/david/bidsense/internal/models"
)

// sqliteTime is fixed-width so text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the embedded Opportunity Store used for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file and applies PRAGMAs.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := sqldb.Exec(p); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return NewSQLiteStore(sqldb), nil
}

// NewSQLiteStore wraps an already opened handle.
func NewSQLiteStore(sqldb *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: sqldb}
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// EnsureSchema creates the tables if missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS opportunities (
            id TEXT PRIMARY KEY,
            fingerprint TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            category TEXT NOT NULL,
            status TEXT NOT NULL,
            record TEXT NOT NULL,
            raw_text TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities(status);`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_category ON opportunities(category);`,
		`CREATE TABLE IF NOT EXISTS scores (
            opportunity_id TEXT PRIMARY KEY REFERENCES opportunities(id) ON DELETE CASCADE,
            score REAL NOT NULL,
            breakdown TEXT NOT NULL,
            policy_digest TEXT NOT NULL,
            scored_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS decisions (
            opportunity_id TEXT PRIMARY KEY REFERENCES opportunities(id) ON DELETE CASCADE,
            tier TEXT NOT NULL CHECK (tier IN ('Select to Bid', 'Hold', 'Ignore')),
            reason TEXT NOT NULL,
            actor TEXT NOT NULL,
            decided_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS corrections (
            id TEXT PRIMARY KEY,
            opportunity_id TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
            field TEXT NOT NULL,
            extracted_value TEXT NOT NULL,
            corrected_value TEXT NOT NULL,
            actor TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_corrections_opportunity ON corrections(opportunity_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS score_runs (
            id TEXT PRIMARY KEY,
            status TEXT NOT NULL,
            policy_digest TEXT NOT NULL,
            items_scanned INTEGER NOT NULL DEFAULT 0,
            items_updated INTEGER NOT NULL DEFAULT 0,
            errors INTEGER NOT NULL DEFAULT 0,
            started_at TEXT NOT NULL,
            completed_at TEXT
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t.UTC(), nil
}

func scanSQLiteOpportunity(scan func(dest ...any) error) (models.Opportunity, error) {
	var r opportunityRow
	var created, updated string
	var decided *string
	err := scan(
		&r.ID, &r.Fingerprint, &r.Record, &r.Status, &created, &updated,
		&r.Breakdown, &r.Tier, &r.Reason, &r.Actor, &decided, &r.Text,
	)
	if err != nil {
		return models.Opportunity{}, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return models.Opportunity{}, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Opportunity{}, err
	}
	if decided != nil {
		t, err := parseTime(*decided)
		if err != nil {
			return models.Opportunity{}, err
		}
		r.DecidedAt = &t
	}
	return r.decode()
}

func (s *SQLiteStore) UpsertOpportunity(ctx context.Context, opp *models.Opportunity) (bool, error) {
	enc, err := encodeOpportunity(opp)
	if err != nil {
		return false, err
	}
	ts := stamp(opp.UpdatedAt)
	proposed := uuid.New()

	var id uuid.UUID
	var created string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, upsertOpportunitySQL,
			proposed.String(), opp.Fingerprint, opp.Record.Title, opp.Record.Category,
			opp.Status, string(enc.record), opp.Text, formatTime(ts), formatTime(ts),
		).Scan(&id, &created)
		if err != nil {
			return fmt.Errorf("upsert opportunity: %w", err)
		}
		return sqliteWriteEvaluation(ctx, tx, id, opp.Score, enc.breakdown, opp.Decision, ts)
	})
	if err != nil {
		return false, err
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return false, err
	}
	opp.ID = id
	opp.CreatedAt = createdAt
	opp.UpdatedAt = ts
	return id == proposed, nil
}

func sqliteWriteEvaluation(ctx context.Context, tx *sql.Tx, id uuid.UUID, score *models.ScoreBreakdown, breakdown []byte, d *models.Decision, ts time.Time) error {
	if score != nil {
		if _, err := tx.ExecContext(ctx, upsertScoreSQL,
			id.String(), score.FinalScore, string(breakdown), score.PolicyDigest, formatTime(ts),
		); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
	}
	if d != nil {
		if _, err := tx.ExecContext(ctx, upsertDecisionSQL,
			id.String(), string(d.Tier), d.Reason, d.Actor, formatTime(d.DecidedAt),
		); err != nil {
			return fmt.Errorf("upsert decision: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, id uuid.UUID, status string, score models.ScoreBreakdown, d models.Decision) error {
	enc, err := encodeOpportunity(&models.Opportunity{Score: &score})
	if err != nil {
		return err
	}
	ts := stamp(d.DecidedAt)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateStatusSQL, status, formatTime(ts), id.String())
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update status: %w", err)
		} else if n == 0 {
			return fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return sqliteWriteEvaluation(ctx, tx, id, &score, enc.breakdown, &d, ts)
	})
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, id uuid.UUID, d models.Decision) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM opportunities WHERE id = ?)", id.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check opportunity: %w", err)
		}
		if !exists {
			return fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return sqliteWriteEvaluation(ctx, tx, id, nil, nil, &d, d.DecidedAt)
	})
}

func (s *SQLiteStore) getOne(ctx context.Context, column, value string) (*models.Opportunity, error) {
	query := fmt.Sprintf("SELECT %s, o.raw_text %s WHERE o.%s = ?", selectCols, fromJoined, column)
	o, err := scanSQLiteOpportunity(s.db.QueryRowContext(ctx, query, value).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("opportunity %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return s.getOne(ctx, "id", id.String())
}

func (s *SQLiteStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Opportunity, error) {
	return s.getOne(ctx, "fingerprint", fingerprint)
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, params ListParams) ([]models.Opportunity, error) {
	where, args := buildListWhere(params)
	query := fmt.Sprintf("SELECT %s, '' %s %s", selectCols, fromJoined, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		o, err := scanSQLiteOpportunity(rows.Scan)
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

func (s *SQLiteStore) AppendCorrections(ctx context.Context, corrections []models.Correction) error {
	if len(corrections) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range corrections {
			if _, err := tx.ExecContext(ctx, insertCorrectionSQL,
				c.ID.String(), c.OpportunityID.String(), c.Field, c.ExtractedValue,
				c.CorrectedValue, c.Actor, formatTime(stamp(c.CreatedAt)),
			); err != nil {
				return fmt.Errorf("insert correction %s: %w", c.Field, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, opportunityID uuid.UUID) ([]models.Correction, error) {
	query := selectCorrectionsSQL
	var args []any
	if opportunityID != uuid.Nil {
		query += " WHERE opportunity_id = ?"
		args = append(args, opportunityID.String())
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []models.Correction
	for rows.Next() {
		var c models.Correction
		var created string
		if err := rows.Scan(&c.ID, &c.OpportunityID, &c.Field, &c.ExtractedValue, &c.CorrectedValue, &c.Actor, &created); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StartRun(ctx context.Context, policyDigest string, startedAt time.Time) (models.ScoreRun, error) {
	run := models.ScoreRun{
		ID:           uuid.New(),
		Status:       models.RunRunning,
		PolicyDigest: policyDigest,
		StartedAt:    stamp(startedAt),
	}
	if _, err := s.db.ExecContext(ctx, insertRunSQL, run.ID.String(), run.Status, run.PolicyDigest, formatTime(run.StartedAt)); err != nil {
		return run, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run models.ScoreRun) error {
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, finishRunSQL,
		run.Status, run.ItemsScanned, run.ItemsUpdated, run.Errors, formatTime(completed), run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]models.ScoreRun, error) {
	rows, err := s.db.QueryContext(ctx, selectRunsSQL, runLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ScoreRun
	for rows.Next() {
		var r models.ScoreRun
		var started string
		var completed *string
		if err := rows.Scan(&r.ID, &r.Status, &r.PolicyDigest, &r.ItemsScanned, &r.ItemsUpdated, &r.Errors, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if completed != nil {
			t, err := parseTime(*completed)
			if err != nil {
				return nil, err
			}
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
