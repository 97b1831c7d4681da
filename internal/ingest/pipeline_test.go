package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/david/bidsense/internal/db"
	"github.com/david/bidsense/internal/metrics"
	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

var pipelineNow = time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, pol *policy.Policy) (*Pipeline, *db.SQLiteStore, *metrics.Recorder) {
	t.Helper()
	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "bidsense.db"))
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	t.Cleanup(func() { store.Close() })

	rec := metrics.NewRecorder()
	p := NewPipeline(store, pol, zaptest.NewLogger(t), rec)
	p.Now = func() time.Time { return pipelineNow }
	return p, store, rec
}

func rivertonDoc() RawDocument {
	return RawDocument{Name: "riverton.txt", Data: []byte(rivertonRFP), Format: FormatText}
}

func TestPipeline_IngestDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, store, rec := newTestPipeline(t, policy.Default())

	first, err := p.IngestDocument(ctx, rivertonDoc())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, CategoryDAS, first.Category)
	assert.Equal(t, string(models.TierSelect), first.Decision)
	assert.GreaterOrEqual(t, first.Score, 70.0)
	assert.Equal(t, models.StatusOpen, first.Status)

	second, err := p.IngestDocument(ctx, rivertonDoc())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.OpportunityID, second.OpportunityID)

	all, err := store.ListOpportunities(ctx, db.ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	stored, err := store.GetOpportunity(ctx, uuid.MustParse(first.OpportunityID))
	require.NoError(t, err)
	assert.Equal(t, "City of Riverton", stored.Record.Agency)
	assert.Contains(t, stored.Text, "distributed antenna system")
	assert.Equal(t, models.ActorAuto, stored.Decision.Actor)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Upserts.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Upserts.WithLabelValues("updated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.DocumentsNormalized.WithLabelValues(string(FormatText), "text")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Decisions.WithLabelValues(string(models.TierSelect))))
}

func TestPipeline_EmptyDocumentStillStored(t *testing.T) {
	ctx := context.Background()
	pol := policy.Default()
	p, store, rec := newTestPipeline(t, pol)

	res, err := p.IngestDocument(ctx, RawDocument{Name: "uploads/empty.txt", Format: FormatText})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "empty.txt", res.Title)
	assert.Equal(t, pol.Weights.Base, res.Score)
	assert.Equal(t, models.StatusNeedsReview, res.Status)
	assert.Equal(t, string(models.TierIgnore), res.Decision)

	stored, err := store.GetOpportunity(ctx, uuid.MustParse(res.OpportunityID))
	require.NoError(t, err)
	assert.Empty(t, stored.Score.Components)
	assert.Equal(t, "Score 0 < 50", stored.Decision.Reason)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.EmptyNormalizations))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.FieldsMissing.WithLabelValues("agency")))
}

func TestPipeline_IngestListing(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, policy.Default())

	listing := Listing{
		Source:      "SAM.gov",
		ExternalID:  "W912-25-R-0001",
		Title:       "<b>Parking Garage CCTV</b> upgrade",
		Agency:      "U.S. Army Corps of Engineers",
		DueDate:     "2025-10-20",
		URL:         "https://sam.example/opp/W912-25-R-0001",
		Description: "<p>Install cameras &amp; ALPR at two garages.</p><script>track()</script>",
	}

	first, err := p.IngestListing(ctx, listing)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "Parking Garage CCTV upgrade", first.Title)
	assert.Equal(t, CategoryCCTV, first.Category)
	assert.Equal(t, models.StatusOpen, first.Status)

	listing.Title = "Parking Garage CCTV upgrade (amended)"
	second, err := p.IngestListing(ctx, listing)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.OpportunityID, second.OpportunityID)

	stored, err := store.GetOpportunity(ctx, uuid.MustParse(first.OpportunityID))
	require.NoError(t, err)
	assert.Equal(t, "Parking Garage CCTV upgrade (amended)", stored.Record.Title)
	assert.Equal(t, "Install cameras & ALPR at two garages.", stored.Text)
	require.NotNil(t, stored.Record.CustomerType)
	assert.Equal(t, "military", *stored.Record.CustomerType)
	assert.Equal(t, []string{"CCTV/Camera/ALPR"}, stored.Record.TechRequirements)
}

func TestPipeline_RescoreSupersedesHumanDecision(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, policy.Default())

	res, err := p.IngestDocument(ctx, rivertonDoc())
	require.NoError(t, err)
	_, err = p.IngestDocument(ctx, RawDocument{Name: "empty.txt", Format: FormatText})
	require.NoError(t, err)
	id := uuid.MustParse(res.OpportunityID)

	d, err := p.SetDecision(ctx, id, models.TierHold, "")
	require.NoError(t, err)
	assert.Equal(t, "Set by reviewer", d.Reason)
	assert.Equal(t, models.ActorHuman, d.Actor)

	strict := policy.Default()
	strict.Thresholds = policy.Thresholds{AutoSelect: 200, HoldMin: 150}
	p.Policy = strict

	run, err := p.Rescore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, 2, run.ItemsScanned)
	assert.Equal(t, 2, run.ItemsUpdated)
	assert.Zero(t, run.Errors)
	assert.Equal(t, strict.Digest(), run.PolicyDigest)

	stored, err := store.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TierIgnore, stored.Decision.Tier)
	assert.Equal(t, models.ActorAuto, stored.Decision.Actor)
	assert.Equal(t, strict.Digest(), stored.Score.PolicyDigest)

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestPipeline_RescoreRejectsInvalidPolicy(t *testing.T) {
	bad := policy.Default()
	bad.Thresholds.HoldMin = 90
	p, store, _ := newTestPipeline(t, bad)

	_, err := p.Rescore(context.Background(), 10)
	require.Error(t, err)

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPipeline_SetDecisionErrors(t *testing.T) {
	p, _, _ := newTestPipeline(t, policy.Default())

	_, err := p.SetDecision(context.Background(), uuid.New(), models.Tier("Maybe"), "")
	require.Error(t, err)

	_, err = p.SetDecision(context.Background(), uuid.New(), models.TierSelect, "looks good")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPipeline_RecordCorrections(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPipeline(t, policy.Default())

	res, err := p.IngestDocument(ctx, rivertonDoc())
	require.NoError(t, err)
	id := uuid.MustParse(res.OpportunityID)

	_, err = p.RecordCorrections(ctx, id, map[string]string{"colour": "blue", "agency": "City of Mesa"}, "analyst")
	require.ErrorIs(t, err, ErrUnknownField)
	none, err := store.ListCorrections(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := p.RecordCorrections(ctx, id, map[string]string{
		"budget":   "350000",
		"agency":   " City of Riverton ",
		"due_date": "10/20/2025",
	}, "analyst")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "due_date", got[0].Field)
	assert.Equal(t, "10/15/2025", got[0].ExtractedValue)
	assert.Equal(t, "10/20/2025", got[0].CorrectedValue)
	assert.Equal(t, "budget", got[1].Field)
	assert.Equal(t, "300000", got[1].ExtractedValue)
	assert.Equal(t, "analyst", got[1].Actor)

	stored, err := store.ListCorrections(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	opp, err := store.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10/15/2025", *opp.Record.DueDate)
}

func TestPipeline_OverrideRuleForcesDecision(t *testing.T) {
	pol := policy.Default()
	pol.OverrideRules = []policy.OverrideRule{{MatchTitle: "empty", Decision: string(models.TierSelect)}}
	p, _, _ := newTestPipeline(t, pol)

	res, err := p.IngestDocument(context.Background(), RawDocument{Name: "empty.txt", Format: FormatText})
	require.NoError(t, err)
	assert.Equal(t, string(models.TierSelect), res.Decision)
	assert.Equal(t, 0.0, res.Score)
}
