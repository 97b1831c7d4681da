package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bidsense/internal/db"
	"github.com/david/bidsense/internal/decision"
	"github.com/david/bidsense/internal/metrics"
	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
	"github.com/david/bidsense/internal/scoring"
)

// ErrUnknownField is returned for corrections naming a field the record does not have.
var ErrUnknownField = errors.New("unknown record field")

const defaultBatchSize = 200

// Pipeline drives normalize, extract, classify, score, decide and store. The
// policy is read-only for the lifetime of the pipeline.
type Pipeline struct {
	Store   db.Store
	Policy  *policy.Policy
	Log     *zap.Logger
	Metrics *metrics.Recorder
	// Now is the clock used for scoring and timestamps. Defaults to time.Now.
	Now func() time.Time
}

func NewPipeline(store db.Store, pol *policy.Policy, log *zap.Logger, rec *metrics.Recorder) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		Store:   store,
		Policy:  pol,
		Log:     log,
		Metrics: rec,
		Now:     time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

func (p *Pipeline) policy() *policy.Policy {
	if p.Policy == nil {
		return policy.Default()
	}
	return p.Policy
}

// Evaluation is the scored outcome for one record at one instant.
type Evaluation struct {
	Score    models.ScoreBreakdown
	Decision models.Decision
	Status   StatusDecision
}

// Evaluate scores, decides and derives the status of rec. It has no side effects.
func (p *Pipeline) Evaluate(rec models.ExtractedRecord, now time.Time) Evaluation {
	pol := p.policy()
	return evaluate(scoring.NewScorer(pol), pol, rec, now)
}

func evaluate(scorer *scoring.Scorer, pol *policy.Policy, rec models.ExtractedRecord, now time.Time) Evaluation {
	score := scorer.Score(rec, now)
	return Evaluation{
		Score:    score,
		Decision: decision.Decide(rec, score.FinalScore, pol, now),
		Status:   ComputeStatus(rec, now),
	}
}

// ProcessDocument runs every stage except the store write.
func (p *Pipeline) ProcessDocument(doc RawDocument, now time.Time) models.Opportunity {
	text, strategy := normalize(doc.Data, doc.Format)
	p.Metrics.ObserveNormalized(string(doc.Format), strategyLabel(strategy), text == "")

	rec := Extract(text, doc.Name, p.policy().Extraction)
	if src := strings.TrimSpace(doc.Source); src != "" {
		rec.Source = src
	}
	rec.URL = strPtr(doc.URL)
	p.Metrics.ObserveMissing(missingFields(rec)...)

	return p.opportunity(rec, DocumentFingerprint(rec), text, now)
}

// ProcessListing maps a feed listing onto a record without text extraction.
func (p *Pipeline) ProcessListing(l Listing, now time.Time) models.Opportunity {
	rec := listingRecord(l, p.policy().Extraction)
	fp := ListingFingerprint(rec.Source, l.ExternalID, l.URL, rec.Title)
	text := strings.TrimSpace(sanitizeUTF8(HTMLToText(l.Description)))
	return p.opportunity(rec, fp, text, now)
}

func (p *Pipeline) opportunity(rec models.ExtractedRecord, fingerprint, text string, now time.Time) models.Opportunity {
	ev := p.Evaluate(rec, now)
	return models.Opportunity{
		Fingerprint: fingerprint,
		Record:      rec,
		Text:        text,
		Status:      ev.Status.Status,
		Score:       &ev.Score,
		Decision:    &ev.Decision,
		UpdatedAt:   now,
	}
}

// IngestDocument processes an uploaded document and upserts it by fingerprint.
// Unreadable input still produces a stored, all-sentinel opportunity.
func (p *Pipeline) IngestDocument(ctx context.Context, doc RawDocument) (Result, error) {
	opp := p.ProcessDocument(doc, p.now())
	return p.store(ctx, &opp, zap.String("file", doc.Name), zap.String("format", string(doc.Format)))
}

// IngestListing stores a pre-populated listing. Re-ingesting the same listing
// updates the existing opportunity.
func (p *Pipeline) IngestListing(ctx context.Context, l Listing) (Result, error) {
	opp := p.ProcessListing(l, p.now())
	return p.store(ctx, &opp, zap.String("source", opp.Record.Source), zap.String("external_id", l.ExternalID))
}

func (p *Pipeline) store(ctx context.Context, opp *models.Opportunity, fields ...zap.Field) (Result, error) {
	created, err := p.Store.UpsertOpportunity(ctx, opp)
	if err != nil {
		p.Metrics.ObserveFailure("store")
		return Result{}, fmt.Errorf("save %q: %w", opp.Record.Title, err)
	}
	p.Metrics.ObserveUpsert(created)
	p.Metrics.ObserveDecision(string(opp.Decision.Tier), opp.Score.FinalScore)

	res := resultFor(opp, created)
	p.Log.Info("opportunity stored", append(fields,
		zap.String("opportunity_id", res.OpportunityID),
		zap.String("fingerprint", res.Fingerprint),
		zap.Bool("created", created),
		zap.String("category", res.Category),
		zap.Float64("score", res.Score),
		zap.String("decision", res.Decision),
		zap.String("status", res.Status),
	)...)
	return res, nil
}

func resultFor(opp *models.Opportunity, created bool) Result {
	res := Result{
		OpportunityID: opp.ID.String(),
		Fingerprint:   opp.Fingerprint,
		Created:       created,
		Title:         opp.Record.Title,
		Category:      opp.Record.Category,
		Status:        opp.Status,
	}
	if opp.Score != nil {
		res.Score = opp.Score.FinalScore
	}
	if opp.Decision != nil {
		res.Decision = string(opp.Decision.Tier)
	}
	return res
}

// Rescore recomputes breakdown, decision and status for every stored
// opportunity with one policy and one clock reading, recording a score run.
// Per-record store failures are counted and skipped; listing failures end
// the run as failed.
func (p *Pipeline) Rescore(ctx context.Context, batchSize int) (models.ScoreRun, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pol := p.policy()
	if err := pol.Validate(); err != nil {
		return models.ScoreRun{}, err
	}

	scorer := scoring.NewScorer(pol)
	now := p.now()
	run, err := p.Store.StartRun(ctx, scorer.Digest(), now)
	if err != nil {
		return run, err
	}
	log := p.Log.With(zap.String("run_id", run.ID.String()))
	log.Info("rescore started", zap.String("policy_digest", run.PolicyDigest))

	runErr := p.rescoreAll(ctx, &run, scorer, now, batchSize, log)

	completed := p.now()
	run.CompletedAt = &completed
	run.Status = models.RunCompleted
	if runErr != nil {
		run.Status = models.RunFailed
	}
	// The run row is closed even when ctx was cancelled mid-batch.
	if err := p.Store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return run, errors.Join(runErr, err)
	}

	log.Info("rescore finished",
		zap.String("status", run.Status),
		zap.Int("scanned", run.ItemsScanned),
		zap.Int("updated", run.ItemsUpdated),
		zap.Int("errors", run.Errors),
		zap.Duration("duration", completed.Sub(now)),
	)
	return run, runErr
}

func (p *Pipeline) rescoreAll(ctx context.Context, run *models.ScoreRun, scorer *scoring.Scorer, now time.Time, batchSize int, log *zap.Logger) error {
	pol := p.policy()
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := p.Store.ListOpportunities(ctx, db.ListParams{AfterID: after, Limit: batchSize})
		if err != nil {
			return fmt.Errorf("list opportunities after %s: %w", after, err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, opp := range page {
			run.ItemsScanned++
			ev := evaluate(scorer, pol, opp.Record, now)
			if err := p.Store.SaveEvaluation(ctx, opp.ID, ev.Status.Status, ev.Score, ev.Decision); err != nil {
				run.Errors++
				p.Metrics.ObserveFailure("rescore")
				log.Warn("rescore save failed", zap.String("opportunity_id", opp.ID.String()), zap.Error(err))
				continue
			}
			run.ItemsUpdated++
			p.Metrics.ObserveDecision(string(ev.Decision.Tier), ev.Score.FinalScore)
		}
		after = page[len(page)-1].ID
	}
}

// SetDecision records a human decision. The next rescore replaces it with a
// computed one.
func (p *Pipeline) SetDecision(ctx context.Context, id uuid.UUID, tier models.Tier, reason string) (models.Decision, error) {
	if !tier.Valid() {
		return models.Decision{}, fmt.Errorf("invalid decision %q", tier)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Set by reviewer"
	}
	d := models.Decision{
		Tier:      tier,
		Reason:    reason,
		Actor:     models.ActorHuman,
		DecidedAt: p.now(),
	}
	if err := p.Store.SaveDecision(ctx, id, d); err != nil {
		return d, fmt.Errorf("set decision for %s: %w", id, err)
	}
	p.Log.Info("decision set", zap.String("opportunity_id", id.String()), zap.String("decision", string(tier)))
	return d, nil
}

// RecordCorrections appends one correction per field whose corrected value
// differs from the stored record. The record itself is not changed. Unknown
// field names reject the whole request before anything is written.
func (p *Pipeline) RecordCorrections(ctx context.Context, id uuid.UUID, corrected map[string]string, actor string) ([]models.Correction, error) {
	opp, err := p.Store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := opp.Record.Fields()
	for name := range corrected {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = models.ActorHuman
	}
	now := p.now()

	var out []models.Correction
	for _, name := range models.FieldNames {
		value, ok := corrected[name]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		extracted, _ := opp.Record.FieldString(name)
		if value == extracted {
			continue
		}
		out = append(out, models.Correction{
			ID:             uuid.New(),
			OpportunityID:  id,
			Field:          name,
			ExtractedValue: extracted,
			CorrectedValue: value,
			Actor:          actor,
			CreatedAt:      now,
		})
	}

	if err := p.Store.AppendCorrections(ctx, out); err != nil {
		return nil, fmt.Errorf("record corrections for %s: %w", id, err)
	}
	p.Log.Info("corrections recorded", zap.String("opportunity_id", id.String()), zap.Int("count", len(out)))
	return out, nil
}

// listingRecord builds a complete record from feed-supplied fields. Text
// fields are stripped of markup and invalid UTF-8.
func listingRecord(l Listing, opts policy.Extraction) models.ExtractedRecord {
	clean := func(s string) string {
		return normalizeSpace(sanitizeUTF8(HTMLToText(s)))
	}

	title := clean(l.Title)
	description := strings.TrimSpace(sanitizeUTF8(HTMLToText(l.Description)))
	if title == "" {
		title = DefaultTitle
	}

	rec := models.ExtractedRecord{
		ExternalID:       strPtr(clean(l.ExternalID)),
		Title:            title,
		Agency:           clean(l.Agency),
		Source:           clean(l.Source),
		IssueDate:        strPtr(clean(l.IssueDate)),
		DueDate:          strPtr(clean(l.DueDate)),
		PreBidRequired:   models.PreBidNA,
		URL:              strPtr(l.URL),
		Category:         clean(l.Category),
		Budget:           l.Budget,
		CustomerType:     strPtr(strings.ToLower(clean(l.CustomerType))),
		SubmissionMethod: models.NotSpecified,
		SetAside:         models.SetAsideNone,
		Bonding:          models.NotMentioned,
		Insurance:        models.NotMentioned,
		ScopeSummary:     models.NotParsed,
		TechRequirements: extractTechTags(title + "\n" + description),
	}
	if rec.Agency == "" {
		rec.Agency = models.UnknownAgency
	}
	if rec.Source == "" {
		rec.Source = models.NotSpecified
	}
	if rec.Category == "" {
		rec.Category = Classify(title + "\n" + description)
	}
	if rec.CustomerType == nil {
		rec.CustomerType = CustomerTypeFor(rec.Agency)
	}
	if description != "" {
		rec.ScopeSummary = truncateWords(normalizeSpace(description), scopeLimit(opts))
	}
	return rec
}

func scopeLimit(opts policy.Extraction) int {
	if opts.ScopeMaxChars > 0 {
		return opts.ScopeMaxChars
	}
	return 600
}

// missingFields names the fields that fell back to nil or a sentinel.
func missingFields(rec models.ExtractedRecord) []string {
	var missing []string
	fields := rec.Fields()
	for _, name := range models.FieldNames {
		switch v := fields[name].(type) {
		case nil:
			missing = append(missing, name)
		case string:
			switch v {
			case "", models.UnknownAgency, models.NotSpecified, models.NotParsed, models.GenericCategory:
				missing = append(missing, name)
			}
		case []string:
			if len(v) == 0 {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

func strategyLabel(strategy string) string {
	if strategy == "" {
		return "none"
	}
	return strategy
}
