// Package scoring turns an extracted record into an additive, itemized score.
package scoring

import (
	"strings"
	"time"

	"github.com/david/bidsense/internal/dates"
	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

// Component names. Each matches the policy weight it contributes.
const (
	CategoryCore       = "category_core_bonus"
	StrategicCustomer  = "strategic_customer_bonus"
	Commodity          = "commodity_penalty"
	Brandlock          = "brandlock_penalty"
	LessCompetition    = "less_competition_bonus"
	DueWindowGood      = "due_window_good"
	DueWindowRush      = "due_window_rush"
	BudgetBig          = "budget_big_bonus"
	SqftBig            = "sqft_big_bonus" // weighted by budget_big_bonus
	BudgetSmall        = "budget_small_penalty"
	CashflowGov        = "cashflow_gov_bonus"
	CashflowEnterprise = "cashflow_enterprise_bonus"
	ProfitStrong       = "profit_strong_bonus"
	ProfitThin         = "profit_thin_penalty"
)

// Scorer scores records against one policy. The policy digest stamped on
// every breakdown is computed once.
type Scorer struct {
	pol    *policy.Policy
	digest string
}

func NewScorer(pol *policy.Policy) *Scorer {
	return &Scorer{pol: pol, digest: pol.Digest()}
}

// Digest is the digest of the scorer's policy.
func (s *Scorer) Digest() string {
	return s.digest
}

// Score evaluates rec against pol as of now. Prefer a Scorer when scoring
// many records with one policy.
func Score(rec models.ExtractedRecord, pol *policy.Policy, now time.Time) models.ScoreBreakdown {
	return NewScorer(pol).Score(rec, now)
}

// Score evaluates rec as of now. Every rule that holds appends its weight
// to the breakdown in evaluation order; the final score is the base plus
// those weights, rounded to two places.
func (s *Scorer) Score(rec models.ExtractedRecord, now time.Time) models.ScoreBreakdown {
	pol := s.pol
	w := pol.Weights
	b := models.ScoreBreakdown{
		Base:       w.Base,
		Components: []models.Component{},
		Inputs: models.ScoreInputs{
			Category:     rec.Category,
			Agency:       rec.Agency,
			CustomerType: rec.CustomerType,
			DueDate:      rec.DueDate,
			Budget:       rec.Budget,
			AreaSqft:     rec.AreaSqft,
			LineCount:    rec.LineCount,
		},
		PolicyDigest: s.digest,
	}
	add := func(name string, weight float64) {
		b.Components = append(b.Components, models.Component{Name: name, Weight: weight})
	}

	b.Flags.IsCore = isCore(rec, pol)
	if b.Flags.IsCore {
		add(CategoryCore, w.CategoryCoreBonus)
	}

	b.Flags.IsStrategic = isStrategic(rec, pol)
	if b.Flags.IsStrategic {
		add(StrategicCustomer, w.StrategicCustomerBonus)
	}

	blob := textBlob(rec)
	if _, ok := firstKeyword(blob, pol.CommodityKeywords); ok {
		b.Flags.CommodityHit = true
		add(Commodity, w.CommodityPenalty)
	}
	if _, ok := firstKeyword(blob, pol.BrandlockKeywords); ok {
		b.Flags.BrandlockHit = true
		add(Brandlock, w.BrandlockPenalty)
	}
	if _, ok := firstKeyword(blob, pol.LessCompetitionKeywords); ok {
		b.Flags.LowCompetition = true
		add(LessCompetition, w.LessCompetitionBonus)
	}

	if rec.DueDate != nil {
		if due, ok := dates.Parse(*rec.DueDate); ok {
			days := dates.DaysUntil(due, now)
			b.Flags.DaysUntilDue = &days
			switch {
			case days >= pol.DueWindowDaysGood:
				add(DueWindowGood, w.DueWindowGood)
			case days < pol.DueWindowDaysRush:
				add(DueWindowRush, w.DueWindowRush)
			}
		}
	}

	if rec.Budget != nil && *rec.Budget >= pol.BigJobBudgetMin {
		add(BudgetBig, w.BudgetBigBonus)
	}
	if rec.AreaSqft != nil && *rec.AreaSqft >= pol.BigJobSqftMin {
		add(SqftBig, w.BudgetBigBonus)
	}
	if rec.Budget != nil && *rec.Budget < pol.SmallJobBudgetMax {
		add(BudgetSmall, w.BudgetSmallPenalty)
	}

	if rec.CustomerType != nil {
		switch {
		case inList(*rec.CustomerType, pol.StrategicCustomerTypes):
			add(CashflowGov, w.CashflowGovBonus)
		case inList(*rec.CustomerType, pol.EnterpriseCustomerTypes):
			add(CashflowEnterprise, w.CashflowEnterpriseBonus)
		}
	}

	profit := EstimateProfit(rec, pol.Profit)
	b.Profit = &profit
	if profit.Sufficient() {
		switch margin := *profit.MarginRatio; {
		case margin >= pol.Profit.StrongMargin:
			add(ProfitStrong, w.ProfitStrongBonus)
		case margin < pol.Profit.ThinMargin:
			add(ProfitThin, w.ProfitThinPenalty)
		}
	}

	b.FinalScore = round(b.Sum(), 2)
	return b
}

// isCore holds when the category names a core category, or the title
// mentions a core discipline.
func isCore(rec models.ExtractedRecord, pol *policy.Policy) bool {
	category := strings.ToUpper(rec.Category)
	for _, c := range pol.CoreCategories {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" && strings.Contains(category, c) {
			return true
		}
	}
	_, ok := firstKeyword(strings.ToLower(rec.Title), pol.CoreTitleKeywords)
	return ok
}

// isStrategic holds for government, education and military buyers, judged
// by customer type or by markers in the agency and source names.
func isStrategic(rec models.ExtractedRecord, pol *policy.Policy) bool {
	if rec.CustomerType != nil && inList(*rec.CustomerType, pol.StrategicCustomerTypes) {
		return true
	}
	names := strings.ToLower(rec.Agency + " " + rec.Source)
	if rec.Agency == models.UnknownAgency {
		names = strings.ToLower(rec.Source)
	}
	return containsAny(names, pol.StrategicAgencyMarkers)
}

// textBlob is the lower-cased text keyword rules are matched against.
func textBlob(rec models.ExtractedRecord) string {
	parts := []string{rec.Title, rec.Agency, rec.Source}
	if rec.ScopeSummary != models.NotParsed {
		parts = append(parts, rec.ScopeSummary)
	}
	parts = append(parts, rec.TechRequirements...)
	return strings.ToLower(strings.Join(parts, "\n"))
}
