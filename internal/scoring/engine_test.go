package scoring

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

var scoredAt = time.Date(2025, time.September, 1, 9, 30, 0, 0, time.UTC)

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func rivertonRecord() models.ExtractedRecord {
	return models.ExtractedRecord{
		ExternalID:       strp("RFP 25-014"),
		Title:            "RFP 25-014 Distributed Antenna System",
		Agency:           "City of Riverton",
		Source:           models.ManualUploadSource,
		DueDate:          strp("10/15/2025"),
		Category:         "DAS / In-Building Cellular",
		Budget:           f64p(300000),
		CustomerType:     strp("government"),
		SubmissionMethod: models.NotSpecified,
		SetAside:         models.SetAsideNone,
		Bonding:          models.NotMentioned,
		Insurance:        models.NotMentioned,
		PreBidRequired:   models.PreBidNA,
		ScopeSummary:     "Install a distributed antenna system in City Hall.",
		TechRequirements: []string{"DAS / Neutral Host"},
	}
}

func componentNames(b models.ScoreBreakdown) []string {
	var names []string
	for _, c := range b.Components {
		names = append(names, c.Name)
	}
	return names
}

func TestScore_RivertonExample(t *testing.T) {
	b := Score(rivertonRecord(), policy.Default(), scoredAt)

	names := componentNames(b)
	assert.Contains(t, names, CategoryCore)
	assert.Contains(t, names, StrategicCustomer)
	assert.Contains(t, names, LessCompetition)
	assert.Contains(t, names, BudgetBig)
	assert.True(t, b.Flags.IsCore)
	assert.True(t, b.Flags.IsStrategic)
	require.NotNil(t, b.Flags.DaysUntilDue)
	assert.Equal(t, 44, *b.Flags.DaysUntilDue)
	require.NotNil(t, b.Profit)
	assert.True(t, b.Profit.Sufficient())
}

func TestScore_FinalEqualsBasePlusComponents(t *testing.T) {
	pol := policy.Default()
	pol.Weights.Base = 3.333
	pol.Weights.CategoryCoreBonus = 12.5

	b := Score(rivertonRecord(), pol, scoredAt)

	sum := pol.Weights.Base
	for _, c := range b.Components {
		sum += c.Weight
	}
	assert.Equal(t, sum, b.Sum())
	assert.InDelta(t, sum, b.FinalScore, 0.005)
	assert.Equal(t, round(sum, 2), b.FinalScore)
}

func TestScore_IsDeterministic(t *testing.T) {
	pol := policy.Default()
	first, err := json.Marshal(Score(rivertonRecord(), pol, scoredAt))
	require.NoError(t, err)
	second, err := json.Marshal(Score(rivertonRecord(), pol, scoredAt))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestScore_EmptyRecordScoresBase(t *testing.T) {
	rec := models.ExtractedRecord{
		Title:            "empty.txt",
		Agency:           models.UnknownAgency,
		Source:           models.ManualUploadSource,
		Category:         models.GenericCategory,
		ScopeSummary:     models.NotParsed,
		SubmissionMethod: models.NotSpecified,
	}
	for _, base := range []float64{0, 7.5} {
		pol := policy.Default()
		pol.Weights.Base = base

		b := Score(rec, pol, scoredAt)
		assert.Empty(t, b.Components)
		assert.Equal(t, base, b.FinalScore)
		require.NotNil(t, b.Profit)
		assert.False(t, b.Profit.Sufficient())
	}
}

func TestScore_DueWindowBoundaries(t *testing.T) {
	pol := policy.Default()
	dueIn := func(days int) *string {
		s := scoredAt.AddDate(0, 0, days).Format("2006-01-02")
		return &s
	}
	cases := []struct {
		days int
		want string
	}{
		{pol.DueWindowDaysGood, DueWindowGood},
		{pol.DueWindowDaysGood - 1, ""},
		{pol.DueWindowDaysRush, ""},
		{pol.DueWindowDaysRush - 1, DueWindowRush},
		{-3, DueWindowRush},
	}
	for _, tc := range cases {
		b := Score(models.ExtractedRecord{DueDate: dueIn(tc.days)}, pol, scoredAt)
		names := componentNames(b)
		if tc.want == "" {
			assert.NotContains(t, names, DueWindowGood, "days=%d", tc.days)
			assert.NotContains(t, names, DueWindowRush, "days=%d", tc.days)
			continue
		}
		assert.Contains(t, names, tc.want, "days=%d", tc.days)
	}
}

func TestScore_JobSizeBuckets(t *testing.T) {
	pol := policy.Default()
	cases := []struct {
		name string
		rec  models.ExtractedRecord
		want []string
	}{
		{"budget at big minimum", models.ExtractedRecord{Budget: f64p(pol.BigJobBudgetMin)}, []string{BudgetBig}},
		{"area at big minimum", models.ExtractedRecord{AreaSqft: f64p(pol.BigJobSqftMin)}, []string{SqftBig}},
		{"big budget and area", models.ExtractedRecord{Budget: f64p(pol.BigJobBudgetMin), AreaSqft: f64p(pol.BigJobSqftMin)}, []string{BudgetBig, SqftBig}},
		{"big area with small budget", models.ExtractedRecord{Budget: f64p(20000), AreaSqft: f64p(120000)}, []string{SqftBig, BudgetSmall}},
		{"small budget", models.ExtractedRecord{Budget: f64p(pol.SmallJobBudgetMax - 1)}, []string{BudgetSmall}},
		{"zero budget", models.ExtractedRecord{Budget: f64p(0)}, []string{BudgetSmall}},
		{"budget at small maximum", models.ExtractedRecord{Budget: f64p(pol.SmallJobBudgetMax)}, nil},
		{"no budget", models.ExtractedRecord{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, name := range componentNames(Score(tc.rec, pol, scoredAt)) {
				switch name {
				case BudgetBig, SqftBig, BudgetSmall:
					got = append(got, name)
				}
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScore_BigAreaSmallBudgetAddsBoth(t *testing.T) {
	pol := policy.Default()
	b := Score(models.ExtractedRecord{Budget: f64p(20000), AreaSqft: f64p(120000)}, pol, scoredAt)

	weights := map[string]float64{}
	for _, c := range b.Components {
		weights[c.Name] = c.Weight
	}
	assert.Equal(t, pol.Weights.BudgetBigBonus, weights[SqftBig])
	assert.Equal(t, pol.Weights.BudgetSmallPenalty, weights[BudgetSmall])
	assert.Equal(t, round(b.Sum(), 2), b.FinalScore)
}

func TestScorer_ReusesPolicyDigest(t *testing.T) {
	pol := policy.Default()
	s := NewScorer(pol)
	assert.Equal(t, pol.Digest(), s.Digest())

	first := s.Score(rivertonRecord(), scoredAt)
	second := s.Score(models.ExtractedRecord{Title: "Toner"}, scoredAt)
	assert.Equal(t, s.Digest(), first.PolicyDigest)
	assert.Equal(t, s.Digest(), second.PolicyDigest)
	assert.Equal(t, Score(rivertonRecord(), pol, scoredAt), first)
}

func TestScore_KeywordPenaltiesMatchWholeWords(t *testing.T) {
	pol := policy.Default()

	b := Score(models.ExtractedRecord{Title: "Laptop and toner refresh", ScopeSummary: "Sole source award."}, pol, scoredAt)
	assert.Contains(t, componentNames(b), Commodity)
	assert.Contains(t, componentNames(b), Brandlock)

	b = Score(models.ExtractedRecord{Title: "Network monitoring services"}, pol, scoredAt)
	assert.NotContains(t, componentNames(b), Commodity)
}

func TestScore_CashflowTiers(t *testing.T) {
	pol := policy.Default()

	gov := Score(models.ExtractedRecord{CustomerType: strp("government")}, pol, scoredAt)
	assert.Contains(t, componentNames(gov), CashflowGov)
	assert.Contains(t, componentNames(gov), StrategicCustomer)

	hospital := Score(models.ExtractedRecord{CustomerType: strp("healthcare")}, pol, scoredAt)
	assert.Contains(t, componentNames(hospital), CashflowEnterprise)
	assert.NotContains(t, componentNames(hospital), StrategicCustomer)
}

func TestScore_StrategicByAgencyMarker(t *testing.T) {
	b := Score(models.ExtractedRecord{Agency: "Springfield Unified School District"}, policy.Default(), scoredAt)
	assert.True(t, b.Flags.IsStrategic)

	b = Score(models.ExtractedRecord{Agency: models.UnknownAgency, Source: models.ManualUploadSource}, policy.Default(), scoredAt)
	assert.False(t, b.Flags.IsStrategic)
}

func TestScore_ProfitComponents(t *testing.T) {
	pol := policy.Default()
	withMarkup := func(markup float64) *policy.Policy {
		p := policy.Default()
		p.Profit.Baselines = []policy.Baseline{{Category: "DAS", CostPerSqft: 4.5, Markup: markup}}
		return p
	}
	rec := models.ExtractedRecord{Category: "DAS / In-Building Cellular", Budget: f64p(100000)}

	strong := 1 / (1 - pol.Profit.StrongMargin - 0.05)
	thin := 1 / (1 - pol.Profit.ThinMargin + 0.05)
	between := 1 / (1 - (pol.Profit.ThinMargin+pol.Profit.StrongMargin)/2)

	assert.Contains(t, componentNames(Score(rec, withMarkup(strong), scoredAt)), ProfitStrong)
	assert.Contains(t, componentNames(Score(rec, withMarkup(thin), scoredAt)), ProfitThin)
	names := componentNames(Score(rec, withMarkup(between), scoredAt))
	assert.NotContains(t, names, ProfitStrong)
	assert.NotContains(t, names, ProfitThin)
}
