package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

func TestEstimateProfit_BudgetIsRevenue(t *testing.T) {
	cfg := policy.Default().Profit
	est := EstimateProfit(models.ExtractedRecord{Category: "DAS / In-Building Cellular", Budget: f64p(135000)}, cfg)

	require.True(t, est.Sufficient())
	assert.Equal(t, 135000.0, *est.Revenue)
	assert.Equal(t, 100000.0, *est.Cost)
	assert.InDelta(t, 35000.0/135000.0, *est.MarginRatio, 1e-9)
	assert.Equal(t, "DAS", est.Baseline)
	assert.Contains(t, est.Note, "strong margin")
}

func TestEstimateProfit_UnitProxies(t *testing.T) {
	cfg := policy.Default().Profit

	area := EstimateProfit(models.ExtractedRecord{Category: "DAS / In-Building Cellular", AreaSqft: f64p(10000)}, cfg)
	require.True(t, area.Sufficient())
	assert.Equal(t, 45000.0, *area.Cost)
	assert.Equal(t, 60750.0, *area.Revenue)

	lines := EstimateProfit(models.ExtractedRecord{Category: "POTS Replacement / Analog Modernization", LineCount: intp(50)}, cfg)
	require.True(t, lines.Sufficient())
	assert.Equal(t, 6000.0, *lines.Cost)
	assert.Equal(t, 9000.0, *lines.Revenue)
}

func TestEstimateProfit_InsufficientData(t *testing.T) {
	cfg := policy.Default().Profit
	cases := []models.ExtractedRecord{
		{Category: models.GenericCategory, Budget: f64p(50000)},
		{Category: "DAS / In-Building Cellular"},
		{Category: "DAS / In-Building Cellular", LineCount: intp(10)},
		{Category: "DAS / In-Building Cellular", Budget: f64p(0)},
	}
	for _, rec := range cases {
		est := EstimateProfit(rec, cfg)
		assert.False(t, est.Sufficient(), "%+v", rec)
		assert.Nil(t, est.Revenue)
		assert.Equal(t, insufficientData, est.Note)
	}
}
