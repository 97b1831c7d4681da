package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

const insufficientData = "insufficient data"

// EstimateProfit projects revenue, cost and margin for a record from the
// category baseline. A budget is taken as revenue; otherwise the square
// footage or line count is costed and marked up. Without a baseline or any
// usable quantity the estimate is returned with only a note.
func EstimateProfit(rec models.ExtractedRecord, cfg policy.Profit) models.ProfitEstimate {
	baseline, ok := baselineFor(rec.Category, cfg.Baselines)
	if !ok || !(baseline.Markup > 0) {
		return models.ProfitEstimate{Note: insufficientData}
	}

	var revenue, cost float64
	switch {
	case rec.Budget != nil && *rec.Budget > 0:
		revenue = *rec.Budget
		cost = revenue / baseline.Markup
	case rec.AreaSqft != nil && *rec.AreaSqft > 0 && baseline.CostPerSqft > 0:
		cost = baseline.CostPerSqft * *rec.AreaSqft
		revenue = cost * baseline.Markup
	case rec.LineCount != nil && *rec.LineCount > 0 && baseline.CostPerLine > 0:
		cost = baseline.CostPerLine * float64(*rec.LineCount)
		revenue = cost * baseline.Markup
	default:
		return models.ProfitEstimate{Baseline: baseline.Category, Note: insufficientData}
	}

	margin := (revenue - cost) / revenue
	est := models.ProfitEstimate{
		Revenue:     ptr(round(revenue, 2)),
		Cost:        ptr(round(cost, 2)),
		MarginRatio: ptr(margin),
		Baseline:    baseline.Category,
	}
	pct := math.Round(margin * 100)
	switch {
	case margin >= cfg.StrongMargin:
		est.Note = fmt.Sprintf("strong margin ~%.0f%%", pct)
	case margin < cfg.ThinMargin:
		est.Note = fmt.Sprintf("thin margin ~%.0f%%", pct)
	default:
		est.Note = fmt.Sprintf("margin ~%.0f%%", pct)
	}
	return est
}

// baselineFor returns the first baseline whose key occurs in the category.
func baselineFor(category string, baselines []policy.Baseline) (policy.Baseline, bool) {
	upper := strings.ToUpper(category)
	for _, b := range baselines {
		key := strings.ToUpper(strings.TrimSpace(b.Category))
		if key != "" && strings.Contains(upper, key) {
			return b, true
		}
	}
	return policy.Baseline{}, false
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func ptr[T any](v T) *T {
	return &v
}
