package models

import "time"

// Component is one scoring rule that fired.
type Component struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ScoreFlags are the facts the scoring rules were evaluated against.
type ScoreFlags struct {
	IsCore         bool `json:"is_core"`
	IsStrategic    bool `json:"is_strategic"`
	DaysUntilDue   *int `json:"days_until_due"`
	CommodityHit   bool `json:"commodity_hit"`
	BrandlockHit   bool `json:"brandlock_hit"`
	LowCompetition bool `json:"low_competition"`
}

// ScoreInputs echoes the record values that fed the score.
type ScoreInputs struct {
	Category     string   `json:"category"`
	Agency       string   `json:"agency"`
	CustomerType *string  `json:"customer_type"`
	DueDate      *string  `json:"due_date"`
	Budget       *float64 `json:"budget"`
	AreaSqft     *float64 `json:"area_sqft"`
	LineCount    *int     `json:"line_count"`
}

// ProfitEstimate is nil-valued with a note when there was not enough data.
type ProfitEstimate struct {
	Revenue     *float64 `json:"revenue"`
	Cost        *float64 `json:"cost"`
	MarginRatio *float64 `json:"margin_ratio"`
	Baseline    string   `json:"baseline,omitempty"`
	Note        string   `json:"note"`
}

// Sufficient reports whether a margin could be computed.
func (p ProfitEstimate) Sufficient() bool {
	return p.MarginRatio != nil
}

// ScoreBreakdown is the itemized result of scoring one record.
type ScoreBreakdown struct {
	Base         float64         `json:"base"`
	Components   []Component     `json:"components"`
	FinalScore   float64         `json:"final_score"`
	Flags        ScoreFlags      `json:"flags"`
	Inputs       ScoreInputs     `json:"inputs"`
	Profit       *ProfitEstimate `json:"profit_estimate"`
	PolicyDigest string          `json:"policy_digest"`
}

// Sum is base plus every component weight, unrounded.
func (b ScoreBreakdown) Sum() float64 {
	total := b.Base
	for _, c := range b.Components {
		total += c.Weight
	}
	return total
}

// Tier is one of the three ordered triage outcomes.
type Tier string

const (
	TierSelect Tier = "Select to Bid"
	TierHold   Tier = "Hold"
	TierIgnore Tier = "Ignore"
)

// Rank orders tiers from most (2) to least (0) favourable; unknown tiers are -1.
func (t Tier) Rank() int {
	switch t {
	case TierSelect:
		return 2
	case TierHold:
		return 1
	case TierIgnore:
		return 0
	}
	return -1
}

func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

const (
	ActorAuto  = "auto"
	ActorHuman = "human"
)

type Decision struct {
	Tier      Tier      `json:"decision"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor"`
	DecidedAt time.Time `json:"decided_at"`
}
