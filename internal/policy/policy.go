// Package policy holds the scoring, decision and extraction configuration.
// A Policy is built once per batch and is read-only afterwards.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

type Weights struct {
	Base                    float64 `yaml:"base" json:"base"`
	CategoryCoreBonus       float64 `yaml:"category_core_bonus" json:"category_core_bonus"`
	StrategicCustomerBonus  float64 `yaml:"strategic_customer_bonus" json:"strategic_customer_bonus"`
	LessCompetitionBonus    float64 `yaml:"less_competition_bonus" json:"less_competition_bonus"`
	CommodityPenalty        float64 `yaml:"commodity_penalty" json:"commodity_penalty"`
	BrandlockPenalty        float64 `yaml:"brandlock_penalty" json:"brandlock_penalty"`
	DueWindowGood           float64 `yaml:"due_window_good" json:"due_window_good"`
	DueWindowRush           float64 `yaml:"due_window_rush" json:"due_window_rush"`
	BudgetBigBonus          float64 `yaml:"budget_big_bonus" json:"budget_big_bonus"`
	BudgetSmallPenalty      float64 `yaml:"budget_small_penalty" json:"budget_small_penalty"`
	CashflowGovBonus        float64 `yaml:"cashflow_gov_bonus" json:"cashflow_gov_bonus"`
	CashflowEnterpriseBonus float64 `yaml:"cashflow_enterprise_bonus" json:"cashflow_enterprise_bonus"`
	ProfitStrongBonus       float64 `yaml:"profit_strong_bonus" json:"profit_strong_bonus"`
	ProfitThinPenalty       float64 `yaml:"profit_thin_penalty" json:"profit_thin_penalty"`
}

// Thresholds split scores into the three decision tiers. HoldMin must be
// strictly below AutoSelect.
type Thresholds struct {
	AutoSelect float64 `yaml:"auto_select" json:"auto_select"`
	HoldMin    float64 `yaml:"hold_min" json:"hold_min"`
}

// OverrideRule forces a decision when the title or category contains the
// given substrings (case-insensitive). Both set means both must match.
type OverrideRule struct {
	MatchTitle    string `yaml:"match_title" json:"match_title"`
	MatchCategory string `yaml:"match_category" json:"match_category"`
	Decision      string `yaml:"decision" json:"decision"`
	Reason        string `yaml:"reason" json:"reason"`
}

// Baseline is the unit cost table for categories containing Category.
type Baseline struct {
	Category    string  `yaml:"category" json:"category"`
	CostPerSqft float64 `yaml:"cost_per_sqft" json:"cost_per_sqft"`
	CostPerLine float64 `yaml:"cost_per_line" json:"cost_per_line"`
	Markup      float64 `yaml:"markup" json:"markup"`
}

type Profit struct {
	StrongMargin float64    `yaml:"strong_margin" json:"strong_margin"`
	ThinMargin   float64    `yaml:"thin_margin" json:"thin_margin"`
	Baselines    []Baseline `yaml:"baselines" json:"baselines"`
}

type Extraction struct {
	PreBidMandatoryMarkers []string `yaml:"prebid_mandatory_markers" json:"prebid_mandatory_markers"`
	ScopeMaxChars          int      `yaml:"scope_max_chars" json:"scope_max_chars"`
	TitleMaxChars          int      `yaml:"title_max_chars" json:"title_max_chars"`
	// BudgetPreferLabelled takes an amount under a budget, estimated value
	// or not-to-exceed label ahead of the first dollar amount.
	BudgetPreferLabelled bool `yaml:"budget_prefer_labelled" json:"budget_prefer_labelled"`
}

type Policy struct {
	Weights    Weights    `yaml:"weights" json:"weights"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`

	CoreCategories          []string `yaml:"core_categories" json:"core_categories"`
	CoreTitleKeywords       []string `yaml:"core_title_keywords" json:"core_title_keywords"`
	StrategicCustomerTypes  []string `yaml:"strategic_customer_types" json:"strategic_customer_types"`
	StrategicAgencyMarkers  []string `yaml:"strategic_agency_markers" json:"strategic_agency_markers"`
	EnterpriseCustomerTypes []string `yaml:"enterprise_customer_types" json:"enterprise_customer_types"`
	CommodityKeywords       []string `yaml:"commodity_keywords" json:"commodity_keywords"`
	BrandlockKeywords       []string `yaml:"brandlock_keywords" json:"brandlock_keywords"`
	LessCompetitionKeywords []string `yaml:"less_competition_keywords" json:"less_competition_keywords"`

	DueWindowDaysGood int     `yaml:"due_window_days_good" json:"due_window_days_good"`
	DueWindowDaysRush int     `yaml:"due_window_days_rush" json:"due_window_days_rush"`
	BigJobBudgetMin   float64 `yaml:"big_job_budget_min" json:"big_job_budget_min"`
	BigJobSqftMin     float64 `yaml:"big_job_sqft_min" json:"big_job_sqft_min"`
	SmallJobBudgetMax float64 `yaml:"small_job_budget_max" json:"small_job_budget_max"`

	Profit        Profit         `yaml:"profit" json:"profit"`
	OverrideRules []OverrideRule `yaml:"auto_approval_rules" json:"auto_approval_rules"`
	Extraction    Extraction     `yaml:"extraction" json:"extraction"`
}

// Default returns a fresh copy of the compiled-in policy.
func Default() *Policy {
	return &Policy{
		Weights: Weights{
			Base:                    0,
			CategoryCoreBonus:       30,
			StrategicCustomerBonus:  20,
			LessCompetitionBonus:    10,
			CommodityPenalty:        -25,
			BrandlockPenalty:        -15,
			DueWindowGood:           10,
			DueWindowRush:           -10,
			BudgetBigBonus:          25,
			BudgetSmallPenalty:      -10,
			CashflowGovBonus:        15,
			CashflowEnterpriseBonus: 5,
			ProfitStrongBonus:       10,
			ProfitThinPenalty:       -10,
		},
		Thresholds: Thresholds{AutoSelect: 70, HoldMin: 50},
		CoreCategories: []string{
			"DAS", "RTL", "POTS", "POTS/Telephony",
			"Elevators/Emergency Phones", "Fire Alarm Monitoring",
		},
		CoreTitleKeywords: []string{"distributed antenna", "das", "pots", "elevator", "fire alarm"},
		StrategicCustomerTypes: []string{
			"gov", "government", "edu", "education", "mil", "military",
			"federal", "state", "local",
		},
		StrategicAgencyMarkers: []string{
			".gov", ".edu", ".mil", "county", "city of", "unified school",
			"school district", "usd", "state of ", "department of",
		},
		EnterpriseCustomerTypes: []string{"enterprise", "healthcare", "hospital", "payer", "provider"},
		CommodityKeywords: []string{
			"laptop", "notebook", "desktop", "printer", "toner", "monitor",
			"keyboard", "mouse", "chromebook", "pc refresh", "end user device",
			"office supplies", "copier",
		},
		BrandlockKeywords: []string{
			"sole source", "only brand", "brand x only", "pre-qualified vendor",
			"prequalified vendor", "authorized reseller only", "incumbent only",
			"must be oem",
		},
		LessCompetitionKeywords: []string{
			"distributed antenna system", "public safety das", "bdas",
			"bi-directional amplifier", "pots replacement", "fxs",
			"analog lines replacement", "emergency phone", "elevator phone",
			"fire alarm communicator", "ng911", "lmr", "rf engineering",
			"lmr600", "lmr400",
		},
		DueWindowDaysGood: 20,
		DueWindowDaysRush: 10,
		BigJobBudgetMin:   250000,
		BigJobSqftMin:     100000,
		SmallJobBudgetMax: 25000,
		Profit: Profit{
			StrongMargin: 0.25,
			ThinMargin:   0.10,
			Baselines: []Baseline{
				{Category: "DAS", CostPerSqft: 4.50, Markup: 1.35},
				{Category: "RTL", CostPerLine: 120, Markup: 1.50},
				{Category: "POTS", CostPerLine: 120, Markup: 1.50},
			},
		},
		Extraction: Extraction{
			PreBidMandatoryMarkers: []string{"mandatory"},
			ScopeMaxChars:          600,
			TitleMaxChars:          120,
		},
	}
}

// Digest identifies the effective policy; two policies with the same digest
// score identically.
func (p *Policy) Digest() string {
	payload, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
