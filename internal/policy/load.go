package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/david/bidsense/internal/models"
)

// ErrInvalidPolicy wraps every rejection of a policy document.
var ErrInvalidPolicy = errors.New("invalid policy")

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Load reads a YAML or JSON policy document. An empty path returns the
// compiled-in defaults.
func Load(path string) (*Policy, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse validates data against the policy schema and overlays it on the
// defaults. Keys absent from data keep their default values.
func Parse(data []byte) (*Policy, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed document: %v", ErrInvalidPolicy, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidPolicy)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidPolicy, err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(problems, "; "))
	}

	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the semantic constraints the schema cannot express. All
// problems are reported together.
func (p *Policy) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	weights := p.WeightTable()
	weightsNames := make([]string, 0, len(weights))
	for name := range weights {
		weightsNames = append(weightsNames, name)
	}
	slices.Sort(weightsNames)
	for _, name := range weightsNames {
		if w := weights[name]; math.IsNaN(w) || math.IsInf(w, 0) {
			add("weight %s must be finite", name)
		}
	}
	limits := map[string]float64{
		"thresholds.auto_select": p.Thresholds.AutoSelect,
		"thresholds.hold_min":    p.Thresholds.HoldMin,
		"profit.strong_margin":   p.Profit.StrongMargin,
		"profit.thin_margin":     p.Profit.ThinMargin,
		"big_job_budget_min":     p.BigJobBudgetMin,
		"big_job_sqft_min":       p.BigJobSqftMin,
		"small_job_budget_max":   p.SmallJobBudgetMax,
	}
	limitsNames := make([]string, 0, len(limits))
	for name := range limits {
		limitsNames = append(limitsNames, name)
	}
	slices.Sort(limitsNames)
	for _, name := range limitsNames {
		if v := limits[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			add("%s must be finite", name)
		}
	}

	if !(p.Thresholds.HoldMin < p.Thresholds.AutoSelect) {
		add("thresholds.hold_min (%v) must be below thresholds.auto_select (%v)",
			p.Thresholds.HoldMin, p.Thresholds.AutoSelect)
	}
	if p.DueWindowDaysRush > p.DueWindowDaysGood {
		add("due_window_days_rush (%d) must not exceed due_window_days_good (%d)",
			p.DueWindowDaysRush, p.DueWindowDaysGood)
	}
	if !(p.Profit.ThinMargin < p.Profit.StrongMargin) {
		add("profit.thin_margin (%v) must be below profit.strong_margin (%v)",
			p.Profit.ThinMargin, p.Profit.StrongMargin)
	}
	for i, b := range p.Profit.Baselines {
		if !(b.Markup > 0) || math.IsInf(b.Markup, 0) {
			add("profit.baselines[%d] (%s): markup must be positive", i, b.Category)
		}
	}
	for i, r := range p.OverrideRules {
		if strings.TrimSpace(r.MatchTitle) == "" && strings.TrimSpace(r.MatchCategory) == "" {
			add("auto_approval_rules[%d]: match_title or match_category is required", i)
		}
		if !models.Tier(r.Decision).Valid() {
			add("auto_approval_rules[%d]: unknown decision %q", i, r.Decision)
		}
	}
	if p.Extraction.ScopeMaxChars <= 0 || p.Extraction.TitleMaxChars <= 0 {
		add("extraction windows must be positive")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPolicy, errors.Join(errs...))
}

// WeightTable maps each weight key to its value.
func (p *Policy) WeightTable() map[string]float64 {
	w := p.Weights
	return map[string]float64{
		"base":                      w.Base,
		"category_core_bonus":       w.CategoryCoreBonus,
		"strategic_customer_bonus":  w.StrategicCustomerBonus,
		"less_competition_bonus":    w.LessCompetitionBonus,
		"commodity_penalty":         w.CommodityPenalty,
		"brandlock_penalty":         w.BrandlockPenalty,
		"due_window_good":           w.DueWindowGood,
		"due_window_rush":           w.DueWindowRush,
		"budget_big_bonus":          w.BudgetBigBonus,
		"budget_small_penalty":      w.BudgetSmallPenalty,
		"cashflow_gov_bonus":        w.CashflowGovBonus,
		"cashflow_enterprise_bonus": w.CashflowEnterpriseBonus,
		"profit_strong_bonus":       w.ProfitStrongBonus,
		"profit_thin_penalty":       w.ProfitThinPenalty,
	}
}
