package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Less(t, p.Thresholds.HoldMin, p.Thresholds.AutoSelect)
	assert.Equal(t, Default().Digest(), p.Digest())
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Digest(), p.Digest())
}

func TestParsePartialOverrideKeepsDefaults(t *testing.T) {
	p, err := Parse([]byte(`
thresholds:
  auto_select: 80
  hold_min: 40
commodity_keywords: [toner]
auto_approval_rules:
  - match_title: "Riverton"
    decision: "Select to Bid"
    reason: "strategic account"
`))
	require.NoError(t, err)

	assert.Equal(t, 80.0, p.Thresholds.AutoSelect)
	assert.Equal(t, 40.0, p.Thresholds.HoldMin)
	assert.Equal(t, []string{"toner"}, p.CommodityKeywords)
	assert.Equal(t, Default().Weights, p.Weights)
	assert.Equal(t, Default().CoreCategories, p.CoreCategories)
	require.Len(t, p.OverrideRules, 1)
	assert.NotEqual(t, Default().Digest(), p.Digest())
}

func TestParseAcceptsJSON(t *testing.T) {
	p, err := Parse([]byte(`{"thresholds": {"auto_select": 65, "hold_min": 45}, "due_window_days_good": 30}`))
	require.NoError(t, err)
	assert.Equal(t, 65.0, p.Thresholds.AutoSelect)
	assert.Equal(t, 30, p.DueWindowDaysGood)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"inverted thresholds", "thresholds:\n  auto_select: 40\n  hold_min: 60\n"},
		{"equal thresholds", "thresholds:\n  auto_select: 50\n  hold_min: 50\n"},
		{"missing threshold", "thresholds:\n  auto_select: 70\n"},
		{"missing weight key", "weights:\n  base: 0\n  category_core_bonus: 30\n"},
		{"wrong weight type", "thresholds:\n  auto_select: high\n  hold_min: 50\n"},
		{"unknown key", "threshold:\n  auto_select: 70\n  hold_min: 50\n"},
		{"list of numbers", "commodity_keywords: [1, 2]\n"},
		{"rule without match", "auto_approval_rules:\n  - decision: Hold\n"},
		{"rule with unknown tier", "auto_approval_rules:\n  - match_title: x\n    decision: Maybe\n"},
		{"non-positive markup", "profit:\n  strong_margin: 0.25\n  thin_margin: 0.1\n  baselines:\n    - category: DAS\n      markup: 0\n"},
		{"inverted margins", "profit:\n  strong_margin: 0.1\n  thin_margin: 0.2\n"},
		{"rush window beyond good", "due_window_days_good: 5\ndue_window_days_rush: 10\n"},
		{"not a mapping", "- a\n- b\n"},
		{"empty", ""},
		{"broken yaml", "weights: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
			assert.Nil(t, p)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	p := Default()
	p.Thresholds = Thresholds{AutoSelect: 10, HoldMin: 20}
	p.Profit.ThinMargin = 0.5

	err := p.Validate()
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Contains(t, err.Error(), "hold_min")
	assert.Contains(t, err.Error(), "thin_margin")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("big_job_budget_min: 500000\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500000.0, p.BigJobBudgetMin)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPolicy)
}

func TestExamplePolicyLoads(t *testing.T) {
	p, err := Load(filepath.Join("..", "..", "configs", "policy.example.yaml"))
	require.NoError(t, err)
	require.Len(t, p.OverrideRules, 2)
	assert.Equal(t, "Select to Bid", p.OverrideRules[0].Decision)
	assert.Equal(t, []string{"mandatory", "required"}, p.Extraction.PreBidMandatoryMarkers)
	assert.Equal(t, Default().Weights, p.Weights)
	assert.Contains(t, p.WeightTable(), "category_core_bonus")
}
