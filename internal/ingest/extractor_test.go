package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
	"github.com/david/bidsense/internal/scoring"
)

const rivertonRFP = "RFP 25-014\nCity of Riverton\nDue Date: 10/15/2025\n" +
	"Scope of Work: Install a distributed antenna system across City Hall.\nBudget: $300,000"

func TestExtract_Riverton(t *testing.T) {
	pol := policy.Default()
	rec := Extract(rivertonRFP, "riverton.pdf", pol.Extraction)

	require.NotNil(t, rec.ExternalID)
	assert.Equal(t, "RFP 25-014", *rec.ExternalID)
	assert.Equal(t, "RFP 25-014", rec.Title)
	assert.Equal(t, "City of Riverton", rec.Agency)
	require.NotNil(t, rec.DueDate)
	assert.Equal(t, "10/15/2025", *rec.DueDate)
	assert.Equal(t, CategoryDAS, rec.Category)
	require.NotNil(t, rec.Budget)
	assert.Equal(t, 300000.0, *rec.Budget)
	require.NotNil(t, rec.CustomerType)
	assert.Equal(t, "government", *rec.CustomerType)
	assert.Contains(t, rec.ScopeSummary, "Install a distributed antenna system")
	assert.Equal(t, []string{"DAS / Neutral Host"}, rec.TechRequirements)
	assert.Equal(t, models.ManualUploadSource, rec.Source)

	now := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	score := scoring.Score(rec, pol, now)
	names := make([]string, 0, len(score.Components))
	for _, c := range score.Components {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, scoring.CategoryCore)
	assert.Contains(t, names, scoring.StrategicCustomer)
}

func TestExtract_EmptyTextUsesSentinels(t *testing.T) {
	rec := Extract("", "uploads/empty.txt", policy.Default().Extraction)

	assert.Equal(t, "empty.txt", rec.Title)
	assert.Equal(t, models.UnknownAgency, rec.Agency)
	assert.Equal(t, CategoryFallback, rec.Category)
	assert.Equal(t, models.NotSpecified, rec.SubmissionMethod)
	assert.Equal(t, models.PreBidNA, rec.PreBidRequired)
	assert.Equal(t, models.NotParsed, rec.ScopeSummary)
	assert.Equal(t, models.NotMentioned, rec.Bonding)
	assert.Equal(t, models.SetAsideNone, rec.SetAside)
	assert.Nil(t, rec.DueDate)
	assert.Nil(t, rec.Budget)
	assert.Nil(t, rec.CustomerType)

	fields := rec.Fields()
	for _, name := range models.FieldNames {
		assert.Contains(t, fields, name)
	}
}

func TestExtract_TitleFallbacks(t *testing.T) {
	opts := policy.Default().Extraction

	rec := Extract("Project Title: Elevator Emergency Phone Upgrade\nCity of Mesa", "x.pdf", opts)
	assert.Equal(t, "Elevator Emergency Phone Upgrade", rec.Title)

	rec = Extract("", "", opts)
	assert.Equal(t, DefaultTitle, rec.Title)
}

func TestClassify_Priority(t *testing.T) {
	cases := map[string]string{
		"DAS coverage with Wi-Fi access points":   CategoryDAS,
		"POTS replacement with VoIP handsets":     CategoryPOTS,
		"SIP trunking for the county":             CategoryVoIP,
		"Parking lot cameras and ALPR":            CategoryCCTV,
		"Dell PowerEdge servers":                  CategoryServer,
		"Campus Wi-Fi refresh":                    CategoryNetwork,
		"Janitorial services for the data center": CategoryFallback,
	}
	for text, want := range cases {
		assert.Equal(t, want, Classify(text), text)
	}
	assert.Equal(t, CategoryFallback, Categories()[len(Categories())-1])
}

func TestExtractContacts_OrderAndDedup(t *testing.T) {
	text := "Contact jane@city.gov or (555) 123-4567. Alternate: bob@city.gov, 555-123-4567 or Jane@City.gov."
	assert.Equal(t,
		[]string{"jane@city.gov", "(555) 123-4567", "bob@city.gov", "555-123-4567"},
		extractContacts(text))
}

func TestExtractPreBid(t *testing.T) {
	markers := policy.Default().Extraction.PreBidMandatoryMarkers

	fragment, required := extractPreBid("A mandatory pre-bid meeting will be held on 9/10/2025.", markers)
	require.NotNil(t, fragment)
	assert.Equal(t, "mandatory pre-bid meeting will be held on 9/10/2025", *fragment)
	assert.Equal(t, models.PreBidMandatory, required)

	fragment, required = extractPreBid("A non-mandatory pre-bid conference is scheduled.", markers)
	require.NotNil(t, fragment)
	assert.Equal(t, models.PreBidOptional, required)

	fragment, required = extractPreBid("Submit sealed bids to the clerk.", markers)
	assert.Nil(t, fragment)
	assert.Equal(t, models.PreBidNA, required)
}

func TestMarkerPatternIsCompiledOnce(t *testing.T) {
	first := markerPattern("walk-through")
	assert.Same(t, first, markerPattern("walk-through"))
	assert.NotSame(t, first, markerPattern("mandatory"))

	assert.True(t, hasUnnegatedWord("site walk-through required", "walk-through"))
	assert.False(t, hasUnnegatedWord("not walk-through", "walk-through"))
	assert.True(t, hasUnnegatedWord("non-mandatory briefing, then a mandatory walk", "mandatory"))
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
	}{
		{"300,000", f64(300000)},
		{"$1.2 million", f64(1200000)},
		{"45K", f64(45000)},
		{"2,500.50", f64(2500.50)},
		{"30,00", nil},
		{"1,2.3.4", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := parseMoney(tc.in)
		if tc.want == nil {
			assert.Nil(t, got, tc.in)
			continue
		}
		require.NotNil(t, got, tc.in)
		assert.InDelta(t, *tc.want, *got, 0.001, tc.in)
	}
}

func TestExtractBudget_FirstDollarAmount(t *testing.T) {
	text := "Bond of $5,000 required. Estimated value: $750,000."

	got := extractBudget(text, false)
	require.NotNil(t, got)
	assert.Equal(t, 5000.0, *got)

	got = extractBudget(text, true)
	require.NotNil(t, got)
	assert.Equal(t, 750000.0, *got)

	got = extractBudget("Not to exceed 40,000 for the base year.", true)
	require.NotNil(t, got)
	assert.Equal(t, 40000.0, *got)

	assert.Nil(t, extractBudget("Not to exceed 40,000 for the base year.", false))
	assert.Nil(t, extractBudget("No pricing information.", false))
	assert.Nil(t, extractBudget("No pricing information.", true))
}

func TestExtract_BondAmountDrivesSmallJobPenalty(t *testing.T) {
	pol := policy.Default()
	rec := Extract("Bid bond of $5,000 required.\nBudget: $300,000", "bond.pdf", pol.Extraction)
	require.NotNil(t, rec.Budget)
	assert.Equal(t, 5000.0, *rec.Budget)

	var names []string
	for _, c := range scoring.Score(rec, pol, time.Now()).Components {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, scoring.BudgetSmall)
	assert.NotContains(t, names, scoring.BudgetBig)

	opts := pol.Extraction
	opts.BudgetPreferLabelled = true
	rec = Extract("Bid bond of $5,000 required.\nBudget: $300,000", "bond.pdf", opts)
	require.NotNil(t, rec.Budget)
	assert.Equal(t, 300000.0, *rec.Budget)
}

func TestExtractAgency(t *testing.T) {
	cases := map[string]string{
		"Issued by the County of Marin\nPurchasing":                "County of Marin",
		"Los Angeles Unified School District seeks proposals":      "Los Angeles Unified School District",
		"Prepared for the Department of Transportation.":           "Department of Transportation",
		"City of Springfield and the County of Shelby":             "City of Springfield",
		"no agency is named anywhere in this lower-case paragraph": models.UnknownAgency,
	}
	for text, want := range cases {
		assert.Equal(t, want, extractAgency(text), text)
	}
}

func TestFingerprints(t *testing.T) {
	id := "RFP 25-014"
	a := DocumentFingerprint(models.ExtractedRecord{Title: "Riverton  DAS", Agency: "City of Riverton", ExternalID: &id})
	b := DocumentFingerprint(models.ExtractedRecord{Title: "riverton das", Agency: "CITY OF RIVERTON", ExternalID: &id})
	assert.Equal(t, a, b)

	other := "RFP 25-015"
	c := DocumentFingerprint(models.ExtractedRecord{Title: "Riverton DAS", Agency: "City of Riverton", ExternalID: &other})
	assert.NotEqual(t, a, c)

	assert.Equal(t,
		ListingFingerprint("sam", "W912", "https://a.example/1", "t"),
		ListingFingerprint("sam", "W912", "https://b.example/2", "other"))
	assert.NotEqual(t,
		ListingFingerprint("sam", "", "https://a.example/1", "t"),
		ListingFingerprint("sam", "", "https://b.example/2", "t"))
}

func f64(v float64) *float64 { return &v }
