package ingest

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

// DefaultTitle is the title of last resort when neither the text nor the
// caller supplies one.
const DefaultTitle = "Uploaded RFP"

// titleSearchWindow bounds how far into a document title headings are looked for.
const titleSearchWindow = 2000

// Extract recovers the structured fields of a solicitation from normalized
// text. It always returns a complete record: fields that cannot be found are
// nil or carry their sentinel. fallbackTitle, usually the file name, is used
// when the text yields no title at all.
func Extract(text, fallbackTitle string, opts policy.Extraction) models.ExtractedRecord {
	lower := strings.ToLower(text)

	rec := models.ExtractedRecord{
		ExternalID:       extractIdentifier(text),
		Agency:           extractAgency(text),
		Source:           models.ManualUploadSource,
		IssueDate:        findPtr(issueDateRules, text),
		DueDate:          findPtr(dueDateRules, text),
		QADeadline:       findPtr(qaDeadlineRules, text),
		Budget:           extractBudget(text, opts.BudgetPreferLabelled),
		AreaSqft:         extractArea(text),
		LineCount:        extractLineCount(text),
		Contacts:         extractContacts(text),
		SubmissionMethod: extractSubmissionMethod(lower),
		SetAside:         extractSetAside(text),
		Bonding:          presence(bondingPattern, text),
		Insurance:        presence(insurancePattern, text),
		ScopeSummary:     extractScope(text, opts.ScopeMaxChars),
		TechRequirements: extractTechTags(text),
	}
	rec.Title = extractTitle(text, fallbackTitle, rec.ExternalID, opts.TitleMaxChars)
	rec.PreBid, rec.PreBidRequired = extractPreBid(text, opts.PreBidMandatoryMarkers)
	rec.CustomerType = CustomerTypeFor(rec.Agency)
	rec.Category = Classify(text)
	return rec
}

func findPtr(c cascade, text string) *string {
	if v, ok := c.find(text); ok {
		return &v
	}
	return nil
}

func extractIdentifier(text string) *string {
	v, ok := identifierRules.find(text)
	if !ok {
		return nil
	}
	v = strings.TrimRight(v, ".-/#")
	if v == "" {
		return nil
	}
	return &v
}

func extractTitle(text, fallbackTitle string, externalID *string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 120
	}
	head := text
	if len(head) > titleSearchWindow {
		head = strings.ToValidUTF8(head[:titleSearchWindow], "")
	}
	if v, ok := titleHeadingRules.find(head); ok {
		return TruncateText(normalizeSpace(v), maxChars)
	}
	for _, line := range strings.Split(text, "\n") {
		if line = normalizeSpace(line); line != "" {
			return TruncateText(line, maxChars)
		}
	}
	if externalID != nil {
		return *externalID
	}
	if name := strings.TrimSpace(baseName(fallbackTitle)); name != "" {
		return name
	}
	return DefaultTitle
}

var trailingConnector = regexp.MustCompile(`(?:\s+(?:of|the|and))+$`)

func extractAgency(text string) string {
	v, ok := agencyRules.find(text)
	if !ok {
		return models.UnknownAgency
	}
	v = strings.TrimRight(v, ".,;:'-")
	v = trailingConnector.ReplaceAllString(v, "")
	if v == "" {
		return models.UnknownAgency
	}
	return v
}

// CustomerTypeFor derives the buyer family from an agency name. It returns
// nil for the unknown-agency sentinel and for names no family recognizes.
func CustomerTypeFor(agency string) *string {
	if agency == "" || agency == models.UnknownAgency {
		return nil
	}
	for _, f := range customerTypeFamilies {
		if f.re.MatchString(agency) {
			label := f.label
			return &label
		}
	}
	return nil
}

// extractBudget takes the first dollar amount in the text, or with
// preferLabelled the first labelled amount. An amount that does not parse
// is nil; later rules are not consulted.
func extractBudget(text string, preferLabelled bool) *float64 {
	rules := budgetRules
	if preferLabelled {
		rules = labelledBudgetRules
	}
	v, ok := rules.find(text)
	if !ok {
		return nil
	}
	return parseMoney(v)
}

func extractArea(text string) *float64 {
	v, ok := areaRules.find(text)
	if !ok {
		return nil
	}
	area := parseMoney(v)
	if area == nil || *area <= 0 {
		return nil
	}
	return area
}

func extractLineCount(text string) *int {
	v, ok := lineCountRules.find(text)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

type contactMatch struct {
	pos   int
	value string
}

// extractContacts returns every email and phone number in order of first
// appearance, without duplicates.
func extractContacts(text string) []string {
	var matches []contactMatch
	for _, loc := range emailRegex.FindAllStringIndex(text, -1) {
		matches = append(matches, contactMatch{loc[0], strings.TrimRight(text[loc[0]:loc[1]], ".")})
	}
	for _, loc := range phoneRegex.FindAllStringIndex(text, -1) {
		matches = append(matches, contactMatch{loc[0], text[loc[0]:loc[1]]})
	}
	sortContacts(matches)

	var out []string
	for _, m := range matches {
		out = appendUnique(out, m.value)
	}
	return out
}

func sortContacts(matches []contactMatch) {
	slices.SortStableFunc(matches, func(a, b contactMatch) int {
		return cmp.Compare(a.pos, b.pos)
	})
}

func extractSubmissionMethod(lower string) string {
	for _, entry := range submissionVocabulary {
		for _, needle := range entry.needles {
			if strings.Contains(lower, needle) {
				return entry.label
			}
		}
	}
	return models.NotSpecified
}

// extractPreBid returns the pre-bid fragment and whether attendance is
// mandatory. A marker preceded by a negation ("non-mandatory", "not
// mandatory") does not count.
func extractPreBid(text string, markers []string) (*string, string) {
	fragment, ok := preBidRules.find(text)
	if !ok {
		return nil, models.PreBidNA
	}
	fragment = normalizeSpace(fragment)
	lower := strings.ToLower(fragment)
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" && hasUnnegatedWord(lower, marker) {
			return &fragment, models.PreBidMandatory
		}
	}
	return &fragment, models.PreBidOptional
}

// Marker patterns keyed by marker word. Markers come from the policy, so the
// set stays small.
var markerPatterns sync.Map

func markerPattern(word string) *regexp.Regexp {
	if re, ok := markerPatterns.Load(word); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := markerPatterns.LoadOrStore(word, regexp.MustCompile(`(^|[^a-z])(non-?\s?|not\s+)?`+regexp.QuoteMeta(word)+`\b`))
	return re.(*regexp.Regexp)
}

func hasUnnegatedWord(lower, word string) bool {
	for _, m := range markerPattern(word).FindAllStringSubmatchIndex(lower, -1) {
		if m[4] < 0 {
			return true
		}
	}
	return false
}

func extractSetAside(text string) string {
	for _, f := range setAsideFamilies {
		if f.re.MatchString(text) {
			return f.label
		}
	}
	return models.SetAsideNone
}

func presence(re *regexp.Regexp, text string) string {
	if re.MatchString(text) {
		return models.Required
	}
	return models.NotMentioned
}

// extractScope returns the text after the first scope heading, cut at the
// next section heading and bounded to maxChars.
func extractScope(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 600
	}
	loc := scopeHeading.FindStringIndex(text)
	if loc == nil {
		return models.NotParsed
	}
	chunk := text[loc[1]:]
	if stop := sectionStop.FindStringIndex(chunk); stop != nil {
		chunk = chunk[:stop[0]]
	}
	summary := normalizeSpace(chunk)
	if summary == "" {
		return models.NotParsed
	}
	return truncateWords(summary, maxChars)
}

func extractTechTags(text string) []string {
	var tags []string
	for _, f := range techTagFamilies {
		if f.re.MatchString(text) {
			tags = appendUnique(tags, f.label)
		}
	}
	return tags
}
