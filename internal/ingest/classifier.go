package ingest

import "github.com/david/bidsense/internal/models"

// Category labels, in classification priority order. Antenna work is checked
// before generic networking so a DAS bid that also mentions Wi-Fi stays DAS.
const (
	CategoryDAS      = "DAS / In-Building Cellular"
	CategoryPOTS     = "POTS Replacement / Analog Modernization"
	CategoryVoIP     = "VoIP / Telephony"
	CategoryCCTV     = "CCTV / Camera / ALPR"
	CategoryServer   = "Server / Compute"
	CategoryNetwork  = "Network / Wireless"
	CategoryFallback = models.GenericCategory
)

var categoryRules = []family{
	newFamily(CategoryDAS, `(?i)\b(?:das|distributed antenna|neutral[- ]host|in-building (?:cellular|wireless))\b`),
	newFamily(CategoryPOTS, `(?i)\b(?:pots[- ]?in[- ]a[- ]box|pots replacement|analog lines?|fxs|ata)\b`),
	newFamily(CategoryVoIP, `(?i)\b(?:voip|pbx|sip|teams voice)\b`),
	newFamily(CategoryCCTV, `(?i)\b(?:cctv|video surveillance|cameras?|alpr)\b`),
	newFamily(CategoryServer, `(?i)\b(?:servers?|compute|storage|poweredge)\b`),
	newFamily(CategoryNetwork, `(?i)\b(?:wi-?fi|wireless|lan|access points?)\b`),
}

// Classify maps text to exactly one category: the first rule in priority
// order that matches, or the generic fallback.
func Classify(text string) string {
	for _, rule := range categoryRules {
		if rule.re.MatchString(text) {
			return rule.label
		}
	}
	return CategoryFallback
}

// Categories lists the taxonomy in priority order, fallback last.
func Categories() []string {
	out := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		out = append(out, rule.label)
	}
	return append(out, CategoryFallback)
}
