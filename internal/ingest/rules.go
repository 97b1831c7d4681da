package ingest

import (
	"regexp"
	"strings"
)

// rule is one candidate pattern in a field cascade. The value is the "v"
// group when it took part in the match, otherwise the whole match. A match
// in which the "x" group took part is skipped and the search continues.
type rule struct {
	re *regexp.Regexp
}

func newRule(pattern string) rule {
	return rule{re: regexp.MustCompile(pattern)}
}

// cascade tries its rules in order; the first rule with a non-empty match wins.
type cascade []rule

func (c cascade) find(text string) (string, bool) {
	for _, r := range c {
		if v, ok := r.find(text); ok {
			return v, true
		}
	}
	return "", false
}

func (r rule) find(text string) (string, bool) {
	valueIdx := r.re.SubexpIndex("v")
	rejectIdx := r.re.SubexpIndex("x")
	for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
		if rejectIdx > 0 && m[2*rejectIdx] >= 0 {
			continue
		}
		val := text[m[0]:m[1]]
		if valueIdx > 0 && m[2*valueIdx] >= 0 {
			val = text[m[2*valueIdx]:m[2*valueIdx+1]]
		}
		if val = strings.TrimSpace(val); val != "" {
			return val, true
		}
	}
	return "", false
}

// family maps a keyword family onto a fixed label.
type family struct {
	label string
	re    *regexp.Regexp
}

func newFamily(label, pattern string) family {
	return family{label: label, re: regexp.MustCompile(pattern)}
}

var identifierRules = cascade{
	newRule(`(?i)\b(?P<v>RFP[- ]?(?:No\.?\s*|#\s*)?\d[\w\-./#]*)`),
	newRule(`(?i)\b(?P<v>RFQ[- ]?(?:No\.?\s*|#\s*)?\d[\w\-./#]*)`),
	newRule(`(?i)\b(?P<v>RFB[- ]?(?:No\.?\s*|#\s*)?\d[\w\-./#]*)`),
	newRule(`(?i)\b(?P<v>(?:ITB|IFB)[- ]?(?:No\.?\s*|#\s*)?\d[\w\-./#]*)`),
	newRule(`(?i)\b(?P<v>BPA[- ]?(?:No\.?\s*|#\s*)?\d[\w\-./#]*)`),
	newRule(`\b(?P<v>CC[#\- ]\d{2,}[- ]\d+)`),
	newRule(`\b(?P<v>\d{7}R\d+)\b`),
	newRule(`\b(?P<v>[A-Z]{1,2}\d{4}-?\d{2}-?[A-Z]-?\d{4})\b`),
	newRule(`\b(?P<v>W\d{4,}[A-Z0-9]+)\b`),
	newRule(`(?i)\b(?:solicitation|bid|proposal|contract)\s+(?:no\.?|number|#)\s*[:#]?\s*(?P<v>[A-Za-z0-9\-./]*\d[A-Za-z0-9\-./]*)`),
}

var titleHeadingRules = cascade{
	newRule(`(?im)^(?:(?:project|solicitation|bid|contract)\s+(?:title|name)|title)\s*:\s*(?P<v>[^\n]{6,140})`),
	newRule(`(?im)^(?:RFP|RFQ|RFB|ITB|IFB|Request\s+for\s+(?:Proposals?|Quotes?|Quotations?|Bids?))\b[^\n]{0,24}?(?:\s*:\s*|\s+[-–]\s+)(?P<v>[^\n]{6,140})`),
}

// Capitalised name words, as in "City of Riverton".
const nameWord = `[A-Z][A-Za-z.'&-]*`

var agencyRules = cascade{
	newRule(`\b(?P<v>City of(?: ` + nameWord + `){1,4})`),
	newRule(`\b(?P<v>County of(?: ` + nameWord + `){1,4})`),
	newRule(`\b(?P<v>(?:` + nameWord + ` ){1,3}County)\b`),
	newRule(`\b(?P<v>(?:Borough|Town|Township|Village) of(?: ` + nameWord + `){1,4})`),
	newRule(`\b(?P<v>University of(?: ` + nameWord + `){1,4})`),
	newRule(`\b(?P<v>(?:` + nameWord + ` ){1,4}University)\b`),
	newRule(`\b(?P<v>School District of(?: ` + nameWord + `){1,4})`),
	newRule(`\b(?P<v>(?:` + nameWord + ` ){1,4}(?:Unified |Independent |Public )?School District)\b`),
	newRule(`\b(?P<v>(?:` + nameWord + ` ){0,3}Department of(?: (?:` + nameWord + `|and|the)){1,5})`),
	newRule(`\b(?P<v>(?:` + nameWord + ` ){1,4}Authority)\b`),
	newRule(`\b(?P<v>State of(?: ` + nameWord + `){1,3})`),
	newRule(`(?P<v>U\.S\. (?:(?:` + nameWord + `|of|the|and) ){0,4}` + nameWord + `)`),
}

// Date grammars: numeric slash or dash, month name, ISO.
const dateValue = `(?P<v>\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})\b`

// Separator between a date label and its value, allowing "on", "by" and a weekday.
const dateSep = `\s*(?:[:\-–]\s*)?(?:(?:on|by|no later than)\s+)?(?:[A-Za-z]+day,?\s+)?`

var issueDateRules = cascade{
	newRule(`(?i)\b(?:Issue(?:d)?|Release|Posted|Publication)\s+Date` + dateSep + dateValue),
	newRule(`(?i)\bDate\s+(?:Issued|Released|Posted)` + dateSep + dateValue),
}

var dueDateRules = cascade{
	newRule(`(?i)(?P<x>\b(?:Questions?|Inquir(?:y|ies)|Q\s*&\s*A|Clarifications?|RFI)\s+)?\b(?:Due|Closing|Close)\s+Date` + dateSep + dateValue),
	newRule(`(?i)\b(?:Proposals?|Bids?|Responses?|Submissions?|Offers?|Quotes?|Quotations?)\s+(?:are\s+|must\s+be\s+received\s+)?Due` + dateSep + dateValue),
	newRule(`(?i)\b(?:Submission|Response|Proposal|Bid)\s+Deadline` + dateSep + dateValue),
	newRule(`(?i)\bBid\s+Opening(?:\s+Date)?` + dateSep + dateValue),
}

var qaDeadlineRules = cascade{
	newRule(`(?i)\b(?:Q\s*&\s*A|Questions?|Inquir(?:y|ies)|Clarifications?|RFI)\s+(?:Deadline|Due(?:\s+Date)?|Cut-?off(?:\s+Date)?)` + dateSep + dateValue),
	newRule(`(?i)\bDeadline\s+for\s+(?:Questions|Inquiries|Clarifications)` + dateSep + dateValue),
}

var preBidRules = cascade{
	newRule(`(?i)(?P<v>(?:\b(?:non-?\s?mandatory|mandatory|optional)\s+)?\bpre[- ]?(?:bid|proposal|submittal)\b[^.\n]{0,120})`),
}

// Amount token with an optional magnitude suffix.
const amountValue = `(?P<v>\d[\d,.]*(?:\s*(?:k|m|mm|million|thousand|b|billion)\b)?)`

var dollarAmountRule = newRule(`(?i)\$\s*` + amountValue)

// budgetRules take the first dollar amount in the text.
var budgetRules = cascade{dollarAmountRule}

// labelledBudgetRules look for an amount under a budget label before
// falling back to the first dollar amount.
var labelledBudgetRules = cascade{
	newRule(`(?i)\b(?:budget|estimated\s+(?:value|cost|budget|contract\s+value)|not[-\s]*to[-\s]*exceed|NTE)\b\s*(?:is|of|amount)?\s*[:\-–]?\s*(?:approximately\s+|up\s+to\s+)?\$?\s*` + amountValue),
	dollarAmountRule,
}

var areaRules = cascade{
	newRule(`(?i)\b(?P<v>\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(?:\+\s*)?(?:sq\.?\s*ft\.?|square\s+f(?:ee|oo)t|sf\b|gsf\b)`),
}

var lineCountRules = cascade{
	newRule(`(?i)\b(?P<v>\d{1,5})\s+(?:analog\s+|pots\s+|phone\s+|telephone\s+|voice\s+|copper\s+)?lines\b`),
}

var scopeHeading = regexp.MustCompile(`(?i)\b(?:scope\s+of\s+(?:work|services)|statement\s+of\s+work|project\s+(?:scope|description)|description\s+of\s+(?:work|services)|background\s+and\s+scope|services\s+required|summary)\b[ \t]*(?::|\n)`)

// A following all-caps or numbered heading ends the scope section.
var sectionStop = regexp.MustCompile(`(?m)\n[A-Z][A-Z0-9 \-]{6,}\n|^\d+\.\s+[A-Z]`)

var (
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRegex = regexp.MustCompile(`\(?\b\d{3}\)?[ .-]?\d{3}[ .-]\d{4}\b`)
)

// submissionVocabulary is checked in order; the first needle found wins.
var submissionVocabulary = []struct {
	label   string
	needles []string
}{
	{"BidNet", []string{"bidnet"}},
	{"PlanetBids", []string{"planetbids"}},
	{"DemandStar", []string{"demandstar"}},
	{"Public Purchase", []string{"public purchase", "publicpurchase"}},
	{"SAM.gov", []string{"sam.gov"}},
	{"Bonfire", []string{"bonfirehub", "bonfire portal"}},
	{"OpenGov", []string{"opengov"}},
	{"Email", []string{"email", "e-mail"}},
	{"Portal", []string{"portal", "electronic submission", "online submission"}},
	{"Sealed Bid", []string{"sealed bid", "sealed proposal", "sealed envelope"}},
	{"Hand Delivery", []string{"hand delivery", "hand-delivered", "hand delivered"}},
}

var setAsideFamilies = []family{
	newFamily("8(a)", `\b8\s?\(a\)|\b8[- ]a\b`),
	newFamily("HUBZone", `(?i)\bhub\s?zone\b`),
	newFamily("SDVOSB", `\bSDVOSB\b|(?i:service[- ]disabled[, ]+veteran[- ]owned)`),
	newFamily("WOSB", `\b(?:ED)?WOSB\b|(?i:women[- ]owned small business)`),
	newFamily("MBE", `\bMBE\b|(?i:minority[- ]owned business)`),
	newFamily("WBE", `\bWBE\b`),
	newFamily("DBE", `\bDBE\b|(?i:disadvantaged business enterprise)`),
	newFamily("Small Business", `(?i)\bsmall business set[- ]aside\b|\btotal small business\b`),
}

var (
	bondingPattern   = regexp.MustCompile(`(?i)\b(?:bid|performance|payment|surety)\s+bonds?\b`)
	insurancePattern = regexp.MustCompile(`(?i)\binsurance\b`)
)

var techTagFamilies = []family{
	newFamily("DAS / Neutral Host", `(?i)\b(?:das|distributed antenna|neutral[- ]host)\b`),
	newFamily("ERRCS / Public Safety", `(?i)\b(?:errcs|bda|bi-directional amplifier|public safety (?:radio|das)|first responder radio)\b`),
	newFamily("POTS / Analog", `(?i)\b(?:pots|analog lines?|fxs|ata)\b`),
	newFamily("VoIP / Telephony", `(?i)\b(?:voip|pbx|sip|teams voice|microsoft teams)\b`),
	newFamily("CCTV/Camera/ALPR", `(?i)\b(?:cctv|cameras?|alpr|video surveillance)\b`),
	newFamily("Wireless / Wi-Fi", `(?i)\b(?:wi-?fi|wireless|access points?)\b`),
	newFamily("Server / Compute", `(?i)\b(?:servers?|storage|poweredge)\b`),
	newFamily("Structured Cabling", `(?i)\b(?:structured cabling|fiber optic|cat ?6a?)\b`),
}

var customerTypeFamilies = []family{
	newFamily("military", `(?i)\b(?:army|navy|air force|marine corps|defense|national guard|dod)\b`),
	newFamily("education", `(?i)\b(?:university|college|school|academy|education)\b`),
	newFamily("government", `(?i)(?:\b(?:city|county|borough|town|township|village|state|department|authority|commission|federal|municipal|agency)\b|\bU\.S\.)`),
	newFamily("healthcare", `(?i)\b(?:hospital|health|medical)\b`),
}
