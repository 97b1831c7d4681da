package models

import (
	"strconv"
	"strings"
)

// Sentinel values. They are valid terminal values of a field, not errors.
const (
	UnknownAgency      = "Unknown Agency"
	NotSpecified       = "Not Specified"
	NotParsed          = "Not parsed"
	NotMentioned       = "Not Mentioned"
	Required           = "Required"
	SetAsideNone       = "None"
	GenericCategory    = "Uploaded RFP"
	ManualUploadSource = "Manual Upload"
)

// Pre-bid requirement values.
const (
	PreBidMandatory = "Mandatory"
	PreBidOptional  = "Optional"
	PreBidNA        = "N/A"
)

// ExtractedRecord is the structured form of one solicitation. Every field
// except Title may be nil or carry a sentinel.
type ExtractedRecord struct {
	ExternalID       *string  `json:"external_id"`
	Title            string   `json:"title"`
	Agency           string   `json:"agency"`
	Source           string   `json:"source"`
	IssueDate        *string  `json:"issue_date"`
	DueDate          *string  `json:"due_date"`
	QADeadline       *string  `json:"qa_deadline"`
	PreBid           *string  `json:"pre_bid"`
	PreBidRequired   string   `json:"pre_bid_required"`
	URL              *string  `json:"url"`
	Category         string   `json:"category"`
	Budget           *float64 `json:"budget"`
	AreaSqft         *float64 `json:"area_sqft"`
	LineCount        *int     `json:"line_count"`
	CustomerType     *string  `json:"customer_type"`
	Contacts         []string `json:"contacts"`
	SubmissionMethod string   `json:"submission_method"`
	SetAside         string   `json:"set_aside"`
	Bonding          string   `json:"bonding"`
	Insurance        string   `json:"insurance"`
	ScopeSummary     string   `json:"scope_summary"`
	TechRequirements []string `json:"tech_requirements"`
}

// FieldNames lists every record field in declaration order.
var FieldNames = []string{
	"external_id", "title", "agency", "source",
	"issue_date", "due_date", "qa_deadline",
	"pre_bid", "pre_bid_required", "url", "category",
	"budget", "area_sqft", "line_count", "customer_type",
	"contacts", "submission_method", "set_aside", "bonding", "insurance",
	"scope_summary", "tech_requirements",
}

// Fields returns the record as a field name to value mapping. Every name in
// FieldNames is present; absent values map to nil.
func (r ExtractedRecord) Fields() map[string]any {
	return map[string]any{
		"external_id":       deref(r.ExternalID),
		"title":             r.Title,
		"agency":            r.Agency,
		"source":            r.Source,
		"issue_date":        deref(r.IssueDate),
		"due_date":          deref(r.DueDate),
		"qa_deadline":       deref(r.QADeadline),
		"pre_bid":           deref(r.PreBid),
		"pre_bid_required":  r.PreBidRequired,
		"url":               deref(r.URL),
		"category":          r.Category,
		"budget":            deref(r.Budget),
		"area_sqft":         deref(r.AreaSqft),
		"line_count":        deref(r.LineCount),
		"customer_type":     deref(r.CustomerType),
		"contacts":          r.Contacts,
		"submission_method": r.SubmissionMethod,
		"set_aside":         r.SetAside,
		"bonding":           r.Bonding,
		"insurance":         r.Insurance,
		"scope_summary":     r.ScopeSummary,
		"tech_requirements": r.TechSummary(),
	}
}

// FieldString renders one field as text, the form corrections are compared in.
// Unknown names report ok=false.
func (r ExtractedRecord) FieldString(name string) (string, bool) {
	v, ok := r.Fields()[name]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case []string:
		return strings.Join(t, "; "), true
	}
	return "", true
}

// TechSummary joins the technical requirement tags, or returns NotParsed when
// there are none.
func (r ExtractedRecord) TechSummary() string {
	if len(r.TechRequirements) == 0 {
		return NotParsed
	}
	return strings.Join(r.TechRequirements, ", ")
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
