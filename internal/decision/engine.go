// Package decision maps a score onto one of three triage tiers.
package decision

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/david/bidsense/internal/models"
	"github.com/david/bidsense/internal/policy"
)

// Decide picks the tier for a scored record. A matching override rule wins
// regardless of score; otherwise the thresholds apply. The result depends
// only on its arguments.
func Decide(rec models.ExtractedRecord, score float64, pol *policy.Policy, now time.Time) models.Decision {
	d := models.Decision{Actor: models.ActorAuto, DecidedAt: now.UTC()}

	if rule, ok := MatchOverride(rec, pol.OverrideRules); ok {
		d.Tier = models.Tier(rule.Decision)
		d.Reason = overrideReason(rule)
		return d
	}

	t := pol.Thresholds
	switch {
	case score >= t.AutoSelect:
		d.Tier = models.TierSelect
		d.Reason = fmt.Sprintf("Score %s ≥ %s", num(score), num(t.AutoSelect))
	case score >= t.HoldMin:
		d.Tier = models.TierHold
		d.Reason = fmt.Sprintf("Score %s in [%s, %s)", num(score), num(t.HoldMin), num(t.AutoSelect))
	default:
		d.Tier = models.TierIgnore
		d.Reason = fmt.Sprintf("Score %s < %s", num(score), num(t.HoldMin))
	}
	return d
}

// MatchOverride returns the first rule whose substrings all occur in the
// record's title and category.
func MatchOverride(rec models.ExtractedRecord, rules []policy.OverrideRule) (policy.OverrideRule, bool) {
	title := strings.ToLower(rec.Title)
	category := strings.ToLower(rec.Category)
	for _, r := range rules {
		mt := strings.ToLower(strings.TrimSpace(r.MatchTitle))
		mc := strings.ToLower(strings.TrimSpace(r.MatchCategory))
		if mt == "" && mc == "" {
			continue
		}
		if mt != "" && !strings.Contains(title, mt) {
			continue
		}
		if mc != "" && !strings.Contains(category, mc) {
			continue
		}
		return r, true
	}
	return policy.OverrideRule{}, false
}

func overrideReason(r policy.OverrideRule) string {
	if reason := strings.TrimSpace(r.Reason); reason != "" {
		return reason
	}
	var parts []string
	if r.MatchTitle != "" {
		parts = append(parts, fmt.Sprintf("title contains %q", r.MatchTitle))
	}
	if r.MatchCategory != "" {
		parts = append(parts, fmt.Sprintf("category contains %q", r.MatchCategory))
	}
	return "Override rule: " + strings.Join(parts, " and ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
