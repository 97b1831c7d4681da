// Package dates parses the date grammars found in solicitations.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

var (
	isoDateRegex   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDateRegex    = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	monthDateRegex = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// Parse reads a date written in any of the grammars the extractor
// recognizes. The result is midnight UTC of that calendar day.
func Parse(text string) (time.Time, bool) {
	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), ".,;"))
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return startOfDay(t), true
		}
	}
	return parseDateWithRegex(text)
}

func parseDateWithRegex(text string) (time.Time, bool) {
	if m := isoDateRegex.FindStringSubmatch(text); m != nil {
		return buildDate(m[1], int(monthFromDigits(m[2])), m[3])
	}
	if m := usDateRegex.FindStringSubmatch(text); m != nil {
		return buildDate(m[3], int(monthFromDigits(m[1])), m[2])
	}
	if m := monthDateRegex.FindStringSubmatch(text); m != nil {
		month, ok := monthNumbers[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		return buildDate(m[3], int(month), m[2])
	}
	return time.Time{}, false
}

func monthFromDigits(s string) time.Month {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return time.Month(n)
}

func buildDate(yearStr string, month int, dayStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// Rolled over, e.g. February 30.
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil counts calendar days from now to due; negative once due has passed.
func DaysUntil(due, now time.Time) int {
	today := startOfDay(now.UTC())
	return int(startOfDay(due).Sub(today).Hours() / 24)
}
