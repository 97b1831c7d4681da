package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

var amountSuffixRegex = regexp.MustCompile(`(?i)^(.*?)\s*(k|thousand|m|mm|million|b|billion)$`)

var amountMultipliers = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "mm": 1e6, "million": 1e6,
	"b": 1e9, "billion": 1e9,
}

// parseMoney turns a captured amount such as "300,000", "1.2 million" or
// "45K" into a number. Anything that does not parse cleanly yields nil.
func parseMoney(token string) *float64 {
	token = strings.TrimSpace(token)
	token = strings.TrimLeft(token, "$ ")
	token = strings.TrimRight(token, ".,; ")
	if token == "" {
		return nil
	}

	multiplier := 1.0
	if m := amountSuffixRegex.FindStringSubmatch(token); m != nil {
		multiplier = amountMultipliers[strings.ToLower(m[2])]
		token = strings.TrimSpace(m[1])
	}

	if !validGrouping(token) {
		return nil
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
	if err != nil || val < 0 {
		return nil
	}
	val *= multiplier
	return &val
}

var groupedAmountRegex = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)(\.\d+)?$`)

// validGrouping rejects tokens like "1,2.3.4" or "30,00" whose separators
// are in unexpected positions.
func validGrouping(token string) bool {
	return groupedAmountRegex.MatchString(token)
}
