package units

import (
	"regexp"
	"strings"
)

type unitPattern struct {
	re   *regexp.Regexp
	unit string
}

// Checked in order; the first hit wins. Longer, more specific forms come first.
// Short forms that are also English words (no, ha, ls, rm, ea) only count
// right after a number.
var unitPatterns = []unitPattern{
	{regexp.MustCompile(`(?i)\b(?:cubic\s+met(?:er|re)s?|cu\.?\s?m|m3|m³|cum)\b|m³`), "m3"},
	{regexp.MustCompile(`(?i)\b(?:cubic\s+(?:feet|foot)|cu\.?\s?ft|ft3|cft)\b`), "ft3"},
	{regexp.MustCompile(`(?i)\b(?:cubic\s+yards?|cu\.?\s?yd|yd3)\b`), "yd3"},
	{regexp.MustCompile(`(?i)\b(?:square\s+met(?:er|re)s?|sq\.?\s?m|m2|sqm)\b|m²`), "m2"},
	{regexp.MustCompile(`(?i)\b(?:square\s+(?:feet|foot)|sq\.?\s?ft|ft2|sqft)\b`), "ft2"},
	{regexp.MustCompile(`(?i)\b(?:square\s+yards?|sq\.?\s?yd|yd2)\b`), "yd2"},
	{regexp.MustCompile(`(?i)\b(?:hectares?)\b|\d\s*ha\b`), "ha"},
	{regexp.MustCompile(`(?i)\b(?:linear\s+met(?:er|re)s?|lin\.?\s?m|lm|rmt)\b|\d\s*rm\b`), "m"},
	{regexp.MustCompile(`(?i)\b(?:linear\s+(?:feet|foot)|lin\.?\s?ft|lf|rft)\b`), "ft"},
	{regexp.MustCompile(`(?i)\b(?:tonnes?|tons?)\b`), "t"},
	{regexp.MustCompile(`(?i)\b(?:kgs?|kilograms?)\b`), "kg"},
	{regexp.MustCompile(`(?i)\b(?:litres?|liters?|ltr)\b`), "l"},
	{regexp.MustCompile(`(?i)\blump\s+sum\b|\d\s*ls\b`), "sum"},
	{regexp.MustCompile(`(?i)\b(?:each|pcs?|pieces?)\b|\d\s*(?:nos?|nr|ea)\b`), "nr"},
	{regexp.MustCompile(`(?i)\b(?:hours?|hrs?)\b`), "hr"},
}

// ExtractFromText returns the first unit mentioned in a free-text description.
func ExtractFromText(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", false
	}
	for _, p := range unitPatterns {
		if p.re.MatchString(t) {
			return p.unit, true
		}
	}
	return "", false
}

// Resolve prefers an explicit unit and falls back to one extracted from text.
func Resolve(explicit, text string) string {
	if n := Normalize(explicit); n != "" {
		return n
	}
	if u, ok := ExtractFromText(text); ok {
		return u
	}
	return ""
}
