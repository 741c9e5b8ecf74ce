package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Patterns shared by the German broker documents.
var (
	// DD.MM.YYYY anywhere in a token
	germanDatePattern = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.([1-2]\d{3})\b`)
	// HH:MM time of day
	timePattern = regexp.MustCompile(`\b([0-1]\d|2[0-3]):([0-5]\d)\b`)
)

// parseGermanNum converts a German-formatted number ("2.380,88") to a
// decimal. '.' is the thousands separator, ',' the decimal separator.
// A trailing minus ("119,12-") is applied as sign.
func parseGermanNum(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	negative := false
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// germanNum is the must-variant of parseGermanNum for positions where the
// document structure guarantees a number. A non-numeric token there means
// the layout is broken; the panic is converted to a fatal status at the
// dispatch boundary.
func germanNum(s string) decimal.Decimal {
	d, ok := parseGermanNum(s)
	if !ok {
		panic("unparseable numeric token: " + s)
	}
	return d
}

// formatGermanNum renders a decimal back into the German convention with
// thousands separators, e.g. 2380.88 -> "2.380,88".
func formatGermanNum(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".")
	if hasFrac {
		out += "," + fracPart
	}
	if negative {
		out = "-" + out
	}
	return out
}

// findGermanDate returns the first DD.MM.YYYY date found in the token, or "".
func findGermanDate(token string) string {
	return germanDatePattern.FindString(token)
}

// hasTimeOfDay reports whether the token contains an HH:MM fragment.
func hasTimeOfDay(token string) bool {
	return timePattern.MatchString(token)
}

// createActivityDateTime normalizes a German date plus an optional HH:MM
// time into the output date (YYYY-MM-DD) and datetime (RFC 3339) pair.
// Without a time of day the datetime defaults to midnight.
func createActivityDateTime(date, timeOfDay string) (string, string, bool) {
	day, err := time.Parse("02.01.2006", date)
	if err != nil {
		return "", "", false
	}

	if timeOfDay != "" {
		clock, err := time.Parse("15:04", timeOfDay)
		if err == nil {
			day = day.Add(time.Duration(clock.Hour())*time.Hour +
				time.Duration(clock.Minute())*time.Minute)
		}
	}

	return day.Format("2006-01-02"), day.Format(time.RFC3339), true
}

// splitFields splits a token into its whitespace-separated fields.
func splitFields(token string) []string {
	return strings.Fields(token)
}

// indexContaining returns the index of the first token containing the
// substring, or -1.
func indexContaining(tokens []string, substr string) int {
	for i, t := range tokens {
		if strings.Contains(t, substr) {
			return i
		}
	}
	return -1
}

// indexOfToken returns the index of the first token equal to s, or -1.
func indexOfToken(tokens []string, s string) int {
	for i, t := range tokens {
		if t == s {
			return i
		}
	}
	return -1
}

// nextIndexOfToken returns the index of the first token equal to s at or
// after position from, or -1.
func nextIndexOfToken(tokens []string, s string, from int) int {
	for i := from; i < len(tokens); i++ {
		if tokens[i] == s {
			return i
		}
	}
	return -1
}

// containsToken reports whether a token equal to s exists.
func containsToken(tokens []string, s string) bool {
	return indexOfToken(tokens, s) >= 0
}

// anyTokenContains reports whether any token contains the substring.
func anyTokenContains(tokens []string, substr string) bool {
	return indexContaining(tokens, substr) >= 0
}
