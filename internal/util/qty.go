package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var qtyTokenPattern = regexp.MustCompile(`^\d{1,6},\d{2}$`)

// ParseBRNumber parses text in Brazilian convention: periods are thousands
// separators and the comma is the decimal marker.
func ParseBRNumber(input string) (float64, error) {
	token := strings.TrimSpace(strings.ReplaceAll(input, "\u00A0", ""))
	token = strings.ReplaceAll(token, ".", "")
	token = strings.ReplaceAll(token, ",", ".")
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "util: parse number %q", input)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, eris.Errorf("util: parse number %q: not finite", input)
	}
	return parsed, nil
}

// ParseAmountField reads a quantity or value column. Fields without a decimal
// comma count as zero and are not parsed as plain integers.
func ParseAmountField(field string) (float64, error) {
	if !strings.Contains(field, ",") {
		return 0, nil
	}
	parsed, err := ParseBRNumber(field)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, nil
	}
	return parsed, nil
}

// IsQtyToken matches the space-aligned quantity column: up to six digits, a
// comma and exactly two decimals.
func IsQtyToken(token string) bool {
	return qtyTokenPattern.MatchString(token)
}
