package pipeline

import (
	"encoding/csv"
	"regexp"
	"strings"

	"salesboard/internal"
	"salesboard/internal/util"
)

const (
	delimitedMinFields = 7
	delimitedQtyCol    = 2
	delimitedValueCol  = 6
	alignedMinTokens   = 5
	minProductNameLen  = 3
)

var alignedSeparator = regexp.MustCompile(`\s{2,}`)

type extraction struct {
	product string
	qty     float64
	value   float64
}

// ExtractRecord parses one data line of either legacy layout. Both
// tokenizations are computed up front; the delimited layout wins when it
// qualifies, the space-aligned one is the fallback. The returned record has
// no city or month yet.
func ExtractRecord(line string) internal.LineOutcome {
	clean := strings.TrimSpace(stripQuotes(line))

	fields := splitDelimited(strings.TrimSpace(line))
	tokens := alignedSeparator.Split(clean, -1)

	var (
		ext    extraction
		reason internal.SkipReason
	)
	switch {
	case isDelimited(fields):
		ext, reason = extractDelimited(fields)
	case len(tokens) >= alignedMinTokens:
		ext, reason = extractAligned(tokens)
	default:
		return skipped(internal.SkipNoFormat)
	}
	if reason != internal.SkipNone {
		return skipped(reason)
	}

	if ext.value <= 0 && ext.qty <= 0 {
		return skipped(internal.SkipNoAmount)
	}
	name := util.CleanProductName(ext.product)
	if util.RuneLen(name) < minProductNameLen {
		return skipped(internal.SkipShortName)
	}

	return internal.LineOutcome{
		Kind: internal.LineRecord,
		Record: &internal.ParsedRecord{
			Product: name,
			Qty:     ext.qty,
			Value:   ext.value,
		},
	}
}

func skipped(reason internal.SkipReason) internal.LineOutcome {
	return internal.LineOutcome{Kind: internal.LineSkipped, Reason: reason}
}

// splitDelimited tokenizes a comma line. With LazyQuotes a quote inside a
// field does not close it, so `"ab"cd,"1,00"` reads as one field up to the
// next quote that precedes a comma. Only an empty line fails, and it yields
// no fields.
func splitDelimited(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil
	}
	return fields
}

func isDelimited(fields []string) bool {
	if len(fields) < delimitedMinFields {
		return false
	}
	for _, f := range fields[delimitedQtyCol:] {
		if util.HasDigit(f) {
			return true
		}
	}
	return false
}

// extractDelimited reads the comma layout. Months disagree on whether the
// product sits in column 0 or 1, so column 1 is used only when it holds text.
func extractDelimited(fields []string) (extraction, internal.SkipReason) {
	value, err := util.ParseAmountField(strings.TrimSpace(fields[delimitedValueCol]))
	if err != nil {
		return extraction{}, internal.SkipBadNumber
	}
	qty, err := util.ParseAmountField(strings.TrimSpace(fields[delimitedQtyCol]))
	if err != nil {
		return extraction{}, internal.SkipBadNumber
	}

	name := strings.TrimSpace(fields[0])
	if second := strings.TrimSpace(fields[1]); util.RuneLen(second) > 2 && !util.LooksNumeric(second) {
		name = second
	}
	return extraction{product: name, qty: qty, value: value}, internal.SkipNone
}

// extractAligned reads the space-aligned layout: product first, value second
// to last, quantity the first positive NNN,NN token in between.
func extractAligned(tokens []string) (extraction, internal.SkipReason) {
	value, err := util.ParseAmountField(tokens[len(tokens)-2])
	if err != nil {
		return extraction{}, internal.SkipBadNumber
	}

	qty := 0.0
	for _, token := range tokens[1 : len(tokens)-2] {
		if !util.IsQtyToken(token) {
			continue
		}
		parsed, err := util.ParseBRNumber(token)
		if err != nil {
			return extraction{}, internal.SkipBadNumber
		}
		if parsed > 0 {
			qty = parsed
			break
		}
	}
	return extraction{product: tokens[0], qty: qty, value: value}, internal.SkipNone
}
