package pipeline

import (
	"strings"

	"salesboard/internal/util"
)

const stateToken = "PB"

var noiseTokens = []string{"RMOV", "Emissão:", "Produto", "Total :", "TOTAL CIDADE"}

// IsNoiseLine matches report chrome that never carries data: blank lines,
// comments, page banners and subtotal rows.
func IsNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return true
	}
	for _, token := range noiseTokens {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}

func stripQuotes(line string) string {
	return strings.ReplaceAll(line, `"`, "")
}

// DetectCityHeader resolves the city named by a header line. ok is false when
// the line is not a header; city is empty when it is a header without a usable
// name, in which case the current city stays in effect.
func DetectCityHeader(line string) (city string, ok bool) {
	clean := strings.TrimSpace(stripQuotes(line))
	if !strings.HasPrefix(clean, stateToken) {
		return "", false
	}

	if strings.Contains(clean, ",") {
		parts := strings.Split(clean, ",")
		if len(parts) > 1 {
			candidate := util.NormalizeText(parts[1])
			if util.RuneLen(candidate) > 2 {
				return candidate, true
			}
		}
	}

	rest := strings.TrimSpace(clean[len(stateToken):])
	rest = strings.TrimLeft(rest, " ,.-")
	if strings.Contains(rest, ",,") {
		rest, _, _ = strings.Cut(rest, ",")
	}
	if util.RuneLen(rest) > 2 {
		return util.NormalizeText(rest), true
	}
	return "", true
}
