package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SecondaryKeyLength is the width of a formatted secondary key.
const SecondaryKeyLength = 6

// HeaderScanRows is how many leading rows FindHeaderRowIndex inspects.
const HeaderScanRows = 10

var labelSeparators = regexp.MustCompile(`[\s_\-]+`)

// headerLabels are folded forms of the labels that identify a header row.
var headerLabels = map[string]bool{
	"cnpj":            true,
	"nome":            true,
	"nome da empresa": true,
	"razao social":    true,
	"id":              true,
	"codigo":          true,
}

// FormatSecondaryKey strips non-digits from rawID and left-pads it with
// zeros to six digits. Longer inputs keep all their digits.
func FormatSecondaryKey(rawID string) string {
	return padLeft(nonDigit.ReplaceAllString(rawID, ""), SecondaryKeyLength)
}

// FoldLabel lowercases s, strips diacritics and collapses runs of spaces,
// underscores and hyphens into single spaces, so that "Razão_Social" and
// "razao social" compare equal.
func FoldLabel(s string) string {
	s = stripDiacritics(strings.ToLower(strings.TrimSpace(s)))
	s = labelSeparators.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// IsHeaderLabel reports whether a cell value is one of the known header labels.
func IsHeaderLabel(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return headerLabels[FoldLabel(s)]
}

// FindHeaderRowIndex returns the index of the first row, among the first
// HeaderScanRows, containing a known header label. It returns 0 when none is
// found.
func FindHeaderRowIndex(rows [][]any) int {
	limit := min(len(rows), HeaderScanRows)
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if IsHeaderLabel(cell) {
				return i
			}
		}
	}
	return 0
}
