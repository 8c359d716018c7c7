// Package normalize canonicalizes raw spreadsheet cell values into comparable
// keys: 14-digit tax ids, 6-digit secondary keys and column labels.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TaxIDLength is the number of digits in a canonical tax id.
const TaxIDLength = 14

var (
	nonDigit   = regexp.MustCompile(`\D`)
	scientific = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE][+-]?\d+$`)
)

// NormalizeTaxID converts a raw tax-id cell into a digit string.
//
// Spreadsheet readers often hand back long digit strings as floats, dropping
// leading zeros, so numeric and scientific-notation inputs are truncated and
// left-padded to 14 digits. Anything else is stripped to its digits and padded
// only when non-empty and short. The result is not guaranteed to be valid;
// see ValidateTaxID.
func NormalizeTaxID(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case float64:
		return padFloat(v)
	case float32:
		return padFloat(float64(v))
	case int:
		return padLeft(strconv.FormatInt(absInt64(int64(v)), 10), TaxIDLength)
	case int64:
		return padLeft(strconv.FormatInt(absInt64(v), 10), TaxIDLength)
	case int32:
		return padLeft(strconv.FormatInt(absInt64(int64(v)), 10), TaxIDLength)
	case uint64:
		return padLeft(strconv.FormatUint(v, 10), TaxIDLength)
	case string:
		return normalizeTaxIDString(v)
	default:
		return ""
	}
}

func normalizeTaxIDString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Locale-formatted exports use a decimal comma ("1,1222333000181E+13").
	if sci := strings.Replace(s, ",", ".", 1); scientific.MatchString(sci) {
		if f, err := strconv.ParseFloat(sci, 64); err == nil {
			return padFloat(f)
		}
	}

	digits := nonDigit.ReplaceAllString(s, "")
	if digits != "" && len(digits) < TaxIDLength {
		return padLeft(digits, TaxIDLength)
	}
	return digits
}

func padFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return padLeft(strconv.FormatFloat(math.Trunc(math.Abs(f)), 'f', 0, 64), TaxIDLength)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ValidateTaxID reports whether id is a 14-digit tax id with correct mod-11
// check digits. Sequences of a single repeated digit are rejected.
func ValidateTaxID(id string) bool {
	if len(id) != TaxIDLength {
		return false
	}

	digits := make([]int, TaxIDLength)
	for i, r := range id {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}

	repeated := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	return checkDigit(digits[:12], 5) == digits[12] &&
		checkDigit(digits[:13], 6) == digits[13]
}

// checkDigit computes one tax-id check digit. Weights start at the given value
// and count down, wrapping from 2 back to 9.
func checkDigit(digits []int, startWeight int) int {
	sum := 0
	weight := startWeight
	for _, d := range digits {
		sum += d * weight
		weight--
		if weight < 2 {
			weight = 9
		}
	}
	result := 11 - sum%11
	if result >= 10 {
		return 0
	}
	return result
}
