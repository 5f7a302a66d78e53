package fieldextract

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numberToken  = regexp.MustCompile(`-?\d[\d.,]*`)
	dotGrouped   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaGrouped = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	germanDate   = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`)
	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// ParseAmount parses the first number in s, accepting German ("1.234,56")
// and English ("1,234.56") grouping. When both separators appear the last one
// is the decimal mark. A lone comma is decimal; a lone dot is decimal unless
// it groups digits in threes ("1.234" is 1234).
func ParseAmount(s string) (float64, bool) {
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, false
	}
	neg := strings.HasPrefix(tok, "-")
	tok = strings.TrimRight(strings.TrimPrefix(tok, "-"), ".,")
	if tok == "" {
		return 0, false
	}

	lastDot := strings.LastIndex(tok, ".")
	lastComma := strings.LastIndex(tok, ",")
	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec := lastDot
		group := ","
		if lastComma > lastDot {
			dec, group = lastComma, "."
		}
		intPart := strings.ReplaceAll(tok[:dec], group, "")
		if strings.ContainsAny(intPart, ".,") {
			return 0, false
		}
		normalized = intPart + "." + tok[dec+1:]
	case lastComma >= 0:
		switch {
		case strings.Count(tok, ",") == 1:
			normalized = strings.Replace(tok, ",", ".", 1)
		case commaGrouped.MatchString(tok):
			normalized = strings.ReplaceAll(tok, ",", "")
		default:
			return 0, false
		}
	case lastDot >= 0:
		switch {
		case dotGrouped.MatchString(tok) && !strings.HasPrefix(tok, "0"):
			normalized = strings.ReplaceAll(tok, ".", "")
		case strings.Count(tok, ".") == 1:
			normalized = tok
		default:
			return 0, false
		}
	default:
		normalized = tok
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// ParsePercent parses a rate such as "19 %" or "7,5%".
func ParsePercent(s string) (float64, bool) {
	v, ok := ParseAmount(s)
	if !ok || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// ParseDate parses the first DD.MM.YYYY (or ISO) date in s.
func ParseDate(s string) (time.Time, bool) {
	if m := germanDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	return time.Time{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow; reject dates that moved.
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeIBAN strips spacing and returns the longest prefix that passes the
// ISO 7064 mod-97 check, which drops OCR spill from neighbouring text.
func NormalizeIBAN(s string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	compact := b.String()
	if len(compact) < 15 {
		return "", false
	}
	limit := len(compact)
	if limit > 34 {
		limit = 34
	}
	for n := limit; n >= 15; n-- {
		if validIBAN(compact[:n]) {
			return compact[:n], true
		}
	}
	if len(compact) <= 34 {
		return compact, true
	}
	return "", false
}

func validIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	if iban[0] < 'A' || iban[0] > 'Z' || iban[1] < 'A' || iban[1] > 'Z' || iban[2] < '0' || iban[2] > '9' || iban[3] < '0' || iban[3] > '9' {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
			continue
		}
		digits.WriteRune(r)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
