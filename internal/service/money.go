package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxAmount bounds the magnitude of a parsed amount in major units.
const MaxAmount = 1e13

var ErrAmountRange = errors.New("amount out of range")

// ParseCents converts a decimal amount to minor units. Characters in strip
// are removed first; a value wrapped in parentheses is negative.
func ParseCents(s, strip string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, r := range strip {
		s = strings.ReplaceAll(s, string(r), "")
	}
	s = strings.ReplaceAll(s, " ", "")
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrAmountRange, s)
		}
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > MaxAmount {
		return 0, fmt.Errorf("%w: %q", ErrAmountRange, s)
	}
	cents := int64(math.Round(f * 100))
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FormatCents renders minor units as a plain decimal, e.g. -42.50.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatMoney renders minor units with a currency symbol and thousands
// separators, e.g. -$1,204.50.
func FormatMoney(symbol string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, b.String(), cents%100)
}
