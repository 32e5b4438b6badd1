package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"HKD": "HK$",
	"CAD": "CA$",
	"AUD": "A$",
}

// Currencies displayed without a fractional part.
var zeroFractionCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
}

// FormatAmount renders an amount in minor units as an en-US currency string,
// e.g. FormatAmount(1500, "usd") == "$15.00". The amount is always divided by
// 100 before display.
func FormatAmount(minor int64, currency string) string {
	code := strings.ToUpper(currency)
	digits := int32(2)
	if zeroFractionCurrencies[code] {
		digits = 0
	}

	value := decimal.New(minor, -2)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}

	number := groupThousands(value.StringFixed(digits))
	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + number
	}
	return sign + code + " " + number
}

func groupThousands(s string) string {
	whole, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// ValidateAmount reports whether minor lies within [min, max].
func ValidateAmount(minor, min, max int64) bool {
	return minor >= min && minor <= max
}

// SupportedCurrency reports whether currency is in the allow-list,
// ignoring case. An empty allow-list accepts everything.
func SupportedCurrency(currency string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, c := range allowed {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}
