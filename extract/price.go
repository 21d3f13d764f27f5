package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Currency tokens, Latin and Arabic. Latin codes need a word boundary in
// front so "SALE 20" does not read as "LE 20"; "EGP229" is allowed.
const currencyToken = `(?:\b(?:EGP|LE|USD|EUR|GBP|SAR|AED)|\bL\.E\.?|US\$|\$|€|£|ج\.م\.?|جنيه|ر\.س\.?|د\.إ)`

// currencySuffix is the token after a number, where "229EGP" is allowed.
const currencySuffix = `(?:(?:EGP|LE|USD|EUR|GBP|SAR|AED)\b|L\.E\.?|US\$|\$|€|£|ج\.م\.?|جنيه|ر\.س\.?|د\.إ)`

// Digits may be ASCII, Arabic-Indic or Extended Arabic-Indic; separators
// include the Arabic thousands and decimal marks.
const numberToken = `[0-9٠-٩۰-۹](?:[0-9٠-٩۰-۹.,٬٫]*[0-9٠-٩۰-۹])?`

const priceGap = `[\s\x{00A0}]*`

var priceRe = regexp.MustCompile(`(?i)(` + currencyToken + `)` + priceGap + `(` + numberToken + `)` +
	`|(` + numberToken + `)` + priceGap + `(` + currencySuffix + `)`)

// leadingNumberRe matches a number right at the start of text.
var leadingNumberRe = regexp.MustCompile(`^` + priceGap + `(` + numberToken + `)`)

// bareNumberRe finds a number in text that carries no currency token, for
// elements already known to hold a price.
var bareNumberRe = regexp.MustCompile(numberToken)

// currencyCodes maps a lowercased currency token to its ISO code.
var currencyCodes = map[string]string{
	"egp":  "EGP",
	"le":   "EGP",
	"l.e":  "EGP",
	"l.e.": "EGP",
	"ج.م":  "EGP",
	"ج.م.": "EGP",
	"جنيه": "EGP",
	"usd":  "USD",
	"us$":  "USD",
	"$":    "USD",
	"eur":  "EUR",
	"€":    "EUR",
	"gbp":  "GBP",
	"£":    "GBP",
	"sar":  "SAR",
	"ر.س":  "SAR",
	"ر.س.": "SAR",
	"aed":  "AED",
	"د.إ":  "AED",
}

// Price is a parsed price: the numeric value, the ISO currency and the raw
// substring it was read from.
type Price struct {
	Value    *float64
	Currency string
	Raw      string
}

// ContainsPrice reports whether text has a currency-tagged number anywhere.
func ContainsPrice(text string) bool {
	return priceRe.MatchString(text)
}

// FindPrice returns the first currency-tagged price in text. A token with
// numbers on both sides belongs to the one after it, so "PlayStation 5 EGP
// 25,000" reads as "EGP 25,000".
func FindPrice(text string) (Price, bool) {
	loc := priceRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Price{}, false
	}
	start, end := loc[0], loc[1]
	var token, number string
	if loc[2] >= 0 {
		token, number = text[loc[2]:loc[3]], text[loc[4]:loc[5]]
	} else {
		number, token = text[loc[6]:loc[7]], text[loc[8]:loc[9]]
		if m := leadingNumberRe.FindStringSubmatchIndex(text[loc[9]:]); m != nil {
			start, end = loc[8], loc[9]+m[1]
			number = text[loc[9]+m[2] : loc[9]+m[3]]
		}
	}
	p := Price{
		Currency: NormalizeCurrency(token),
		Raw:      strings.TrimSpace(text[start:end]),
	}
	if v, ok := ParseNumber(number); ok {
		p.Value = &v
	}
	return p, true
}

// PriceFromElement reads a price from text known to be a price, such as the
// content of a hinted price element. A currency token is preferred; a bare
// number is accepted with an empty currency.
func PriceFromElement(text string) (Price, bool) {
	text = collapseSpace(text)
	if p, ok := FindPrice(text); ok {
		return p, true
	}
	raw := bareNumberRe.FindString(text)
	if raw == "" {
		return Price{}, false
	}
	v, ok := ParseNumber(raw)
	if !ok {
		return Price{}, false
	}
	return Price{Value: &v, Raw: raw}, true
}

// NormalizeCurrency maps a currency token or code to its ISO code. Unknown
// tokens are returned upper-cased.
func NormalizeCurrency(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if code, ok := currencyCodes[t]; ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(token))
}

// ParseNumber parses a price number with thousands and decimal separators.
//
//	"1,299.50" -> 1299.5   "1.299,50" -> 1299.5
//	"1,299"    -> 1299     "12,50"    -> 12.5
//	"1.299.000"-> 1299000  "229.00"   -> 229
//
// A lone "." is always a decimal point.
func ParseNumber(s string) (float64, bool) {
	s = asciiDigits(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// asciiDigits rewrites Arabic-Indic digits and Arabic separators to ASCII.
func asciiDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r == '٬':
			b.WriteRune(',')
		case r == '٫':
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
