package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/use-agent/pricewatch/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Availability vocabulary, matched against NormalizeText output.
var (
	unavailableRe = regexp.MustCompile(`out of stock|out-of-stock|sold out|soldout|unavailable|not available|غير متاح|غير متوفر|نفدت الكمية|نفذت الكمية|نفد من المخزون|نفذ من المخزون`)
	availableRe   = regexp.MustCompile(`in stock|in-stock|instock|available|متاح|متوفر`)
)

// NormalizeText folds case and width, strips Arabic diacritics and tatweel,
// and collapses whitespace so bilingual keywords match reliably.
func NormalizeText(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.Is(unicode.Mn, r) || r == tatweel
		})),
		norm.NFKC,
		cases.Fold(),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	return collapseSpace(out)
}

// ClassifyAvailability returns the status named by the leftmost availability
// phrase in text. When a negative and a positive phrase start at the same
// position the negative wins. No phrase yields StatusUnknown.
func ClassifyAvailability(text string) models.Status {
	t := NormalizeText(text)
	neg := unavailableRe.FindStringIndex(t)
	pos := availableRe.FindStringIndex(t)
	switch {
	case neg == nil && pos == nil:
		return models.StatusUnknown
	case pos == nil:
		return models.StatusUnavailable
	case neg == nil:
		return models.StatusAvailable
	case neg[0] <= pos[0]:
		// Also covers a positive inside a negative, as in "unavailable".
		return models.StatusUnavailable
	default:
		return models.StatusAvailable
	}
}

// schemaAvailability maps schema.org availability values and common meta
// tag spellings to a status.
func schemaAvailability(v string) models.Status {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.LastIndex(v, "/"); i >= 0 {
		v = v[i+1:]
	}
	v = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(v)
	switch v {
	case "instock", "limitedavailability", "onlineonly", "instoreonly", "preorder", "presale", "backorder", "available":
		return models.StatusAvailable
	case "outofstock", "soldout", "discontinued", "unavailable", "oos":
		return models.StatusUnavailable
	case "":
		return models.StatusUnknown
	default:
		return ClassifyAvailability(v)
	}
}
