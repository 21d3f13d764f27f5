package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pricewatch/models"
)

// Field is one extracted value. Which members are set depends on the field:
// Text for names, Price for prices, Status for availability.
type Field struct {
	Text   string
	Price  Price
	Status models.Status
}

// FieldStrategy is one layer of a field's extraction chain.
type FieldStrategy interface {
	Name() string
	TryExtract(doc *Document) (Field, bool)
}

// Layer names, used in debug logs.
const (
	LayerHint      = "hint"
	LayerJSONLD    = "jsonld"
	LayerMicrodata = "microdata"
	LayerMeta      = "meta"
	LayerGeneric   = "generic"
	LayerFreeText  = "freetext"
)

type strategyFunc struct {
	name string
	fn   func(*Document) (Field, bool)
}

func (s strategyFunc) Name() string                           { return s.name }
func (s strategyFunc) TryExtract(doc *Document) (Field, bool) { return s.fn(doc) }

// --- hint layer ---

// selectFirstText returns the text of the first non-empty match of sel.
// Invalid selectors were rejected at config load; a bad one here is a miss.
func selectFirstText(doc *Document, sel string) string {
	if sel == "" {
		return ""
	}
	matcher, err := cascadia.Compile(sel)
	if err != nil {
		return ""
	}
	var text string
	doc.Doc.FindMatcher(matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = elementText(s)
		return text == ""
	})
	return text
}

// elementText prefers a content attribute (meta, itemprop) over the text.
func elementText(s *goquery.Selection) string {
	if c, ok := s.Attr("content"); ok && strings.TrimSpace(c) != "" {
		return collapseSpace(c)
	}
	return collapseSpace(s.Text())
}

func hintName(sel string) FieldStrategy {
	return strategyFunc{LayerHint, func(doc *Document) (Field, bool) {
		t := selectFirstText(doc, sel)
		return Field{Text: t}, t != ""
	}}
}

func hintPrice(sel string) FieldStrategy {
	return strategyFunc{LayerHint, func(doc *Document) (Field, bool) {
		p, ok := PriceFromElement(selectFirstText(doc, sel))
		return Field{Price: p}, ok
	}}
}

func hintAvailability(sel string) FieldStrategy {
	return strategyFunc{LayerHint, func(doc *Document) (Field, bool) {
		t := selectFirstText(doc, sel)
		if t == "" {
			return Field{}, false
		}
		st := ClassifyAvailability(t)
		return Field{Status: st}, st != models.StatusUnknown
	}}
}

// --- structured layer: JSON-LD ---

func jsonLDName() FieldStrategy {
	return strategyFunc{LayerJSONLD, func(doc *Document) (Field, bool) {
		for _, p := range doc.Products() {
			if n := collapseSpace(stringOf(p["name"])); n != "" {
				return Field{Text: n}, true
			}
		}
		return Field{}, false
	}}
}

func jsonLDPrice() FieldStrategy {
	return strategyFunc{LayerJSONLD, func(doc *Document) (Field, bool) {
		for _, p := range doc.Products() {
			for _, offer := range offersOf(p) {
				raw := stringOf(offer["price"])
				if raw == "" {
					raw = stringOf(offer["lowPrice"])
				}
				currency := stringOf(offer["priceCurrency"])
				if spec, ok := offer["priceSpecification"].(map[string]any); ok && raw == "" {
					raw = stringOf(spec["price"])
					if currency == "" {
						currency = stringOf(spec["priceCurrency"])
					}
				}
				if raw == "" {
					continue
				}
				if pr, ok := structuredPrice(raw, currency); ok {
					return Field{Price: pr}, true
				}
			}
		}
		return Field{}, false
	}}
}

func jsonLDAvailability() FieldStrategy {
	return strategyFunc{LayerJSONLD, func(doc *Document) (Field, bool) {
		for _, p := range doc.Products() {
			for _, offer := range offersOf(p) {
				if st := schemaAvailability(stringOf(offer["availability"])); st != models.StatusUnknown {
					return Field{Status: st}, true
				}
			}
		}
		return Field{}, false
	}}
}

// offersOf returns the product's offers whether given as an object, an
// array or an AggregateOffer with nested offers.
func offersOf(product map[string]any) []map[string]any {
	var out []map[string]any
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			out = append(out, t)
			if nested, ok := t["offers"]; ok {
				walk(nested)
			}
		}
	}
	walk(product["offers"])
	return out
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		// {"@id": ...} or {"name": ...}
		if s, ok := t["name"].(string); ok {
			return strings.TrimSpace(s)
		}
		if s, ok := t["@id"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		if len(t) > 0 {
			return stringOf(t[0])
		}
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
	return ""
}

// structuredPrice builds a Price from machine-readable price and currency
// values. Raw keeps the price text as it appeared.
func structuredPrice(raw, currency string) (Price, bool) {
	p, ok := PriceFromElement(raw)
	if !ok {
		return Price{}, false
	}
	p.Raw = collapseSpace(raw)
	if currency != "" {
		p.Currency = NormalizeCurrency(currency)
	}
	return p, true
}

// --- structured layer: microdata ---

func microdataName() FieldStrategy {
	return strategyFunc{LayerMicrodata, func(doc *Document) (Field, bool) {
		t := selectFirstText(doc, `[itemtype*="schema.org/Product"] [itemprop="name"]`)
		return Field{Text: t}, t != ""
	}}
}

func microdataPrice() FieldStrategy {
	return strategyFunc{LayerMicrodata, func(doc *Document) (Field, bool) {
		raw := selectFirstText(doc, `[itemprop="price"], [itemprop="lowPrice"]`)
		if raw == "" {
			return Field{}, false
		}
		p, ok := structuredPrice(raw, selectFirstText(doc, `[itemprop="priceCurrency"]`))
		return Field{Price: p}, ok
	}}
}

func microdataAvailability() FieldStrategy {
	return strategyFunc{LayerMicrodata, func(doc *Document) (Field, bool) {
		var st models.Status = models.StatusUnknown
		doc.Doc.Find(`[itemprop="availability"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, ok := s.Attr("href")
			if !ok {
				v = elementText(s)
			}
			st = schemaAvailability(v)
			return st == models.StatusUnknown
		})
		return Field{Status: st}, st != models.StatusUnknown
	}}
}

// --- structured layer: meta tags ---

func metaName() FieldStrategy {
	return strategyFunc{LayerMeta, func(doc *Document) (Field, bool) {
		t := doc.Meta("og:title")
		if t == "" {
			return Field{}, false
		}
		t = TrimSiteSuffix(t, doc.siteNameHint(), models.HostOf(doc.URL))
		return Field{Text: t}, t != ""
	}}
}

func metaPrice() FieldStrategy {
	return strategyFunc{LayerMeta, func(doc *Document) (Field, bool) {
		for _, pair := range [][2]string{
			{"product:price:amount", "product:price:currency"},
			{"og:price:amount", "og:price:currency"},
		} {
			raw := doc.Meta(pair[0])
			if raw == "" {
				continue
			}
			if p, ok := structuredPrice(raw, doc.Meta(pair[1])); ok {
				return Field{Price: p}, true
			}
		}
		return Field{}, false
	}}
}

func metaAvailability() FieldStrategy {
	return strategyFunc{LayerMeta, func(doc *Document) (Field, bool) {
		for _, key := range []string{"product:availability", "og:availability"} {
			if st := schemaAvailability(doc.Meta(key)); st != models.StatusUnknown {
				return Field{Status: st}, true
			}
		}
		return Field{}, false
	}}
}

// --- generic pattern layer ---

const (
	genericNameSel  = `[class*="product-title"], [class*="product-name"], [class*="product_title"], [class*="product_name"], [id*="product-title"], [id*="product-name"]`
	genericPriceSel = `[class*="price"], [id*="price"]`
	genericStockSel = `[class*="stock"], [class*="availability"], [id*="stock"], [id*="availability"]`
)

// strikeThrough marks elements holding a previous or compare-at price.
var strikeThrough = []string{"old", "compare", "was-", "before", "original", "strike"}

func genericName() FieldStrategy {
	return strategyFunc{LayerGeneric, func(doc *Document) (Field, bool) {
		t := selectFirstText(doc, genericNameSel)
		return Field{Text: t}, t != ""
	}}
}

func genericPrice() FieldStrategy {
	return strategyFunc{LayerGeneric, func(doc *Document) (Field, bool) {
		var found Price
		var ok bool
		doc.Doc.Find(genericPriceSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			// Innermost price elements only; wrappers often hold both prices.
			if isStale(s) || s.Find(genericPriceSel).Length() > 0 {
				return true
			}
			found, ok = FindPrice(collapseSpace(s.Text()))
			return !ok
		})
		return Field{Price: found}, ok
	}}
}

func isStale(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "del" || goquery.NodeName(s) == "s" || s.Closest("del, s").Length() > 0 {
		return true
	}
	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, marker := range strikeThrough {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

func genericAvailability() FieldStrategy {
	return strategyFunc{LayerGeneric, func(doc *Document) (Field, bool) {
		var st models.Status = models.StatusUnknown
		doc.Doc.Find(genericStockSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			st = ClassifyAvailability(s.Text())
			return st == models.StatusUnknown
		})
		return Field{Status: st}, st != models.StatusUnknown
	}}
}

// --- free text layer ---

func freeTextName() FieldStrategy {
	return strategyFunc{LayerFreeText, func(doc *Document) (Field, bool) {
		if h1 := selectFirstText(doc, "h1"); h1 != "" {
			return Field{Text: h1}, true
		}
		t := TrimSiteSuffix(doc.Title(), doc.siteNameHint(), models.HostOf(doc.URL))
		return Field{Text: t}, t != ""
	}}
}

func freeTextPrice() FieldStrategy {
	return strategyFunc{LayerFreeText, func(doc *Document) (Field, bool) {
		p, ok := FindPrice(doc.VisibleText())
		return Field{Price: p}, ok
	}}
}

func freeTextAvailability() FieldStrategy {
	return strategyFunc{LayerFreeText, func(doc *Document) (Field, bool) {
		st := ClassifyAvailability(doc.VisibleText())
		return Field{Status: st}, st != models.StatusUnknown
	}}
}

// siteNameHint prefers og:site_name and falls back to readability.
func (d *Document) siteNameHint() string {
	if n := d.Meta("og:site_name"); n != "" {
		return n
	}
	return d.SiteName()
}
