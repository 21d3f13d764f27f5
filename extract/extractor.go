// Package extract turns a product page into a ProductRecord using an ordered
// chain of heuristic strategies per field: site hints, structured data,
// generic markup patterns and finally free text.
package extract

import (
	"log/slog"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// Extractor builds product records. It is safe for concurrent use.
type Extractor struct {
	now func() time.Time
}

// New creates an Extractor stamping records with the wall clock.
func New() *Extractor {
	return &Extractor{now: time.Now}
}

// NewWithClock creates an Extractor with a custom capture clock.
func NewWithClock(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

// Chains holds the ordered strategies for each field.
type Chains struct {
	Name         []FieldStrategy
	Price        []FieldStrategy
	Availability []FieldStrategy
}

// ChainsFor returns the strategy chains for a site. Hint strategies lead
// when the site configures selectors.
func ChainsFor(site models.SiteConfig) Chains {
	var c Chains
	if site.Selectors.Name != "" {
		c.Name = append(c.Name, hintName(site.Selectors.Name))
	}
	if site.Selectors.Price != "" {
		c.Price = append(c.Price, hintPrice(site.Selectors.Price))
	}
	if site.Selectors.Availability != "" {
		c.Availability = append(c.Availability, hintAvailability(site.Selectors.Availability))
	}
	c.Name = append(c.Name, jsonLDName(), microdataName(), metaName(), genericName(), freeTextName())
	c.Price = append(c.Price, jsonLDPrice(), microdataPrice(), metaPrice(), genericPrice(), freeTextPrice())
	c.Availability = append(c.Availability, jsonLDAvailability(), microdataAvailability(), metaAvailability(), genericAvailability(), freeTextAvailability())
	return c
}

// Extract derives one record from a fetched page. It never fails: a failed
// fetch or unparseable document yields an Error record carrying the URL,
// and fields no layer could find are left empty.
func (e *Extractor) Extract(page models.PageResult, site models.SiteConfig) models.ProductRecord {
	at := e.now().UTC()
	if !page.OK {
		return models.ErrorRecord(site.Name(), page.URL, at)
	}

	doc, err := NewDocument(page.HTML, page.BaseURL())
	if err != nil {
		slog.Warn("unparseable page",
			"site", site.Name(), "url", page.URL,
			"error", models.NewScrapeError(models.ErrCodeUnexpectedMarkup, "cannot parse document", err))
		return models.ErrorRecord(site.Name(), page.URL, at)
	}

	rec := e.fromDocument(doc, site)
	rec.CapturedAt = at
	rec.Site = site.Name()
	rec.URL = page.URL
	return rec
}

func (e *Extractor) fromDocument(doc *Document, site models.SiteConfig) models.ProductRecord {
	chains := ChainsFor(site)
	rec := models.ProductRecord{Status: models.StatusUnknown}

	if f, ok := runChain(doc, "name", chains.Name); ok {
		rec.Name = f.Text
	}
	if f, ok := runChain(doc, "price", chains.Price); ok {
		rec.Price = f.Price.Value
		rec.Currency = f.Price.Currency
		rec.RawPrice = f.Price.Raw
		if rec.Price == nil {
			// Keep the audit text but not a currency without a value.
			rec.Currency = ""
		}
	}
	if f, ok := runChain(doc, "availability", chains.Availability); ok {
		rec.Status = f.Status
	}
	return rec
}

// runChain tries each strategy in order; the first success wins.
func runChain(doc *Document, field string, chain []FieldStrategy) (Field, bool) {
	for _, s := range chain {
		if f, ok := s.TryExtract(doc); ok {
			return f, true
		}
		slog.Debug("extract layer miss", "url", doc.URL, "field", field, "layer", s.Name())
	}
	return Field{}, false
}
