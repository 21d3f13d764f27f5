package extract

import (
	"encoding/json"
	"errors"
	nurl "net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// errNoMarkup is returned for content that has no HTML elements at all.
var errNoMarkup = errors.New("content has no markup")

// Document is a parsed product page shared by every strategy of one
// extraction. Expensive views are computed on first use.
type Document struct {
	URL  string
	HTML string
	Doc  *goquery.Document

	textOnce sync.Once
	text     string

	ldOnce   sync.Once
	products []map[string]any

	siteOnce sync.Once
	siteName string
}

// NewDocument parses rawHTML. It fails only when the content cannot be read
// as HTML at all.
func NewDocument(rawHTML, pageURL string) (*Document, error) {
	if !strings.Contains(rawHTML, "<") {
		return nil, errNoMarkup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	if doc.Find("body *, head *").Length() == 0 {
		return nil, errNoMarkup
	}
	return &Document{URL: pageURL, HTML: rawHTML, Doc: doc}, nil
}

// VisibleText returns the body text with scripts and styles skipped and a
// space between adjacent text nodes.
func (d *Document) VisibleText() string {
	d.textOnce.Do(func() {
		var b strings.Builder
		for _, n := range d.Doc.Find("body").Nodes {
			collectText(n, &b)
		}
		if b.Len() == 0 {
			for _, n := range d.Doc.Nodes {
				collectText(n, &b)
			}
		}
		d.text = collapseSpace(b.String())
	})
	return d.text
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "head":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return collapseSpace(d.Doc.Find("title").First().Text())
}

// SiteName returns the publisher name detected by readability, or "".
func (d *Document) SiteName() string {
	d.siteOnce.Do(func() {
		u, err := nurl.Parse(d.URL)
		if err != nil {
			return
		}
		article, err := readability.FromReader(strings.NewReader(d.HTML), u)
		if err != nil {
			return
		}
		d.siteName = strings.TrimSpace(article.SiteName)
	})
	return d.siteName
}

// Products returns every JSON-LD object typed Product, in document order.
// Malformed blocks are skipped.
func (d *Document) Products() []map[string]any {
	d.ldOnce.Do(func() {
		d.Doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			var v any
			if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
				return
			}
			collectProducts(v, &d.products)
		})
	})
	return d.products
}

func collectProducts(v any, out *[]map[string]any) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectProducts(item, out)
		}
	case map[string]any:
		if hasType(t["@type"], "Product") {
			*out = append(*out, t)
			return
		}
		if graph, ok := t["@graph"]; ok {
			collectProducts(graph, out)
		}
		if main, ok := t["mainEntity"]; ok {
			collectProducts(main, out)
		}
	}
}

func hasType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want) || strings.HasSuffix(strings.ToLower(t), "/"+strings.ToLower(want))
	case []any:
		for _, item := range t {
			if hasType(item, want) {
				return true
			}
		}
	}
	return false
}

// Meta returns the content of the first meta tag whose property or name is key.
func (d *Document) Meta(key string) string {
	var content string
	d.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		if prop == "" {
			prop, _ = s.Attr("name")
		}
		if !strings.EqualFold(prop, key) {
			return true
		}
		c, _ := s.Attr("content")
		content = strings.TrimSpace(c)
		return content == ""
	})
	return content
}
