// Package discover finds candidate product-detail links on a listing page.
package discover

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/models"
)

// DefaultExcludePaths are path fragments of pages that are never products.
// A site's ExcludePaths replace this list.
var DefaultExcludePaths = []string{
	"/cart", "/checkout", "/login", "/account", "/register", "/wishlist",
	"/search", "/contact", "/about", "/blog", "/policies", "/privacy",
	"/terms", "/faq", "/help", "/signin", "/signup", "/logout", "/pages/",
}

// productPathHints mark a path as a product-detail page.
var productPathHints = []string{"/product", "/products/", "/item", "/p/", "/sku", "/dp/"}

// categoryRoots are listing roots; only the bare root is excluded, deeper
// paths under them may still be products.
var categoryRoots = []string{"/category", "/categories", "/collections", "/shop"}

// maxContextLen bounds the parent text used as an anchor's context; a
// larger parent is a layout container, not a product card.
const maxContextLen = 400

type anchor struct {
	url     *url.URL
	context string
}

// Discover returns up to limit candidate links from a listing page, in
// first-seen order and de-duplicated by normalized URL. A failed page
// yields no links.
func Discover(page models.PageResult, site models.SiteConfig, limit int) []models.CandidateLink {
	if !page.OK || limit <= 0 {
		return nil
	}
	base, err := url.Parse(page.BaseURL())
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		slog.Warn("discover: cannot parse listing", "url", page.URL, "error", err)
		return nil
	}

	host := site.Host
	if host == "" {
		host = models.HostOf(page.BaseURL())
	}

	anchors := cardAnchors(doc, site.Selectors.Card, base)
	if len(anchors) == 0 {
		anchors = pageAnchors(doc, base)
	}

	exclude := DefaultExcludePaths
	if site.ExcludePaths != nil {
		exclude = site.ExcludePaths
	}

	var kept []anchor
	for _, a := range anchors {
		if !sameHost(a.url, host) {
			continue
		}
		if len(site.IncludePaths) > 0 {
			if hasAnyPrefix(a.url.Path, site.IncludePaths) {
				kept = append(kept, a)
			}
			continue
		}
		if looksLikeNonProduct(a.url, exclude) {
			continue
		}
		kept = append(kept, a)
	}

	// Without include hints, prefer links that look like product pages when
	// there are any.
	if len(site.IncludePaths) == 0 {
		var products []anchor
		for _, a := range kept {
			if looksLikeProduct(a) {
				products = append(products, a)
			}
		}
		if len(products) > 0 {
			kept = products
		}
	}

	seen := make(map[string]struct{}, len(kept))
	links := make([]models.CandidateLink, 0, min(limit, len(kept)))
	for _, a := range kept {
		key := Normalize(a.url)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, models.CandidateLink{URL: a.url.String(), Index: len(links)})
		if len(links) == limit {
			break
		}
	}

	slog.Debug("discovered links", "site", site.Name(), "anchors", len(anchors), "candidates", len(links))
	return links
}

// cardAnchors takes the first link of every element matching the card hint.
func cardAnchors(doc *goquery.Document, cardSel string, base *url.URL) []anchor {
	if cardSel == "" {
		return nil
	}
	matcher, err := cascadia.Compile(cardSel)
	if err != nil {
		return nil
	}
	var out []anchor
	doc.FindMatcher(matcher).Each(func(_ int, card *goquery.Selection) {
		link := card
		if goquery.NodeName(card) != "a" {
			link = card.Find("a[href]").First()
		}
		if u := resolve(link, base); u != nil {
			out = append(out, anchor{url: u, context: card.Text()})
		}
	})
	return out
}

// pageAnchors returns every resolvable anchor of the page. The context is
// the anchor's parent text, where listing cards usually show the price.
func pageAnchors(doc *goquery.Document, base *url.URL) []anchor {
	var out []anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u := resolve(s, base)
		if u == nil {
			return
		}
		context := s.Parent().Text()
		if len(context) > maxContextLen {
			context = s.Text()
		}
		out = append(out, anchor{url: u, context: context})
	})
	return out
}

// resolve returns the absolute http(s) URL of the anchor, without fragment.
func resolve(s *goquery.Selection, base *url.URL) *url.URL {
	href, ok := s.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	u, err := base.Parse(href)
	if err != nil {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u
}

func sameHost(u *url.URL, host string) bool {
	return models.NormalizeHost(u.Hostname()) == models.NormalizeHost(host)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// looksLikeNonProduct applies the denylist: the site root, denylisted path
// fragments, bare category roots and pagination links.
func looksLikeNonProduct(u *url.URL, exclude []string) bool {
	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	if path == "" {
		return true
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, frag := range exclude {
		if matchesFragment(path, segments, strings.ToLower(frag)) {
			return true
		}
	}
	for _, root := range categoryRoots {
		if path == root {
			return true
		}
	}
	return u.Query().Has("page")
}

// matchesFragment matches a single-segment fragment such as "/cart" against
// whole path segments ("/cart", "/cart-items", not "/cartoon"); longer
// fragments match as substrings.
func matchesFragment(path string, segments []string, frag string) bool {
	seg := strings.Trim(frag, "/")
	if seg == "" {
		return false
	}
	if strings.Contains(seg, "/") {
		return strings.Contains(path+"/", frag)
	}
	for _, s := range segments {
		if s == seg || strings.HasPrefix(s, seg+"-") {
			return true
		}
	}
	return false
}

func looksLikeProduct(a anchor) bool {
	path := strings.ToLower(a.url.Path)
	for _, hint := range productPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return extract.ContainsPrice(a.context)
}

// Normalize returns the de-duplication key of u: lowercase host without
// "www.", no fragment, no trailing slash, and the query sorted with utm_*
// tracking parameters removed.
func Normalize(u *url.URL) string {
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(models.NormalizeHost(u.Host))
	b.WriteString(strings.TrimSuffix(u.EscapedPath(), "/"))
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		vals := q[k]
		sort.Strings(vals)
		for j, v := range vals {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
