package discover

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/use-agent/pricewatch/models"
)

const listingURL = "https://shop.example.com/collections/all"

const listingHTML = `<html><body>
<nav><a href="/">Home</a><a href="/cart">Cart</a><a href="/collections">All</a><a href="/pages/about">About</a></nav>
<div class="grid">
  <div class="card"><a href="/products/blue-mug">Blue Mug</a><span>EGP 229</span></div>
  <div class="card"><a href="/products/blue-mug#reviews">Reviews</a></div>
  <div class="card"><a href="https://www.shop.example.com/products/red-mug/?utm_source=x">Red Mug</a></div>
  <div class="card"><a href="/products/green-mug">Green Mug</a></div>
  <div class="card"><a href="https://other.example.com/products/x">Elsewhere</a></div>
  <div class="card"><a href="/collections/all?page=2">Next</a></div>
  <p><a href="mailto:sales@shop.example.com">Mail us</a></p>
  <p><a href="/cartoon-mug">Cartoon Mug</a></p>
</div>
</body></html>`

func listingPage(html string) models.PageResult {
	return models.PageResult{URL: listingURL, FinalURL: listingURL, HTML: html, OK: true}
}

func urls(links []models.CandidateLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		if l.Index != i {
			return []string{"bad index"}
		}
		out[i] = l.URL
	}
	return out
}

var shop = models.SiteConfig{Host: "shop.example.com", BaseURL: listingURL}

func TestDiscover_PrefersProductLinks(t *testing.T) {
	t.Parallel()
	got := urls(Discover(listingPage(listingHTML), shop, 50))
	want := []string{
		"https://shop.example.com/products/blue-mug",
		"https://www.shop.example.com/products/red-mug/?utm_source=x",
		"https://shop.example.com/products/green-mug",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover =\n%v\nwant\n%v", got, want)
	}
}

func TestDiscover_RespectsLimit(t *testing.T) {
	t.Parallel()
	for _, limit := range []int{1, 2, 3, 10} {
		links := Discover(listingPage(listingHTML), shop, limit)
		want := min(limit, 3)
		if len(links) != want {
			t.Errorf("limit %d: got %d links, want %d", limit, len(links), want)
		}
	}
	if links := Discover(listingPage(listingHTML), shop, 0); links != nil {
		t.Errorf("limit 0 should yield nothing, got %v", links)
	}
}

func TestDiscover_CardHint(t *testing.T) {
	t.Parallel()
	site := shop
	site.Selectors.Card = ".card"
	got := urls(Discover(listingPage(listingHTML), site, 50))
	if len(got) != 3 || got[0] != "https://shop.example.com/products/blue-mug" {
		t.Errorf("card hint links = %v", got)
	}
}

func TestDiscover_CardHintGroup(t *testing.T) {
	t.Parallel()
	html := `<html><body>
<ul><li class="tile"><span>New</span><a href="/products/a">A</a></li></ul>
<article class="card"><a href="/products/b">B</a></article>
<a href="/products/c">C</a>
</body></html>`
	tests := []struct {
		name string
		card string
		want []string
	}{
		{"selector group", "li.tile, article.card", []string{
			"https://shop.example.com/products/a",
			"https://shop.example.com/products/b",
		}},
		{"invalid hint uses every anchor", "li[", []string{
			"https://shop.example.com/products/a",
			"https://shop.example.com/products/b",
			"https://shop.example.com/products/c",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			site := shop
			site.Selectors.Card = tt.card
			if got := urls(Discover(listingPage(html), site, 50)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Discover = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscover_IncludePaths(t *testing.T) {
	t.Parallel()
	site := shop
	site.IncludePaths = []string{"/cartoon"}
	got := urls(Discover(listingPage(listingHTML), site, 50))
	want := []string{"https://shop.example.com/cartoon-mug"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscover_FallsBackToAllKeptLinks(t *testing.T) {
	t.Parallel()
	html := `<ul><li><a href="/mug-1">Mug 1</a></li><li><a href="/mug-2">Mug 2</a></li><li><a href="/cart">Cart</a></li><li><a href="/cartoon">Toons</a></li></ul>`
	got := urls(Discover(listingPage(html), shop, 50))
	want := []string{
		"https://shop.example.com/mug-1",
		"https://shop.example.com/mug-2",
		"https://shop.example.com/cartoon",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscover_ExcludeOverride(t *testing.T) {
	t.Parallel()
	html := `<p><a href="/cart">Cart</a> <a href="/about-us">About</a></p>`

	if got := Discover(listingPage(html), shop, 50); len(got) != 0 {
		t.Errorf("default denylist kept %v", urls(got))
	}

	site := shop
	site.ExcludePaths = []string{}
	if got := Discover(listingPage(html), site, 50); len(got) != 2 {
		t.Errorf("empty site denylist should keep both links, got %v", urls(got))
	}
}

func TestDiscover_FailedOrEmptyPage(t *testing.T) {
	t.Parallel()
	if got := Discover(models.PageResult{URL: listingURL}, shop, 50); got != nil {
		t.Errorf("failed page yielded %v", got)
	}
	if got := Discover(listingPage(`<p>No links here</p>`), shop, 50); len(got) != 0 {
		t.Errorf("page without links yielded %v", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"https://WWW.Shop.example.com/products/a/?b=2&a=1&utm_campaign=z#x", "https://shop.example.com/products/a?a=1&b=2"},
		{"https://shop.example.com/products/a", "https://shop.example.com/products/a"},
		{"https://shop.example.com/", "https://shop.example.com"},
		{"http://shop.example.com/p?q=a+b", "http://shop.example.com/p?q=a+b"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := Normalize(u); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLooksLikeNonProduct(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/cart", true},
		{"/cart-items/3", true},
		{"/cartoon-mug", false},
		{"/account/orders", true},
		{"/pages/shipping", true},
		{"/collections", true},
		{"/collections/mugs/products/blue", false},
		{"/products/blue?page=2", true},
		{"/products/blue", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse("https://shop.example.com" + tt.path)
		if got := looksLikeNonProduct(u, DefaultExcludePaths); got != tt.want {
			t.Errorf("looksLikeNonProduct(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
