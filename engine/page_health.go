package engine

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pricewatch/extract"
	"golang.org/x/net/html"
)

// DefaultMinTextLength is the visible-text threshold, in runes, below which
// a static page counts as under-rendered.
const DefaultMinTextLength = 200

// Escalation reasons, logged when Auto mode re-fetches dynamically.
const (
	ReasonThinText = "thin_text"
	ReasonNoPrice  = "no_price"
	ReasonSPAShell = "spa_shell"
)

// spaShellRe matches an empty client-side mount point.
var spaShellRe = regexp.MustCompile(`(?is)<div[^>]+id=["']?(root|app|__next|__nuxt|svelte)["']?[^>]*>\s*</div>`)

// EscalationPolicy decides whether a static page needs a headless render.
type EscalationPolicy struct {
	MinTextLength int
}

// NewEscalationPolicy creates a policy; minText <= 0 selects the default.
func NewEscalationPolicy(minText int) EscalationPolicy {
	if minText <= 0 {
		minText = DefaultMinTextLength
	}
	return EscalationPolicy{MinTextLength: minText}
}

// Check returns the first reason the page looks under-rendered, or "".
func (p EscalationPolicy) Check(htmlStr string) string {
	text := VisibleText(htmlStr)
	switch {
	case utf8.RuneCountInString(text) < p.MinTextLength:
		// An empty mount point only names the cause; alone it is not a signal.
		if spaShellRe.MatchString(htmlStr) {
			return ReasonSPAShell
		}
		return ReasonThinText
	case !extract.ContainsPrice(text) && !extract.ContainsPrice(htmlStr):
		return ReasonNoPrice
	}
	return ""
}

// NeedsEscalation reports whether Check found any reason.
func (p EscalationPolicy) NeedsEscalation(htmlStr string) bool {
	return p.Check(htmlStr) != ""
}

// VisibleText walks the HTML with the tokenizer and returns the text a
// reader would see: script, style and similar elements are skipped and
// whitespace is collapsed.
func VisibleText(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var b strings.Builder
	skip := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch {
			case string(tn) == "body":
				// An unclosed <head> must not hide the body.
				skip = 0
			case isHiddenTag(string(tn)):
				skip++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if isHiddenTag(string(tn)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isHiddenTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "template", "head", "svg":
		return true
	}
	return false
}
