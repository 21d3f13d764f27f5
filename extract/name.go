package extract

import (
	"strings"

	"github.com/use-agent/pricewatch/models"
)

// titleSeparators split a page title into product and site parts.
var titleSeparators = []string{" | ", " - ", " – ", " — ", " :: ", " » "}

// TrimSiteSuffix removes a site-name segment from either end of a page
// title, e.g. "Blue Mug | Shop" -> "Blue Mug". siteName may be empty; the
// host and its first label are always tried.
func TrimSiteSuffix(title, siteName, host string) string {
	title = collapseSpace(title)
	if title == "" {
		return ""
	}

	names := siteNames(siteName, host)
	for _, sep := range titleSeparators {
		if !strings.Contains(title, sep) {
			continue
		}
		parts := strings.Split(title, sep)
		if len(parts) > 1 && matchesSite(parts[len(parts)-1], names) {
			parts = parts[:len(parts)-1]
		} else if len(parts) > 1 && matchesSite(parts[0], names) {
			parts = parts[1:]
		}
		title = strings.TrimSpace(strings.Join(parts, sep))
	}
	return title
}

func siteNames(siteName, host string) []string {
	var names []string
	if n := NormalizeText(siteName); n != "" {
		names = append(names, n)
	}
	host = models.NormalizeHost(host)
	if host != "" {
		names = append(names, host)
		if label, _, ok := strings.Cut(host, "."); ok && label != "" {
			names = append(names, label)
		}
	}
	return names
}

func matchesSite(segment string, names []string) bool {
	seg := NormalizeText(segment)
	if seg == "" {
		return false
	}
	compact := strings.ReplaceAll(seg, " ", "")
	for _, n := range names {
		if seg == n || compact == strings.ReplaceAll(n, " ", "") {
			return true
		}
	}
	return false
}
