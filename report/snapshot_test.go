package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/use-agent/pricewatch/models"
)

func TestShouldSnapshot(t *testing.T) {
	t.Parallel()
	page := models.PageResult{HTML: "<p>x</p>", OK: true}
	priced := models.ProductRecord{Status: models.StatusAvailable, Price: price(5)}
	unpriced := models.ProductRecord{Status: models.StatusAvailable}

	if ShouldSnapshot(priced, page) {
		t.Error("a priced record needs no snapshot")
	}
	if !ShouldSnapshot(unpriced, page) {
		t.Error("a record without a price should be snapshotted")
	}
	if ShouldSnapshot(unpriced, models.PageResult{}) {
		t.Error("nothing to snapshot without HTML")
	}
}

func TestSnapshotWriter_Write(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	sw := NewSnapshotWriter(out)
	page := models.PageResult{
		URL:      "https://shop.example.com/p/1",
		FinalURL: "https://shop.example.com/p/1",
		HTML:     `<html><body><h1>Blue Mug</h1><p>Call for <a href="/contact">price</a></p></body></html>`,
		OK:       true,
		Path:     models.PathStatic,
	}

	path, err := sw.Write("shop.example.com", 7, page)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := filepath.Join(out, "snapshots", "shop.example.com", "007.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{"<!-- https://shop.example.com/p/1 (static) -->", "# Blue Mug", "Call for"} {
		if !strings.Contains(md, want) {
			t.Errorf("snapshot missing %q:\n%s", want, md)
		}
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"shop.example.com", "shop.example.com"},
		{"a/b:c", "a_b_c"},
		{"..", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
