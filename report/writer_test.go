package report

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/models"
)

var startedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func TestCreate_HeaderOnly(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")

	w, err := Create(dir, startedAt)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if want := filepath.Join(dir, "20260301_090000_scrape.txt"); w.Path() != want {
		t.Errorf("path = %q, want %q", w.Path(), want)
	}
	lines := readLines(t, w.Path())
	if len(lines) != 1 || lines[0] != Header {
		t.Errorf("lines = %q, want only the header", lines)
	}
}

func TestCreate_NeverOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	first, err := Create(dir, startedAt)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := Create(dir, startedAt)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	if first.Path() == second.Path() {
		t.Fatalf("two runs share %s", first.Path())
	}
	if !strings.HasSuffix(second.Path(), "20260301_090000_1_scrape.txt") {
		t.Errorf("second path = %q", second.Path())
	}
}

func TestWriter_WriteFlushClose(t *testing.T) {
	t.Parallel()
	w, err := Create(t.TempDir(), startedAt)
	if err != nil {
		t.Fatal(err)
	}

	recs := []models.ProductRecord{
		{CapturedAt: capturedAt, Site: "a.example", Name: "One", Status: models.StatusAvailable, Price: price(10), Currency: "USD", URL: "https://a.example/1", RawPrice: "$10"},
		models.ErrorRecord("a.example", "https://a.example/2", capturedAt),
	}
	if err := w.Write(recs...); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Flushed records are visible before Close.
	if lines := readLines(t, w.Path()); len(lines) != 3 {
		t.Errorf("after flush: %d lines, want 3", len(lines))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := w.Write(recs[0]); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if w.Count() != 2 {
		t.Errorf("count = %d, want 2", w.Count())
	}

	lines := readLines(t, w.Path())
	for i, rec := range recs {
		got, err := ParseLine(lines[i+1])
		if err != nil {
			t.Fatalf("line %d: %v", i+1, err)
		}
		if got.URL != rec.URL || got.Status != rec.Status {
			t.Errorf("line %d = %+v, want %+v", i+1, got, rec)
		}
	}
}

func TestWriter_ConcurrentWritesKeepLinesWhole(t *testing.T) {
	t.Parallel()
	w, err := Create(t.TempDir(), startedAt)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				rec := models.ProductRecord{CapturedAt: capturedAt, Site: "s", Status: models.StatusUnknown, URL: "https://s.example/" + string(rune('a'+i))}
				if err := w.Write(rec); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, w.Path())
	if len(lines) != 1+8*25 {
		t.Fatalf("%d lines, want %d", len(lines), 1+8*25)
	}
	for _, l := range lines[1:] {
		if _, err := SplitLine(l); err != nil {
			t.Errorf("corrupt line %q: %v", l, err)
		}
	}
}
