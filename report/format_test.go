package report

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/models"
)

func price(v float64) *float64 { return &v }

var capturedAt = time.Date(2026, 3, 1, 10, 30, 5, 123456000, time.UTC)

func TestFormatLine(t *testing.T) {
	t.Parallel()
	rec := models.ProductRecord{
		CapturedAt: capturedAt,
		Site:       "shop.example.com",
		Name:       "Blue Mug",
		Status:     models.StatusAvailable,
		Price:      price(229),
		Currency:   "EGP",
		URL:        "https://shop.example.com/p/blue-mug",
		RawPrice:   "EGP 229",
	}
	want := "2026-03-01T10:30:05.123456 | shop.example.com | Blue Mug | Available | 229.00 | EGP | https://shop.example.com/p/blue-mug | EGP 229"
	if got := FormatLine(rec); got != want {
		t.Errorf("FormatLine =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatLine_ErrorRecord(t *testing.T) {
	t.Parallel()
	rec := models.ErrorRecord("shop.example.com", "https://shop.example.com/p/slow", capturedAt)
	want := "2026-03-01T10:30:05.123456 | shop.example.com |  | Error |  |  | https://shop.example.com/p/slow | "
	got := FormatLine(rec)
	if got != want {
		t.Errorf("FormatLine =\n%q\nwant\n%q", got, want)
	}
	for _, bad := range []string{"null", "N/A", "nil", "<nil>"} {
		if strings.Contains(got, bad) {
			t.Errorf("line contains placeholder %q: %s", bad, got)
		}
	}
}

func TestFormatLine_LocalTimeIsUTC(t *testing.T) {
	t.Parallel()
	cairo := time.FixedZone("EET", 2*60*60)
	rec := models.ProductRecord{CapturedAt: capturedAt.In(cairo), Status: models.StatusUnknown}
	if got := Fields(rec)[0]; got != "2026-03-01T10:30:05.123456" {
		t.Errorf("timestamp = %q, want the UTC rendering", got)
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, ""},
		{price(0), "0.00"},
		{price(229), "229.00"},
		{price(1299.5), "1299.50"},
		{price(19.999), "20.00"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice = %q, want %q", got, tt.want)
		}
	}
}

func TestEscapeField(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{"Mug | Large", "Mug ¦ Large"},
		{"a|b", "a¦b"},
		{"line one\nline two", "line one line two"},
		{"crlf\r\nend", "crlf end"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := EscapeField(tt.in); got != tt.want {
			t.Errorf("EscapeField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	recs := []models.ProductRecord{
		{
			CapturedAt: capturedAt,
			Site:       "shop.example.com",
			Name:       "كوب أزرق",
			Status:     models.StatusUnavailable,
			Price:      price(1299.5),
			Currency:   "EGP",
			URL:        "https://shop.example.com/p/mug?id=1&c=2",
			RawPrice:   "١٬٢٩٩٫٥٠ ج.م",
		},
		models.ErrorRecord("shop.example.com", "https://shop.example.com/p/2", capturedAt),
		{
			CapturedAt: capturedAt,
			Site:       "shop.example.com",
			Status:     models.StatusUnknown,
			URL:        "https://shop.example.com/p/3",
			RawPrice:   "call us",
		},
	}
	for _, rec := range recs {
		got, err := ParseLine(FormatLine(rec))
		if err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
		if !reflect.DeepEqual(got, rec) {
			t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
		}
	}
}

func TestRoundTrip_EscapedDelimiter(t *testing.T) {
	t.Parallel()
	rec := models.ProductRecord{
		CapturedAt: capturedAt,
		Site:       "shop.example.com",
		Name:       "Mug | Large\nEdition",
		Status:     models.StatusAvailable,
		URL:        "https://shop.example.com/p/1",
	}
	fields, err := SplitLine(FormatLine(rec))
	if err != nil {
		t.Fatalf("SplitLine: %v", err)
	}
	if fields[2] != "Mug ¦ Large Edition" {
		t.Errorf("name field = %q", fields[2])
	}
}

func TestSplitLine_WrongFieldCount(t *testing.T) {
	t.Parallel()
	if _, err := SplitLine("a | b | c"); err == nil {
		t.Error("expected an error for a short line")
	}
	if _, err := ParseLine(Header); err == nil {
		t.Error("the header is not a record")
	}
}
