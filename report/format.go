// Package report writes product records to the pipe-delimited run report.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// Delimiter separates fields on a line.
const Delimiter = " | "

// Header is the first line of every report.
const Header = "timestamp_iso | site_name | product_name | status | price_value | currency | product_url | raw_price_text"

// TimestampLayout is ISO-8601 with microseconds and no zone; values are UTC.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// FieldCount is the number of fields on a line.
const FieldCount = 8

// pipeReplacement stands in for "|" inside field values.
const pipeReplacement = "¦"

var fieldEscaper = strings.NewReplacer(
	"|", pipeReplacement,
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
)

// EscapeField makes s safe to place between delimiters.
func EscapeField(s string) string {
	return fieldEscaper.Replace(s)
}

// FormatPrice renders a price with two fractional digits, or "" when absent.
func FormatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

// Fields returns the 8 escaped fields of rec in report order.
func Fields(rec models.ProductRecord) []string {
	return []string{
		rec.CapturedAt.UTC().Format(TimestampLayout),
		EscapeField(rec.Site),
		EscapeField(rec.Name),
		EscapeField(string(rec.Status)),
		FormatPrice(rec.Price),
		EscapeField(rec.Currency),
		EscapeField(rec.URL),
		EscapeField(rec.RawPrice),
	}
}

// FormatLine renders rec as one report line, without the newline.
func FormatLine(rec models.ProductRecord) string {
	return strings.Join(Fields(rec), Delimiter)
}

// SplitLine splits a report line into its fields.
func SplitLine(line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, Delimiter)
	if len(fields) != FieldCount {
		return nil, fmt.Errorf("report: line has %d fields, want %d", len(fields), FieldCount)
	}
	return fields, nil
}

// ParseLine reads a report line back into a record.
func ParseLine(line string) (models.ProductRecord, error) {
	fields, err := SplitLine(line)
	if err != nil {
		return models.ProductRecord{}, err
	}

	at, err := time.Parse(TimestampLayout, fields[0])
	if err != nil {
		return models.ProductRecord{}, fmt.Errorf("report: timestamp %q: %w", fields[0], err)
	}

	rec := models.ProductRecord{
		CapturedAt: at,
		Site:       fields[1],
		Name:       fields[2],
		Status:     models.ParseStatus(fields[3]),
		Currency:   fields[5],
		URL:        fields[6],
		RawPrice:   fields[7],
	}
	if fields[4] != "" {
		v, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return models.ProductRecord{}, fmt.Errorf("report: price %q: %w", fields[4], err)
		}
		rec.Price = &v
	}
	return rec, nil
}
