package models

import "time"

// Status is the availability state written to the report.
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusUnavailable Status = "Unavailable"
	StatusUnknown     Status = "Unknown"
	StatusError       Status = "Error"
)

// ParseStatus maps a report value back to a Status. Unknown strings map to
// StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusAvailable, StatusUnavailable, StatusError:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// ProductRecord is one line of the report: one per attempted candidate link.
// Records are never mutated after they are handed to the sink.
type ProductRecord struct {
	CapturedAt time.Time
	Site       string
	Name       string
	Status     Status
	Price      *float64
	Currency   string
	URL        string
	RawPrice   string
}

// HasPrice reports whether a numeric price was parsed.
func (r ProductRecord) HasPrice() bool {
	return r.Price != nil
}

// ErrorRecord builds the record emitted for a link whose page could not be
// fetched or parsed.
func ErrorRecord(site, url string, at time.Time) ProductRecord {
	return ProductRecord{
		CapturedAt: at,
		Site:       site,
		Status:     StatusError,
		URL:        url,
	}
}

// RunSummary aggregates one run for logs, the archive and the webhook.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	ReportPath string        `json:"report_path"`
	Mode       string        `json:"mode"`
	Sites      []SiteSummary `json:"sites"`
	Cancelled  bool          `json:"cancelled"`
}

// SiteSummary holds per-site counters.
type SiteSummary struct {
	Site       string `json:"site"`
	Candidates int    `json:"candidates"`
	Records    int    `json:"records"`
	Errors     int    `json:"errors"`
	WithPrice  int    `json:"with_price"`
	Escalated  int    `json:"escalated"`
}

// TotalRecords sums records across sites.
func (s RunSummary) TotalRecords() int {
	n := 0
	for _, site := range s.Sites {
		n += site.Records
	}
	return n
}
