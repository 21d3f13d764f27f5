package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// FileNameLayout names report files: <YYYYmmdd_HHMMSS>_scrape.txt.
const FileNameLayout = "20060102_150405"

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("report: writer closed")

// Writer appends records to one report file. It is safe for concurrent
// use; writes are serialized.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	path   string
	count  int
	closed bool
}

// Create makes the output directory, creates the run's report file named
// after startedAt and writes the header.
func Create(dir string, startedAt time.Time) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create dir %s: %w", dir, err)
	}

	stamp := startedAt.Format(FileNameLayout)
	var f *os.File
	var path string
	for i := 0; ; i++ {
		name := stamp + "_scrape.txt"
		if i > 0 {
			name = fmt.Sprintf("%s_%d_scrape.txt", stamp, i)
		}
		path = filepath.Join(dir, name)
		var err error
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i >= 100 {
			return nil, fmt.Errorf("report: create %s: %w", path, err)
		}
	}

	w := &Writer{f: f, w: bufio.NewWriter(f), path: path}
	if _, err := w.w.WriteString(Header + "\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("report: write header: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("report: write header: %w", err)
	}
	return w, nil
}

// Path returns the report file path.
func (w *Writer) Path() string { return w.path }

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Write appends records in order.
func (w *Writer) Write(recs ...models.ProductRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, rec := range recs {
		if _, err := w.w.WriteString(FormatLine(rec) + "\n"); err != nil {
			return fmt.Errorf("report: write: %w", err)
		}
		w.count++
	}
	return nil
}

// Flush writes buffered records to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Calling Close again is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.w.Flush()
	syncErr := w.f.Sync()
	closeErr := w.f.Close()
	if err := errors.Join(flushErr, syncErr, closeErr); err != nil {
		return fmt.Errorf("report: close %s: %w", w.path, err)
	}
	return nil
}
