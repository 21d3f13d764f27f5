package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/use-agent/pricewatch/models"
)

// SnapshotWriter dumps pages whose extraction degraded as Markdown under
// <dir>/snapshots/<site>/<index>.md, so heuristics can be tuned offline.
type SnapshotWriter struct {
	dir  string
	conv *converter.Converter
}

// NewSnapshotWriter creates a SnapshotWriter rooted at outDir.
func NewSnapshotWriter(outDir string) *SnapshotWriter {
	return &SnapshotWriter{
		dir: filepath.Join(outDir, "snapshots"),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// ShouldSnapshot reports whether rec is worth a snapshot: the page was
// fetched but no price was found, or it was fetched and still failed.
func ShouldSnapshot(rec models.ProductRecord, page models.PageResult) bool {
	if page.HTML == "" {
		return false
	}
	return !rec.HasPrice() || rec.Status == models.StatusError
}

// Write converts page to Markdown and stores it. It returns the file path.
func (s *SnapshotWriter) Write(site string, index int, page models.PageResult) (string, error) {
	md, err := s.conv.ConvertString(page.HTML, converter.WithDomain(page.BaseURL()))
	if err != nil {
		return "", fmt.Errorf("report: snapshot markdown: %w", err)
	}

	dir := filepath.Join(s.dir, safeName(site))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%03d.md", index))

	var b strings.Builder
	fmt.Fprintf(&b, "<!-- %s (%s) -->\n\n", page.URL, page.Path)
	b.WriteString(md)
	b.WriteString("\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("report: snapshot write: %w", err)
	}
	return path, nil
}

// safeName keeps a site label usable as a directory name.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}
