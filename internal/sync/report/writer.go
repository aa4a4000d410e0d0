package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	cycle "trainsync/internal/sync/domain"
)

// Writer stores cycle reports as XLSX and PDF files under a directory.
type Writer struct {
	dir    string
	logger *log.Logger
}

// NewWriter constructs a writer. The directory is created on first write.
func NewWriter(dir string, logger *log.Logger) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("report: empty dir")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Write renders both formats and returns the XLSX path.
func (w *Writer) Write(ctx context.Context, report *cycle.CycleReport) (string, error) {
	_ = ctx
	if report == nil || report.RunID == "" {
		return "", errors.New("report: missing run id")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	base := fmt.Sprintf("cycle-%s-%s", report.StartedAt.UTC().Format("20060102T150405Z"), report.RunID)

	xlsx, err := BuildXLSX(report)
	if err != nil {
		return "", err
	}
	xlsxPath := filepath.Join(w.dir, base+".xlsx")
	if err := os.WriteFile(xlsxPath, xlsx, 0o644); err != nil {
		return "", err
	}

	pdf, err := BuildPDF(report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(w.dir, base+".pdf"), pdf, 0o644); err != nil {
		return "", err
	}
	w.logger.Printf("report: wrote %s", xlsxPath)
	return xlsxPath, nil
}
