package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	cycle "trainsync/internal/sync/domain"
)

// BuildPDF renders a one-page summary of a cycle followed by the failed trips.
func BuildPDF(report *cycle.CycleReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Sync Cycle Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", report.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", report.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duration: %s", report.Duration().Round(time.Millisecond)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stations: %d  Trips: %d", report.Stations, report.Trips))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Synced: %d  Partial: %d  Failed: %d",
		report.Count(cycle.TripSynced), report.Count(cycle.TripPartial), report.Count(cycle.TripFailed)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %d  Updated: %d", report.Created(), report.Updated()))
	pdf.Ln(5)
	if report.Fatal != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Aborted: %s", report.Fatal))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Trip", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Line", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Stage", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Error", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, outcome := range report.Outcomes {
		if outcome.Status == cycle.TripSynced {
			continue
		}
		pdf.CellFormat(50, 6, clip(outcome.TripID, 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, clip(outcome.LineName, 18), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, string(outcome.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, outcome.Stage, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, clip(outcome.Error, 40), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders a summary sheet and one row per trip.
func BuildXLSX(report *cycle.CycleReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	tripsSheet := "trips"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(tripsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Sync Cycle Report")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", report.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Started")
	_ = f.SetCellValue(summarySheet, "B4", report.StartedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Duration (s)")
	_ = f.SetCellValue(summarySheet, "B5", report.Duration().Seconds())
	_ = f.SetCellValue(summarySheet, "A6", "Stations")
	_ = f.SetCellValue(summarySheet, "B6", report.Stations)
	_ = f.SetCellValue(summarySheet, "A7", "Trips")
	_ = f.SetCellValue(summarySheet, "B7", report.Trips)
	_ = f.SetCellValue(summarySheet, "A8", "Synced")
	_ = f.SetCellValue(summarySheet, "B8", report.Count(cycle.TripSynced))
	_ = f.SetCellValue(summarySheet, "A9", "Partial")
	_ = f.SetCellValue(summarySheet, "B9", report.Count(cycle.TripPartial))
	_ = f.SetCellValue(summarySheet, "A10", "Failed")
	_ = f.SetCellValue(summarySheet, "B10", report.Count(cycle.TripFailed))
	_ = f.SetCellValue(summarySheet, "A11", "Aborted")
	_ = f.SetCellValue(summarySheet, "B11", report.Fatal)

	headers := []string{"Trip", "Line", "Status", "Stage", "Error Kind", "Error", "Train", "Cancelled", "Created", "Updated", "Composition", "Duration (ms)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(tripsSheet, cell, header)
	}
	for i, outcome := range report.Outcomes {
		row := i + 2
		values := []any{
			outcome.TripID,
			outcome.LineName,
			string(outcome.Status),
			outcome.Stage,
			outcome.ErrorKind,
			outcome.Error,
			outcome.TrainID,
			outcome.Cancelled,
			outcome.Created,
			outcome.Updated,
			outcome.Composition,
			outcome.Duration.Milliseconds(),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(tripsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
