// Package export writes job records to an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cwygoda/autoapply/internal/domain"
)

const (
	jobsSheet    = "Jobs"
	historySheet = "History"
	timeLayout   = "2006-01-02 15:04:05"
)

var (
	jobsHeaders    = []string{"Job URL", "Title", "Status", "Explanation", "Last Updated", "Attempts"}
	historyHeaders = []string{"Job URL", "Timestamp", "Status", "Explanation"}
)

// WriteXLSX writes one row per record to the Jobs sheet and one row per
// transition to the History sheet.
func WriteXLSX(w io.Writer, records []domain.JobRecord, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Jobs
	if err := f.SetSheetName(f.GetSheetName(0), jobsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}
	if idx, _ := f.GetSheetIndex(jobsSheet); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for sheet, headers := range map[string][]string{jobsSheet: jobsHeaders, historySheet: historyHeaders} {
		if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, bold)
		_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	row, hrow := 2, 2
	for i := range records {
		r := &records[i]
		if err := writeRow(f, jobsSheet, row, []any{
			r.ID, r.Title, string(r.Status()), truncate(r.Explanation(), 500), formatTime(r.LastUpdated()), r.Attempts(),
		}); err != nil {
			return err
		}
		row++
		for _, h := range r.History {
			if err := writeRow(f, historySheet, hrow, []any{
				r.ID, formatTime(h.Timestamp), string(h.Status), truncate(h.Explanation, 500),
			}); err != nil {
				return err
			}
			hrow++
		}
	}

	_ = f.SetColWidth(jobsSheet, "A", "A", 60) // url
	_ = f.SetColWidth(jobsSheet, "B", "B", 36) // title
	_ = f.SetColWidth(jobsSheet, "C", "C", 24) // status
	_ = f.SetColWidth(jobsSheet, "D", "D", 60) // explanation
	_ = f.SetColWidth(jobsSheet, "E", "F", 20) // updated, attempts

	_ = f.SetColWidth(historySheet, "A", "A", 60) // url
	_ = f.SetColWidth(historySheet, "B", "C", 24) // time, status
	_ = f.SetColWidth(historySheet, "D", "D", 60) // explanation

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("export.xlsx.ok", "jobs", len(records), "history_rows", hrow-2, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
