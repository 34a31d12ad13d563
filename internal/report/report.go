// Package report renders job state as a terminal table.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/cwygoda/autoapply/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)

	appliedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Options filter and shape the report.
type Options struct {
	Status   domain.JobStatus
	MaxTitle int
	Now      time.Time
}

// Render writes a summary line and one table row per record.
func Render(w io.Writer, records []domain.JobRecord, opts Options) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.MaxTitle <= 0 {
		opts.MaxTitle = 40
	}

	counts := make(map[domain.JobStatus]int)
	var rows [][]string
	for i := range records {
		r := &records[i]
		st := r.Status()
		counts[st]++
		if opts.Status != "" && st != opts.Status {
			continue
		}
		rows = append(rows, []string{
			shorten(r.Title, opts.MaxTitle),
			string(st),
			humanize.RelTime(r.LastUpdated(), opts.Now, "ago", "from now"),
			fmt.Sprint(r.Attempts()),
			r.ID,
		})
	}

	statusCol := 1
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("TITLE", "STATUS", "UPDATED", "ERRORS", "URL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col != statusCol || row < 0 || row >= len(rows) {
				return cellStyle
			}
			st := domain.JobStatus(rows[row][statusCol])
			switch {
			case st == domain.StatusApplied:
				return cellStyle.Inherit(appliedStyle)
			case st.IsError():
				return cellStyle.Inherit(errorStyle)
			case st == domain.StatusNotRelevant:
				return cellStyle.Inherit(mutedStyle)
			}
			return cellStyle
		})

	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(Summary(len(records), counts)), t.Render())
	return err
}

// Summary is a one-line tally of statuses in canonical order.
func Summary(total int, counts map[domain.JobStatus]int) string {
	parts := []string{fmt.Sprintf("%s jobs", humanize.Comma(int64(total)))}
	for _, st := range domain.AllStatuses {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", st, n))
		}
	}
	return strings.Join(parts, " · ")
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
