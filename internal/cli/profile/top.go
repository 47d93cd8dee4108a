package profile

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/coral-mesh/coral-sampler/pkg/sampler/report"
)

var (
	topTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	topHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	topCell   = lipgloss.NewStyle().Padding(0, 1)
	topBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderTop prints the hottest functions of rep as a styled table.
func renderTop(w io.Writer, rep *report.Report, n int) {
	stats := rep.Top(n)
	total := rep.TotalWeight()

	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			strconv.FormatUint(s.Flat, 10),
			percent(s.Flat, total),
			strconv.FormatUint(s.Cum, 10),
			percent(s.Cum, total),
			s.Function,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(topBorder).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return topHeader
			}
			return topCell
		}).
		Headers("FLAT", "FLAT%", "CUM", "CUM%", "FUNCTION").
		Rows(rows...)

	fmt.Fprintln(w, topTitle.Render(fmt.Sprintf("Top %d functions (%d samples)", len(stats), total)))
	fmt.Fprintln(w, t)
}

func percent(v, total uint64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(v)*100/float64(total))
}
