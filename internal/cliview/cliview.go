// Package cliview renders visit summaries for the terminal.
package cliview

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/starford/passport/internal/index"
	"github.com/starford/passport/internal/visitlog"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2E7D32"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	kpiStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4CAF50")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E65100"))
)

// Summary renders the KPI panel, the per-country table and any rejected
// rows. Relative dates are computed against now.
func Summary(w io.Writer, s visitlog.Summary, countries []index.CountryStat, rejected []visitlog.RowError, now time.Time) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Passport"))
	b.WriteString("\n")
	b.WriteString(KPIs(s, now))
	b.WriteString("\n")
	if len(countries) > 0 {
		b.WriteString(CountryTable(countries, now))
		b.WriteString("\n")
	}
	if len(rejected) > 0 {
		b.WriteString(Rejected(rejected))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// KPIs renders the headline figures side by side.
func KPIs(s visitlog.Summary, now time.Time) string {
	latest := "never"
	if !s.LatestVisit.IsZero() {
		latest = fmt.Sprintf("%s (%s)", s.LatestVisit, relative(s.LatestVisit.Time(), now))
	}
	avg := "-"
	if s.Visits > 0 {
		avg = humanize.FtoaWithDigits(s.AverageRating, 2)
	}
	boxes := []string{
		kpi("Visits", humanize.Comma(int64(s.Visits))),
		kpi("Countries", humanize.Comma(int64(s.CountriesCovered))),
		kpi("Avg rating", avg),
		kpi("Latest visit", latest),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func kpi(label, value string) string {
	return kpiStyle.Render(labelStyle.Render(label) + "\n" + value)
}

// CountryTable renders one line per country, most visited first.
func CountryTable(countries []index.CountryStat, now time.Time) string {
	rows := make([][]string, len(countries))
	for i, c := range countries {
		rows[i] = []string{
			c.ISO3,
			c.Country,
			humanize.Comma(int64(c.Visits)),
			humanize.FtoaWithDigits(c.AverageRating, 2),
			humanize.FtoaWithDigits(c.BestRating, 2),
			relative(c.LatestVisit.Time(), now),
		}
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("ISO3", "COUNTRY", "VISITS", "AVG", "BEST", "LAST").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= 2 && col <= 4:
				return numberStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

// Rejected lists rows skipped on load.
func Rejected(rejected []visitlog.RowError) string {
	var b strings.Builder
	b.WriteString(warnStyle.Render(fmt.Sprintf("%d rejected %s", len(rejected), plural(len(rejected), "row", "rows"))))
	for _, r := range rejected {
		b.WriteString("\n  ")
		b.WriteString(r.String())
	}
	return b.String()
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if now.Sub(t) < 24*time.Hour && !t.After(now) {
		return "today"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
