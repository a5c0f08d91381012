// Package render prints parsed schedules for humans.
package render

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"w2wcal/internal/export"
)

const maxCellWidth = 40

var headers = []string{"#", "START", "END", "SUMMARY", "LOCATION"}

// Table writes events as aligned columns. Widths are measured in terminal
// cells so Vietnamese and CJK text lines up.
type Table struct {
	w     io.Writer
	color bool
}

// NewTable colours the header only when w is a terminal.
func NewTable(w io.Writer) *Table {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = term.IsTerminal(int(f.Fd()))
	}
	return &Table{w: w, color: useColor}
}

// WithColor forces colour on or off.
func (t *Table) WithColor(on bool) *Table {
	t.color = on
	return t
}

// Write renders one row per event. Events without a display start show "?".
func (t *Table) Write(events []export.Summary) error {
	rows := make([][]string, 0, len(events))
	for i, ev := range events {
		start := ev.Start
		if start == "" {
			start = "?"
		}
		if ev.Heuristic {
			start += " *"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			start,
			ev.End,
			oneLine(ev.Summary),
			oneLine(ev.Location),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	bold := color.New(color.Bold)
	if t.color {
		bold.EnableColor()
	} else {
		bold.DisableColor()
	}

	if _, err := io.WriteString(t.w, formatRow(headers, widths, bold.Sprint)); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := io.WriteString(t.w, formatRow(row, widths, nil)); err != nil {
			return err
		}
	}
	return nil
}

// formatRow pads on plain text width before styling so escape codes do not
// skew the alignment.
func formatRow(cells []string, widths []int, style func(...any) string) string {
	var sb strings.Builder
	for i, cell := range cells {
		pad := widths[i] - runewidth.StringWidth(cell)
		if style != nil {
			cell = style(cell)
		}
		sb.WriteString(cell)
		if i < len(cells)-1 {
			sb.WriteString(strings.Repeat(" ", pad+2))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, maxCellWidth, "…")
}
