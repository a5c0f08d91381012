package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"w2wcal/internal/export"
)

// column returns the cell offset at which token starts in line.
func column(t *testing.T, line, token string) int {
	t.Helper()
	idx := strings.Index(line, token)
	require.GreaterOrEqual(t, idx, 0, "%q not in %q", token, line)
	return runewidth.StringWidth(line[:idx])
}

func TestTableAlignsWideText(t *testing.T) {
	var buf bytes.Buffer
	err := NewTable(&buf).Write([]export.Summary{
		{Start: "18:00 20/11/2025", End: "20:45 20/11/2025", Summary: "Line cook", Location: "Kitchen"},
		{Summary: "Phụ bếp ca tối", Location: "厨房", Heuristic: true},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.NotContains(t, buf.String(), "\x1b[")

	summaryCol := column(t, lines[0], "SUMMARY")
	assert.Equal(t, summaryCol, column(t, lines[1], "Line cook"))
	assert.Equal(t, summaryCol, column(t, lines[2], "Phụ bếp"))

	locationCol := column(t, lines[0], "LOCATION")
	assert.Equal(t, locationCol, column(t, lines[1], "Kitchen"))
	assert.Equal(t, locationCol, column(t, lines[2], "厨房"))

	assert.True(t, strings.HasPrefix(lines[2], "2  ? *"))
}

func TestTableColorHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTable(&buf).WithColor(true).Write(nil))
	assert.Contains(t, buf.String(), "\x1b[1m#")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\t\tc "))

	long := oneLine(strings.Repeat("x", 60))
	assert.True(t, strings.HasSuffix(long, "…"))
	assert.LessOrEqual(t, runewidth.StringWidth(long), maxCellWidth)
}
