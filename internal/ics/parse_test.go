package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"w2wcal/internal/model"
)

const sampleCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//WhenToWork//Schedule//EN\r\n" +
	"X-WR-CALNAME:My Shifts\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:shift-1@whentowork.com\r\n" +
	"DTSTART:20251120T110000Z\r\n" +
	"DTEND:20251120T134500Z\r\n" +
	"SUMMARY:Front Desk\\, Lobby\r\n" +
	"LOCATION:Main St\\; Floor 2\r\n" +
	"DESCRIPTION:Bring badge\\nAsk for Lan\r\n" +
	"  at reception\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday-1@whentowork.com\r\n" +
	"DTSTART;VALUE=DATE:20251225\r\n" +
	"SUMMARY:Closed\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:shift-2@whentowork.com\r\n" +
	"SUMMARY: Shift Nov 20, 2025 11:00 AM - 1:45 PM\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestParser() *Parser {
	f := NewFormatter(ict, "vi-VN")
	return NewParser(Options{
		Local:     ict,
		Formatter: &f,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, ict) },
	})
}

func TestParseCalendar(t *testing.T) {
	events := newTestParser().Parse(sampleCalendar)
	require.Len(t, events, 3)

	shift := events[0]
	assert.Equal(t, "shift-1@whentowork.com", shift.Text(model.PropUID))
	assert.Equal(t, "Front Desk, Lobby", shift.Text(model.PropSummary))
	assert.Equal(t, "Main St; Floor 2", shift.Text(model.PropLocation))
	assert.Equal(t, "Bring badge\nAsk for Lan at reception", shift.Text(model.PropDescription))

	start, ok := shift.Start()
	require.True(t, ok)
	assertInstant(t, time.Date(2025, 11, 20, 11, 0, 0, 0, time.UTC), requireDateTime(t, start).Instant)
	assert.Equal(t, "18:00 20/11/2025", shift.DisplayStart)
	assert.Equal(t, "20:45 20/11/2025", shift.DisplayEnd)
	assert.Empty(t, shift.FallbackStart)

	holiday := events[1]
	hs, ok := holiday.Start()
	require.True(t, ok)
	assert.Equal(t, model.Date{ISODate: "2025-12-25", Source: "20251225"}, hs)
	assert.Equal(t, "2025-12-25", holiday.DisplayStart)
	assert.Empty(t, holiday.DisplayEnd)

	heuristic := events[2]
	s, ok := heuristic.Start()
	require.True(t, ok)
	e, ok := heuristic.End()
	require.True(t, ok)
	assertInstant(t, time.Date(2025, 11, 20, 11, 0, 0, 0, ict), requireDateTime(t, s).Instant)
	assertInstant(t, time.Date(2025, 11, 20, 13, 45, 0, 0, ict), requireDateTime(t, e).Instant)
	assert.Equal(t, "11:00 20/11/2025", heuristic.FallbackStart)
	assert.Equal(t, "13:45 20/11/2025", heuristic.FallbackEnd)
	assert.Equal(t, "11:00 20/11/2025", heuristic.DisplayStart)
	assert.Equal(t, "13:45 20/11/2025", heuristic.DisplayEnd)
}

func TestParseBlockDuplicateProperties(t *testing.T) {
	ev := newTestParser().ParseBlock("CATEGORIES:Kitchen\nSUMMARY:Prep\nCATEGORIES:Morning\ncategories:Paid")

	cats, ok := ev.Field("CATEGORIES")
	require.True(t, ok)
	assert.True(t, cats.IsMulti())
	assert.Equal(t, []string{"Kitchen", "Morning", "Paid"}, cats.Values)

	summary, ok := ev.Field(model.PropSummary)
	require.True(t, ok)
	assert.False(t, summary.IsMulti())

	names := make([]string, 0, len(ev.AllProperties))
	for _, p := range ev.AllProperties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"CATEGORIES", "SUMMARY", "CATEGORIES", "CATEGORIES"}, names)
}

func TestParseBlockLines(t *testing.T) {
	block := "URL:https://whentowork.com/cgi-bin/w2w.dll/empshifts?a=1:2\n" +
		"no colon here\n" +
		"\n" +
		":missing name\n" +
		"attendee;cn=Bob Tran;RSVP;x-eq=a=b:mailto:bob@example.com\n" +
		"X-NOTE:keep a\\,b raw"

	ev := newTestParser().ParseBlock(block)
	require.Len(t, ev.AllProperties, 3)

	url := ev.AllProperties[0]
	assert.Equal(t, "URL", url.Name)
	assert.Equal(t, "https://whentowork.com/cgi-bin/w2w.dll/empshifts?a=1:2", url.Value)
	assert.Nil(t, url.Params)

	att := ev.AllProperties[1]
	assert.Equal(t, "ATTENDEE", att.Name)
	assert.Equal(t, "mailto:bob@example.com", att.Value)
	assert.Equal(t, model.Params{
		"CN":   {Value: "Bob Tran"},
		"RSVP": {Flag: true},
		"X-EQ": {Value: "a=b"},
	}, att.Params)

	assert.Equal(t, `keep a\,b raw`, ev.Text("X-NOTE"))
	assert.Equal(t, block, ev.RawBlock)
}

func TestUnescapeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"newline", `Line1\nLine2`, "Line1\nLine2"},
		{"upper newline", `Line1\NLine2`, "Line1\nLine2"},
		{"comma", `a\,b`, "a,b"},
		{"semicolon", `a\;b`, "a;b"},
		{"backslash", `a\\b`, `a\b`},
		{"escaped backslash before n is not a newline", `C:\\new`, `C:\new`},
		{"escaped backslash before comma", `x\\,y`, `x\,y`},
		{"unknown escape kept", `a\tb`, `a\tb`},
		{"trailing backslash kept", `end\`, `end\`},
		{"plain", "nothing to do", "nothing to do"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UnescapeText(tc.in))
		})
	}
}

func TestParseBlockHeuristicRules(t *testing.T) {
	p := newTestParser()

	t.Run("recognized DTSTART suppresses heuristic", func(t *testing.T) {
		ev := p.ParseBlock("DTSTART:20251120T090000\nSUMMARY:Dec 1, 2025 10am-2pm")
		assert.Empty(t, ev.FallbackStart)
		s, _ := ev.Start()
		assertInstant(t, time.Date(2025, 11, 20, 9, 0, 0, 0, ict), requireDateTime(t, s).Instant)
		_, hasEnd := ev.End()
		assert.False(t, hasEnd)
	})

	t.Run("unknown DTSTART is replaced", func(t *testing.T) {
		ev := p.ParseBlock("DTSTART:tomorrow\nSUMMARY:Dec 1, 2025 10am-2pm")
		s, _ := ev.Start()
		assertInstant(t, time.Date(2025, 12, 1, 10, 0, 0, 0, ict), requireDateTime(t, s).Instant)
		assert.Equal(t, "10:00 01/12/2025", ev.DisplayStart)
	})

	t.Run("description wins over summary", func(t *testing.T) {
		ev := p.ParseBlock("SUMMARY:Dec 1, 2025 10am-2pm\nDESCRIPTION:Shift Dec 2, 2025 8-12")
		s, _ := ev.Start()
		assertInstant(t, time.Date(2025, 12, 2, 8, 0, 0, 0, ict), requireDateTime(t, s).Instant)
	})

	t.Run("blank description falls back to summary", func(t *testing.T) {
		ev := p.ParseBlock("DESCRIPTION:\nSUMMARY:Shift Nov 20, 2025 11:00 AM - 1:45 PM")
		s, ok := ev.Start()
		require.True(t, ok)
		assertInstant(t, time.Date(2025, 11, 20, 11, 0, 0, 0, ict), requireDateTime(t, s).Instant)
		e, ok := ev.End()
		require.True(t, ok)
		assertInstant(t, time.Date(2025, 11, 20, 13, 45, 0, 0, ict), requireDateTime(t, e).Instant)
		assert.Equal(t, "11:00 20/11/2025", ev.DisplayStart)
	})

	t.Run("date-only heuristic displays the ISO date", func(t *testing.T) {
		ev := p.ParseBlock("SUMMARY:Inventory Dec 1, 2025")
		assert.Equal(t, "2025-12-01", ev.DisplayStart)
		assert.Equal(t, "01/12/2025", ev.FallbackStart)
		assert.Empty(t, ev.DisplayEnd)
	})

	t.Run("nothing usable leaves display unset", func(t *testing.T) {
		ev := p.ParseBlock("DTSTART:soon\nSUMMARY:Team lunch")
		s, ok := ev.Start()
		require.True(t, ok)
		assert.Equal(t, model.Unknown{Source: "soon"}, s)
		assert.Empty(t, ev.DisplayStart)
		assert.Empty(t, ev.FallbackStart)
	})

	t.Run("no text at all", func(t *testing.T) {
		ev := p.ParseBlock("UID:x")
		assert.Empty(t, ev.Parsed)
		assert.Empty(t, ev.DisplayStart)
		assert.Empty(t, ev.DisplayEnd)
	})
}

func TestParseIsIdempotent(t *testing.T) {
	p := newTestParser()
	assert.Equal(t, p.Parse(sampleCalendar), p.Parse(sampleCalendar))
}

func TestParseBytes(t *testing.T) {
	p := newTestParser()

	got := p.ParseBytes(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, p.ParseBytes([]byte{0x89, 'P', 'N', 'G', 0x00, 0x01}))

	withBOM := append([]byte("\xef\xbb\xbf"), []byte(sampleCalendar)...)
	assert.Len(t, p.ParseBytes(withBOM), 3)
}

func TestParseCalendarTextDefaults(t *testing.T) {
	events := ParseCalendarText("BEGIN:VEVENT\nDTSTART:20251120T110000Z\nEND:VEVENT")
	require.Len(t, events, 1)

	s, ok := events[0].Start()
	require.True(t, ok)
	assertInstant(t, time.Date(2025, 11, 20, 11, 0, 0, 0, time.UTC), requireDateTime(t, s).Instant)
	assert.Equal(t, "18:00 20/11/2025", events[0].DisplayStart)
}
