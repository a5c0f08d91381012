package ics

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"w2wcal/internal/model"
)

var (
	// Longer names first so "September" is not cut to "Sep".
	monthDateRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|Sept|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+([0-9]{1,2})(?:st|nd|rd|th)?\b(?:,?\s*([0-9]{4})\b)?`)

	// A trailing "T" is consumed so "2025-11-20T09:00" leaves "09:00" for the time scan.
	isoDateRe = regexp.MustCompile(`\b([0-9]{4})-([0-9]{2})-([0-9]{2})(?:T|\b)`)

	// "11:00 AM - 1:45 PM", "11am-1:45pm", "11-13:45", "9 to 5".
	timeRangeRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)[\s\-–—to]{1,4}(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)\b`)
	// Same shapes with the meridiem captured separately: "11 am to 1:45 pm".
	timeRangeSplitRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?)\s*(am|pm)?\s*(?:-|to|–|—)\s*(\d{1,2}(?::\d{2})?)\s*(am|pm)?\b`)
	// A lone time needs a minute part or a meridiem; bare numbers are not times.
	singleTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm))\b`)
	timeTokenRe  = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

	monthsByName = map[string]time.Month{
		"jan": time.January, "january": time.January,
		"feb": time.February, "february": time.February,
		"mar": time.March, "march": time.March,
		"apr": time.April, "april": time.April,
		"may": time.May,
		"jun": time.June, "june": time.June,
		"jul": time.July, "july": time.July,
		"aug": time.August, "august": time.August,
		"sep": time.September, "sept": time.September, "september": time.September,
		"oct": time.October, "october": time.October,
		"nov": time.November, "november": time.November,
		"dec": time.December, "december": time.December,
	}
)

// Extraction is what the free-text heuristic found. Start and End are nil
// when absent.
type Extraction struct {
	Start         model.Temporal
	End           model.Temporal
	ReadableStart string
	ReadableEnd   string
}

// Extractor scans free text for date and time expressions.
type Extractor struct {
	// Local is the zone wall-clock times are built in.
	Local     *time.Location
	Formatter Formatter
	// Now supplies the year when a date omits it.
	Now func() time.Time
}

// dateMatch is a calendar date found in text, with the byte span it covered.
type dateMatch struct {
	year       int
	month      time.Month
	day        int
	start, end int
	text       string
}

// Extract returns ok=false when no usable date is present. A time without a
// date is not enough.
func (x Extractor) Extract(text string) (Extraction, bool) {
	local := x.Local
	if local == nil {
		local = time.Local
	}
	now := x.Now
	if now == nil {
		now = time.Now
	}

	norm := strings.Join(strings.Fields(text), " ")
	if norm == "" {
		return Extraction{}, false
	}

	dm, ok := findDate(norm, now().In(local).Year())
	if !ok {
		return Extraction{}, false
	}
	// The date's own digits must not be read back as hours.
	rest := norm[:dm.start] + " " + norm[dm.end:]

	startTok, endTok, ok := findTimeRange(rest)
	if !ok {
		startTok, ok = findSingleTime(rest)
	}

	var out Extraction
	if !ok {
		day := time.Date(dm.year, dm.month, dm.day, 0, 0, 0, 0, local)
		out.Start = model.Date{ISODate: day.Format("2006-01-02"), Source: dm.text}
		out.ReadableStart = x.Formatter.Date(day)
		return out, true
	}

	h, m, _ := parseTimeToken(startTok)
	start := time.Date(dm.year, dm.month, dm.day, h, m, 0, 0, local)
	out.Start = model.DateTime{Instant: start, Source: dm.text + " " + startTok}
	out.ReadableStart = x.Formatter.DateTime(start)

	if endTok != "" {
		h, m, _ := parseTimeToken(endTok)
		end := time.Date(dm.year, dm.month, dm.day, h, m, 0, 0, local)
		out.End = model.DateTime{Instant: end, Source: dm.text + " " + endTok}
		out.ReadableEnd = x.Formatter.DateTime(end)
	}

	return out, true
}

// findDate tries a month-name date, then an ISO-like numeric date.
func findDate(text string, defaultYear int) (dateMatch, bool) {
	if dm, ok := findMonthNameDate(text, defaultYear); ok {
		return dm, true
	}
	return findISODate(text)
}

func findMonthNameDate(text string, defaultYear int) (dateMatch, bool) {
	loc := monthDateRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return dateMatch{}, false
	}
	month, ok := monthsByName[strings.ToLower(text[loc[2]:loc[3]])]
	if !ok {
		return dateMatch{}, false
	}
	day, _ := strconv.Atoi(text[loc[4]:loc[5]])
	year := defaultYear
	if loc[6] >= 0 {
		year, _ = strconv.Atoi(text[loc[6]:loc[7]])
	}
	return newDateMatch(year, month, day, loc[0], loc[1], text)
}

func findISODate(text string) (dateMatch, bool) {
	loc := isoDateRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return dateMatch{}, false
	}
	year, _ := strconv.Atoi(text[loc[2]:loc[3]])
	month, _ := strconv.Atoi(text[loc[4]:loc[5]])
	day, _ := strconv.Atoi(text[loc[6]:loc[7]])
	dm, ok := newDateMatch(year, time.Month(month), day, loc[0], loc[1], text)
	if ok {
		dm.text = text[loc[0]:loc[7]]
	}
	return dm, ok
}

// newDateMatch rejects impossible dates such as Feb 30 or month 13.
func newDateMatch(year int, month time.Month, day, start, end int, text string) (dateMatch, bool) {
	if month < time.January || month > time.December || day < 1 {
		return dateMatch{}, false
	}
	if time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Day() != day {
		return dateMatch{}, false
	}
	return dateMatch{
		year:  year,
		month: month,
		day:   day,
		start: start,
		end:   end,
		text:  text[start:end],
	}, true
}

// findTimeRange returns the start and end tokens of the first valid
// "time separator time" expression.
func findTimeRange(text string) (string, string, bool) {
	for _, m := range timeRangeRe.FindAllStringSubmatch(text, -1) {
		start, end := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if validTokens(start, end) {
			return start, end, true
		}
	}
	for _, m := range timeRangeSplitRe.FindAllStringSubmatch(text, -1) {
		start, end := m[1]+m[2], m[3]+m[4]
		if validTokens(start, end) {
			return start, end, true
		}
	}
	return "", "", false
}

// findSingleTime returns the first standalone time expression.
func findSingleTime(text string) (string, bool) {
	for _, m := range singleTimeRe.FindAllStringSubmatch(text, -1) {
		tok := strings.TrimSpace(m[1])
		if _, _, ok := parseTimeToken(tok); ok {
			return tok, true
		}
	}
	return "", false
}

func validTokens(tokens ...string) bool {
	for _, tok := range tokens {
		if _, _, ok := parseTimeToken(tok); !ok {
			return false
		}
	}
	return true
}

// parseTimeToken reads "11", "1:45pm", "13:30" or "12 AM". Without a
// meridiem the hour is taken literally; with one, 12-hour rules apply.
func parseTimeToken(tok string) (hour, minute int, ok bool) {
	m := timeTokenRe.FindStringSubmatch(strings.TrimSpace(tok))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, 0, false
	}

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour > 12 {
			return 0, 0, false
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}
