package ics

import (
	"time"

	"golang.org/x/text/language"
)

const (
	DefaultDisplayZone = "Asia/Ho_Chi_Minh"
	DefaultLocale      = "vi-VN"
)

// shortLayouts mirror the "short" date and date+time styles of a locale.
type shortLayouts struct {
	dateTime string
	date     string
}

// supportedLocales and localeLayouts are index aligned. The first entry is
// the fallback for locales the matcher cannot place.
var (
	supportedLocales = []language.Tag{
		language.Vietnamese,
		language.AmericanEnglish,
		language.BritishEnglish,
		language.German,
		language.French,
		language.Japanese,
		language.Chinese,
	}
	localeLayouts = []shortLayouts{
		{dateTime: "15:04 02/01/2006", date: "02/01/2006"},
		{dateTime: "1/2/06, 3:04 PM", date: "1/2/06"},
		{dateTime: "02/01/2006, 15:04", date: "02/01/2006"},
		{dateTime: "02.01.06, 15:04", date: "02.01.06"},
		{dateTime: "02/01/2006 15:04", date: "02/01/2006"},
		{dateTime: "2006/01/02 15:04", date: "2006/01/02"},
		{dateTime: "2006/1/2 15:04", date: "2006/1/2"},
	}
	localeMatcher = language.NewMatcher(supportedLocales)
)

// Formatter renders instants for display in a fixed zone and locale.
type Formatter struct {
	loc     *time.Location
	tag     language.Tag
	layouts shortLayouts
}

// NewFormatter builds a Formatter. A nil loc means time.Local; an
// unparseable or unsupported locale falls back to Vietnamese.
func NewFormatter(loc *time.Location, locale string) Formatter {
	if loc == nil {
		loc = time.Local
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = supportedLocales[0]
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		idx = 0
	}
	return Formatter{
		loc:     loc,
		tag:     supportedLocales[idx],
		layouts: localeLayouts[idx],
	}
}

// DefaultFormatter formats in Asia/Ho_Chi_Minh with vi-VN layouts.
func DefaultFormatter() Formatter {
	return NewFormatter(LoadLocationOr(DefaultDisplayZone, time.FixedZone("ICT", 7*60*60)), DefaultLocale)
}

// Location returns the display zone.
func (f Formatter) Location() *time.Location { return f.loc }

// Locale returns the matched locale tag.
func (f Formatter) Locale() language.Tag { return f.tag }

// DateTime formats t as short date+time in the display zone.
func (f Formatter) DateTime(t time.Time) string {
	return t.In(f.loc).Format(f.layouts.dateTime)
}

// Date formats the civil date of t (in t's own location) as a short date.
// Date-only values are not shifted into the display zone.
func (f Formatter) Date(t time.Time) string {
	return t.Format(f.layouts.date)
}

// LoadLocationOr loads an IANA zone, returning fallback when the name is
// empty or cannot be resolved.
func LoadLocationOr(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
