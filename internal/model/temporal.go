package model

import (
	"encoding/json"
	"time"
)

// TemporalKind tags a Temporal value.
type TemporalKind string

const (
	KindDate     TemporalKind = "date"
	KindDateTime TemporalKind = "datetime"
	KindUnknown  TemporalKind = "unknown"
)

// Temporal is the normalized form of a date or date-time property. The only
// implementations are Date, DateTime and Unknown.
type Temporal interface {
	Kind() TemporalKind
	// Original is the source text the value was parsed from.
	Original() string

	sealed()
}

// Date is a calendar date with no time of day.
type Date struct {
	ISODate string // YYYY-MM-DD
	Source  string
}

// DateTime is a resolved instant. TZID is carried through as metadata only.
type DateTime struct {
	Instant time.Time
	Source  string
	TZID    string
}

// Unknown is a value the parser could not recognize.
type Unknown struct {
	Source string
}

func (Date) Kind() TemporalKind     { return KindDate }
func (DateTime) Kind() TemporalKind { return KindDateTime }
func (Unknown) Kind() TemporalKind  { return KindUnknown }

func (d Date) Original() string     { return d.Source }
func (d DateTime) Original() string { return d.Source }
func (u Unknown) Original() string  { return u.Source }

func (Date) sealed()     {}
func (DateTime) sealed() {}
func (Unknown) sealed()  {}

// MatchTemporal dispatches on the concrete variant. Every call site has to
// supply all three handlers.
func MatchTemporal[R any](t Temporal, onDate func(Date) R, onDateTime func(DateTime) R, onUnknown func(Unknown) R) R {
	switch v := t.(type) {
	case Date:
		return onDate(v)
	case DateTime:
		return onDateTime(v)
	case Unknown:
		return onUnknown(v)
	default:
		// nil interface
		return onUnknown(Unknown{})
	}
}

// IsRecognized reports whether t holds a usable date or date-time.
func IsRecognized(t Temporal) bool {
	if t == nil {
		return false
	}
	return t.Kind() != KindUnknown
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     TemporalKind `json:"type"`
		ISODate  string       `json:"iso_date"`
		Original string       `json:"original"`
	}{KindDate, d.ISODate, d.Source})
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     TemporalKind `json:"type"`
		Date     time.Time    `json:"date"`
		Original string       `json:"original"`
		TZID     *string      `json:"tzid"`
	}{KindDateTime, d.Instant, d.Source, optional(d.TZID)})
}

func (u Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     TemporalKind `json:"type"`
		Original string       `json:"original"`
	}{KindUnknown, u.Source})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
