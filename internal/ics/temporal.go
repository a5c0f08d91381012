package ics

import (
	"regexp"
	"strings"
	"time"

	"w2wcal/internal/model"
)

const (
	layoutDate     = "20060102"
	layoutUTC      = "20060102T150405Z"
	layoutLocal    = "20060102T150405"
	layoutLocalMin = "20060102T1504"
)

var (
	dateOnlyRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	// VALUE=DATE values are matched more leniently: dashed ISO dates and a
	// trailing time part are tolerated, only the date is kept.
	valueDateRe = regexp.MustCompile(`^(\d{4})-?(\d{2})-?(\d{2})(?:T\S*)?$`)
	utcRe       = regexp.MustCompile(`^\d{8}T\d{6}Z$`)
	localRe     = regexp.MustCompile(`^\d{8}T\d{6}$`)
	localMinRe  = regexp.MustCompile(`^\d{8}T\d{4}$`)
)

// ParseTemporal normalizes a DTSTART/DTEND value. Floating wall-clock values
// are interpreted in local; TZID is recorded but never changes that
// interpretation. Unrecognized input yields model.Unknown.
func ParseTemporal(raw string, params model.Params, local *time.Location) model.Temporal {
	if local == nil {
		local = time.Local
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return model.Unknown{Source: raw}
	}

	valueType, _ := params.Get("VALUE")
	if strings.EqualFold(valueType, "DATE") {
		if m := valueDateRe.FindStringSubmatch(v); m != nil {
			return dateFromParts(m[1], m[2], m[3], raw)
		}
		return model.Unknown{Source: raw}
	}
	if m := dateOnlyRe.FindStringSubmatch(v); m != nil {
		return dateFromParts(m[1], m[2], m[3], raw)
	}

	tzid, _ := params.Get("TZID")

	var (
		t   time.Time
		err error
	)
	switch {
	case utcRe.MatchString(v):
		t, err = time.Parse(layoutUTC, v)
	case localRe.MatchString(v):
		t, err = time.ParseInLocation(layoutLocal, v, local)
	case localMinRe.MatchString(v):
		t, err = time.ParseInLocation(layoutLocalMin, v, local)
	default:
		return model.Unknown{Source: raw}
	}
	if err != nil {
		// Right shape, impossible calendar values (month 13, hour 25, ...).
		return model.Unknown{Source: raw}
	}

	return model.DateTime{Instant: t, Source: raw, TZID: tzid}
}

func dateFromParts(year, month, day, raw string) model.Temporal {
	if _, err := time.Parse(layoutDate, year+month+day); err != nil {
		return model.Unknown{Source: raw}
	}
	return model.Date{ISODate: year + "-" + month + "-" + day, Source: raw}
}
