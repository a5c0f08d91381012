package ics

import (
	"strings"

	ical "github.com/arran4/golang-ical"
	"github.com/pkg/errors"

	appLog "w2wcal/internal/log"
	"w2wcal/internal/model"
)

// ReadCalendarInfo reads VCALENDAR level properties with a strict RFC5545
// parser. Feeds that the strict parser rejects still parse fine through
// Parser; callers should treat an error here as "no metadata".
func ReadCalendarInfo(text string) (model.CalendarInfo, error) {
	var info model.CalendarInfo

	cal, err := ical.ParseCalendar(strings.NewReader(text))
	if err != nil {
		return info, errors.Wrap(err, "strict calendar parse")
	}

	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case "PRODID":
			info.ProdID = p.Value
		case "VERSION":
			info.Version = p.Value
		case "METHOD":
			info.Method = p.Value
		case "X-WR-CALNAME":
			info.Name = p.Value
		case "X-WR-TIMEZONE":
			info.Timezone = p.Value
		}
	}
	info.StrictCount = len(cal.Events())

	return info, nil
}

// ParseDocument runs the tolerant parser and, when strict is set, the strict
// metadata read. A strict failure only costs the metadata.
func (p *Parser) ParseDocument(body []byte, strict bool) ([]model.EventRecord, *model.CalendarInfo) {
	events := p.ParseBytes(body)
	if !strict {
		return events, nil
	}

	info, err := ReadCalendarInfo(string(body))
	if err != nil {
		appLog.Debug("strict calendar read failed; continuing without metadata", "err", err)
		return events, nil
	}
	if info.StrictCount != len(events) {
		appLog.Warn("strict and tolerant event counts differ",
			"strict", info.StrictCount,
			"tolerant", len(events),
		)
	}
	return events, &info
}
