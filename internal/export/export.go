// Package export flattens parsed events into the simple JSON shape the
// schedule viewer stores, and writes export documents.
package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"w2wcal/internal/fsutil"
	appLog "w2wcal/internal/log"
	"w2wcal/internal/model"
)

// Summary is one event reduced to the fields a schedule view needs.
type Summary struct {
	UID         string   `json:"uid,omitempty"`
	Summary     string   `json:"summary"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	StartISO    string   `json:"start_iso,omitempty"`
	EndISO      string   `json:"end_iso,omitempty"`
	AllDay      bool     `json:"all_day"`
	// Heuristic is true when start/end came from free text.
	Heuristic bool `json:"heuristic"`
}

// Calendar groups the events of one source.
type Calendar struct {
	ID     string              `json:"id"`
	Info   *model.CalendarInfo `json:"calendar,omitempty"`
	Events []Summary           `json:"events"`
}

// Document is the top-level export.
type Document struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Calendars   []Calendar `json:"calendars"`
}

// Summarize flattens records, keeping their order.
func Summarize(events []model.EventRecord) []Summary {
	out := make([]Summary, 0, len(events))
	for i := range events {
		ev := &events[i]
		s := Summary{
			UID:         ev.Text(model.PropUID),
			Summary:     ev.Text(model.PropSummary),
			Location:    ev.Text(model.PropLocation),
			Description: ev.Text(model.PropDescription),
			Start:       ev.DisplayStart,
			End:         ev.DisplayEnd,
			Heuristic:   ev.FallbackStart != "" || ev.FallbackEnd != "",
		}
		if cats, ok := ev.Field("CATEGORIES"); ok {
			s.Categories = append([]string(nil), cats.Values...)
		}
		if start, ok := ev.Start(); ok {
			s.StartISO = isoString(start)
			s.AllDay = start.Kind() == model.KindDate
		}
		if end, ok := ev.End(); ok {
			s.EndISO = isoString(end)
		}
		out = append(out, s)
	}
	return out
}

func isoString(t model.Temporal) string {
	return model.MatchTemporal(t,
		func(d model.Date) string { return d.ISODate },
		func(dt model.DateTime) string { return dt.Instant.Format(time.RFC3339) },
		func(model.Unknown) string { return "" },
	)
}

// Encode writes v as indented JSON.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding JSON")
}

// WriteFile stores doc at path atomically.
func WriteFile(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding export")
	}
	if err := fsutil.WriteFileAtomic(path, data, ".w2wcal-export-*.tmp"); err != nil {
		return err
	}

	count := 0
	for _, c := range doc.Calendars {
		count += len(c.Events)
	}
	appLog.Info("export written", "path", path, "calendars", len(doc.Calendars), "events", count)
	return nil
}
