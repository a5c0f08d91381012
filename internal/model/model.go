package model

import "encoding/json"

// ParamValue is a single property parameter. A bare parameter such as
// "RSVP" in "ATTENDEE;RSVP:..." has no '=' and is recorded as a flag.
type ParamValue struct {
	Value string
	Flag  bool
}

// MarshalJSON renders a flag as true and a regular parameter as its string.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.Flag {
		return []byte("true"), nil
	}
	return json.Marshal(p.Value)
}

// Params maps upper-cased parameter names to values. A property without
// parameters carries a nil Params.
type Params map[string]ParamValue

// Get returns the string value of a parameter and whether it was present
// as a NAME=VALUE pair. Flags report ok=false.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	if !ok || v.Flag {
		return "", false
	}
	return v.Value, true
}

// Property is one NAME;PARAMS:value line of an event block, in the order it
// was encountered.
type Property struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Params Params `json:"params"`
}

// FieldValue holds every value seen for one property name. The first
// occurrence makes it a scalar; further occurrences turn it into a sequence.
type FieldValue struct {
	Values []string
}

// IsMulti reports whether the property appeared more than once.
func (f FieldValue) IsMulti() bool {
	return len(f.Values) > 1
}

// First returns the first value, or "" if there is none.
func (f FieldValue) First() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// MarshalJSON keeps the scalar-vs-sequence shape consumers rely on.
func (f FieldValue) MarshalJSON() ([]byte, error) {
	if f.IsMulti() {
		return json.Marshal(f.Values)
	}
	return json.Marshal(f.First())
}

// EventRecord is the parsed representation of one VEVENT block.
type EventRecord struct {
	// Fields maps upper-cased property names to their value(s).
	Fields map[string]FieldValue `json:"fields"`

	// AllProperties preserves every property line, duplicates included.
	AllProperties []Property `json:"all_properties"`

	// Parsed holds the normalized DTSTART / DTEND values.
	Parsed map[string]Temporal `json:"parsed"`

	// FallbackStart / FallbackEnd are set only when the free-text heuristic
	// produced the start/end.
	FallbackStart string `json:"fallback_start,omitempty"`
	FallbackEnd   string `json:"fallback_end,omitempty"`

	// DisplayStart / DisplayEnd are locale formatted; empty means no
	// confident value exists.
	DisplayStart string `json:"display_start,omitempty"`
	DisplayEnd   string `json:"display_end,omitempty"`

	RawBlock string `json:"raw_block"`
}

// Field returns the values stored for name, if any.
func (e *EventRecord) Field(name string) (FieldValue, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Text returns the first value of a property, or "".
func (e *EventRecord) Text(name string) string {
	return e.Fields[name].First()
}

// Start returns the normalized DTSTART, if any.
func (e *EventRecord) Start() (Temporal, bool) {
	t, ok := e.Parsed[PropDTStart]
	return t, ok
}

// End returns the normalized DTEND, if any.
func (e *EventRecord) End() (Temporal, bool) {
	t, ok := e.Parsed[PropDTEnd]
	return t, ok
}

// Property names the parser treats specially.
const (
	PropDTStart     = "DTSTART"
	PropDTEnd       = "DTEND"
	PropSummary     = "SUMMARY"
	PropDescription = "DESCRIPTION"
	PropLocation    = "LOCATION"
	PropUID         = "UID"
)

// CalendarInfo carries VCALENDAR level metadata.
type CalendarInfo struct {
	ProdID      string `json:"prodid,omitempty"`
	Version     string `json:"version,omitempty"`
	Method      string `json:"method,omitempty"`
	Name        string `json:"name,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	StrictCount int    `json:"strict_event_count"`
}
