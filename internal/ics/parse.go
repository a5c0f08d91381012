package ics

import (
	"bytes"
	"strings"
	"time"

	"w2wcal/internal/model"
)

// textProperties carry free text and get backslash unescaping.
var textProperties = map[string]bool{
	"DESCRIPTION": true,
	"SUMMARY":     true,
	"LOCATION":    true,
	"COMMENT":     true,
	"CATEGORIES":  true,
	"ORGANIZER":   true,
	"ATTENDEE":    true,
}

// Options configures a Parser. Zero values mean process-local time, the
// default display formatter and the wall clock.
type Options struct {
	// Local is the zone floating DTSTART/DTEND values and heuristic
	// times are interpreted in.
	Local     *time.Location
	Formatter *Formatter
	Now       func() time.Time
}

// Parser turns calendar text into event records. It holds no mutable state
// and is safe for concurrent use.
type Parser struct {
	local     *time.Location
	formatter Formatter
	extractor Extractor
}

// NewParser creates a Parser from opts.
func NewParser(opts Options) *Parser {
	local := opts.Local
	if local == nil {
		local = time.Local
	}
	f := DefaultFormatter()
	if opts.Formatter != nil {
		f = *opts.Formatter
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Parser{
		local:     local,
		formatter: f,
		extractor: Extractor{Local: local, Formatter: f, Now: now},
	}
}

// ParseCalendarText parses text with default options.
func ParseCalendarText(text string) []model.EventRecord {
	return NewParser(Options{}).Parse(text)
}

// ParseBytes parses raw file content. nil or binary input (NUL bytes)
// yields an empty result; a UTF-8 BOM is ignored.
func (p *Parser) ParseBytes(b []byte) []model.EventRecord {
	if b == nil || bytes.IndexByte(b, 0) >= 0 {
		return []model.EventRecord{}
	}
	return p.Parse(string(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))))
}

// Parse returns one record per complete VEVENT block, in input order.
func (p *Parser) Parse(text string) []model.EventRecord {
	blocks := SplitBlocks(text)
	events := make([]model.EventRecord, 0, len(blocks))
	for _, block := range blocks {
		events = append(events, p.ParseBlock(block))
	}
	return events
}

// ParseBlock decodes the body of a single VEVENT.
func (p *Parser) ParseBlock(block string) model.EventRecord {
	ev := model.EventRecord{
		Fields:        make(map[string]model.FieldValue),
		AllProperties: make([]model.Property, 0),
		Parsed:        make(map[string]model.Temporal),
		RawBlock:      block,
	}

	for _, line := range lineRe.Split(block, -1) {
		prop, raw, ok := parseLine(line)
		if !ok {
			continue
		}

		fv := ev.Fields[prop.Name]
		fv.Values = append(fv.Values, prop.Value)
		ev.Fields[prop.Name] = fv
		ev.AllProperties = append(ev.AllProperties, prop)

		if prop.Name == model.PropDTStart || prop.Name == model.PropDTEnd {
			ev.Parsed[prop.Name] = ParseTemporal(raw, prop.Params, p.local)
		}
	}

	if !model.IsRecognized(ev.Parsed[model.PropDTStart]) && !model.IsRecognized(ev.Parsed[model.PropDTEnd]) {
		p.applyHeuristic(&ev)
	}

	ev.DisplayStart = p.display(ev.Parsed[model.PropDTStart], ev.FallbackStart)
	ev.DisplayEnd = p.display(ev.Parsed[model.PropDTEnd], ev.FallbackEnd)

	return ev
}

func (p *Parser) applyHeuristic(ev *model.EventRecord) {
	// A blank DESCRIPTION counts as absent.
	text := strings.Join(ev.Fields[model.PropDescription].Values, " ")
	if strings.TrimSpace(text) == "" {
		text = strings.Join(ev.Fields[model.PropSummary].Values, " ")
	}

	found, ok := p.extractor.Extract(text)
	if !ok {
		return
	}
	if found.Start != nil {
		ev.Parsed[model.PropDTStart] = found.Start
		ev.FallbackStart = found.ReadableStart
	}
	if found.End != nil {
		ev.Parsed[model.PropDTEnd] = found.End
		ev.FallbackEnd = found.ReadableEnd
	}
}

// display never invents a time: unknown values without a fallback stay empty.
func (p *Parser) display(t model.Temporal, fallback string) string {
	if t == nil {
		return fallback
	}
	return model.MatchTemporal(t,
		func(d model.Date) string { return d.ISODate },
		func(dt model.DateTime) string { return p.formatter.DateTime(dt.Instant) },
		func(model.Unknown) string { return fallback },
	)
}

// parseLine splits "NAME;P=V;FLAG:value" at the first colon. raw is the
// value before unescaping.
func parseLine(line string) (prop model.Property, raw string, ok bool) {
	if line == "" {
		return prop, "", false
	}
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return prop, "", false
	}
	key, raw := line[:i], line[i+1:]

	parts := strings.Split(key, ";")
	prop.Name = strings.ToUpper(parts[0])
	prop.Params = parseParams(parts[1:])

	prop.Value = raw
	if textProperties[prop.Name] {
		prop.Value = UnescapeText(raw)
	}
	return prop, raw, true
}

func parseParams(parts []string) model.Params {
	if len(parts) == 0 {
		return nil
	}
	params := make(model.Params, len(parts))
	for _, part := range parts {
		name, value, hasValue := strings.Cut(part, "=")
		if name == "" {
			continue
		}
		name = strings.ToUpper(name)
		if !hasValue {
			params[name] = model.ParamValue{Flag: true}
			continue
		}
		params[name] = model.ParamValue{Value: value}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// UnescapeText resolves \n, \N, \, \; and \\ in a single left-to-right pass.
// Any other backslash is kept as is.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i+1])
		default:
			b.WriteByte(c)
			continue
		}
		i++
	}
	return b.String()
}
