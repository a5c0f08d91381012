package main

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"w2wcal/internal/config"
	"w2wcal/internal/export"
	"w2wcal/internal/ics"
	"w2wcal/internal/model"
	"w2wcal/internal/render"
)

type parseOptions struct {
	format   string
	noStrict bool
	color    bool
}

// fullDocument is the "json" output: every record with all its fields.
type fullDocument struct {
	Calendar *model.CalendarInfo `json:"calendar,omitempty"`
	Events   []model.EventRecord `json:"events"`
}

// loader is the part of *ics.Fetcher the commands need.
type loader interface {
	FetchOne(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

func runParse(ctx context.Context, cfg *config.Config, l loader, src ics.Source, opts parseOptions, out io.Writer) error {
	res, err := l.FetchOne(ctx, src)
	if err != nil {
		return errors.Wrapf(err, "loading %s", src)
	}

	events, info := newParser(cfg).ParseDocument(res.Body, !opts.noStrict)

	switch opts.format {
	case "json":
		return export.Encode(out, fullDocument{Calendar: info, Events: events})
	case "summary":
		return export.Encode(out, export.Document{
			GeneratedAt: time.Now().UTC(),
			Calendars:   []export.Calendar{{ID: src.ID, Info: info, Events: export.Summarize(events)}},
		})
	default:
		t := render.NewTable(out)
		if opts.color {
			t.WithColor(true)
		}
		return t.Write(export.Summarize(events))
	}
}
