package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"w2wcal/internal/config"
	"w2wcal/internal/export"
	"w2wcal/internal/ics"
	appLog "w2wcal/internal/log"
)

// sourcesLoader is the part of *ics.Fetcher a refresh cycle needs.
type sourcesLoader interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

var errNoSources = errors.New("no sources configured; add entries under 'sources' in the config file")

func runWatch(ctx context.Context, cfg *config.Config, once bool) error {
	if len(cfg.Sources) == 0 {
		return errNoSources
	}
	fetcher := ics.NewFetcher(cfg.CacheDir)

	if err := refresh(ctx, cfg, fetcher); err != nil {
		appLog.Error("refresh failed", err)
		if once {
			return err
		}
	}
	if once {
		return nil
	}

	c := cron.New(cron.WithLocation(cfg.DisplayLocation()))
	if _, err := c.AddFunc(cfg.Refresh, func() {
		if err := refresh(ctx, cfg, fetcher); err != nil {
			appLog.Error("refresh failed", err)
		}
	}); err != nil {
		return errors.Wrapf(err, "scheduling %q", cfg.Refresh)
	}

	appLog.Info("watch started", "refresh", cfg.Refresh, "sources", len(cfg.Sources), "output", cfg.Output)
	c.Start()

	<-ctx.Done()
	appLog.Info("signal received, shutting down")
	// Let an in-flight refresh finish its write.
	<-c.Stop().Done()
	return nil
}

// refresh loads every source, parses what loaded and rewrites the export.
// Partial failures still produce an export; a cycle where nothing loaded
// leaves the previous export in place.
func refresh(ctx context.Context, cfg *config.Config, l sourcesLoader) error {
	started := time.Now()

	sources := make([]ics.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, s.Source())
	}

	results, loadErr := l.FetchAll(ctx, sources)
	if len(results) == 0 {
		if loadErr == nil {
			loadErr = errors.New("no calendars loaded")
		}
		return loadErr
	}

	parser := newParser(cfg)
	doc := export.Document{GeneratedAt: time.Now().UTC()}
	for _, res := range results {
		events, info := parser.ParseDocument(res.Body, true)
		doc.Calendars = append(doc.Calendars, export.Calendar{
			ID:     res.Source.ID,
			Info:   info,
			Events: export.Summarize(events),
		})
		appLog.Info("calendar parsed", "id", res.Source.ID, "events", len(events), "from_cache", res.FromCache)
	}

	if err := export.WriteFile(cfg.Output, doc); err != nil {
		return err
	}
	appLog.Debug("refresh completed", "elapsed", time.Since(started).String())

	// Sources that failed are reported after the export is written.
	return loadErr
}
