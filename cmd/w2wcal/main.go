package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"w2wcal/internal/config"
	"w2wcal/internal/ics"
	appLog "w2wcal/internal/log"
	"w2wcal/internal/web"
)

var version = "dev"

type CLI struct {
	Config   string `help:"Path to config file" default:"~/.config/w2wcal/config.yaml" type:"path"`
	LogLevel string `help:"Log level: debug, info, warn, error (overrides config)" name:"log-level"`
	Timezone string `help:"Display timezone (overrides config)"`
	Locale   string `help:"Display locale, e.g. vi-VN or en-US (overrides config)"`

	Parse struct {
		Source    string `arg:"" help:"ICS file path, feed URL, or '-' for stdin"`
		Format    string `help:"Output format" enum:"table,summary,json" default:"table" short:"f"`
		NoStrict  bool   `help:"Skip the strict VCALENDAR metadata read" name:"no-strict"`
		MaxBytes  int64  `help:"Refuse inputs larger than this" default:"10485760" name:"max-bytes"`
		ShowColor bool   `help:"Force coloured table header" name:"color"`
	} `cmd:"" help:"Parse a calendar export and print its events"`

	Watch struct {
		Once bool `help:"Run a single refresh and exit"`
	} `cmd:"" help:"Refresh all configured sources on the cron schedule and export JSON"`

	Serve struct {
		Listen    string `help:"HTTP listen address (overrides config)"`
		MaxUpload int64  `help:"Refuse uploads larger than this" default:"10485760" name:"max-upload"`
	} `cmd:"" help:"Serve the upload page and the events API"`

	Version struct{} `cmd:"" help:"Show version"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("w2wcal"),
		kong.Description("Parse WhenToWork calendar exports into structured events"),
		kong.UsageOnError(),
	)

	if kctx.Command() == "version" {
		fmt.Printf("w2wcal %s\n", version)
		return
	}

	cfg, err := loadConfig(&cli)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", cli.Config)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "parse <source>":
		fetcher := ics.NewFetcher(cfg.CacheDir).WithMaxBytes(cli.Parse.MaxBytes)
		opts := parseOptions{
			format:   cli.Parse.Format,
			noStrict: cli.Parse.NoStrict,
			color:    cli.Parse.ShowColor,
		}
		if err := runParse(ctx, cfg, fetcher, sourceFromArg(cli.Parse.Source), opts, os.Stdout); err != nil {
			appLog.Error("parse failed", err, "source", cli.Parse.Source)
			os.Exit(2)
		}

	case "watch":
		if err := runWatch(ctx, cfg, cli.Watch.Once); err != nil {
			appLog.Error("watch failed", err)
			os.Exit(2)
		}

	case "serve":
		if cli.Serve.Listen != "" {
			cfg.Listen = cli.Serve.Listen
		}
		s := web.NewServer(cfg, newParser(cfg), ics.NewFetcher(cfg.CacheDir), cli.Serve.MaxUpload)
		if err := web.Run(ctx, s); err != nil {
			appLog.Error("server failed", err)
			os.Exit(2)
		}
	}
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.Timezone != "" {
		cfg.Timezone = cli.Timezone
	}
	if cli.Locale != "" {
		cfg.Locale = cli.Locale
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appLog.SetLevel(appLog.Level(cfg.LogLevel))

	appLog.Debug("effective config",
		"timezone", cfg.Timezone,
		"locale", cfg.Locale,
		"local_timezone", cfg.LocalTimezone,
		"refresh", cfg.Refresh,
		"sources", len(cfg.Sources),
		"output", cfg.Output,
		"listen", cfg.Listen,
	)
	return cfg, nil
}

// sourceFromArg treats http(s) and webcal arguments as feed URLs and
// everything else as a file path.
func sourceFromArg(arg string) ics.Source {
	lower := strings.ToLower(arg)
	switch {
	case strings.HasPrefix(lower, "webcal://"):
		return ics.Source{ID: "cli", URL: "https://" + arg[len("webcal://"):]}
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return ics.Source{ID: "cli", URL: arg}
	default:
		return ics.Source{ID: "cli", File: arg}
	}
}

func newParser(cfg *config.Config) *ics.Parser {
	f := ics.NewFormatter(cfg.DisplayLocation(), cfg.Locale)
	return ics.NewParser(ics.Options{
		Local:     cfg.Local(),
		Formatter: &f,
		Now:       time.Now,
	})
}
