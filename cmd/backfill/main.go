// cmd/backfill/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tendant/nft-enricher/internal/app"
	"github.com/tendant/nft-enricher/internal/config"
	"github.com/tendant/nft-enricher/internal/nft"
)

type options struct {
	File     string
	Limit    int
	DryRun   bool
	Inline   bool
	Settings nft.Settings
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	opts := parseFlags(flag.CommandLine, os.Args[1:])
	logger.Info("backfill starting",
		"nats_url", cfg.NATS.URL,
		"job_subject", cfg.NATS.JobSubject,
		"limit", opts.Limit,
		"dry_run", opts.DryRun,
		"inline", opts.Inline,
		"settings", opts.Settings,
	)

	ids, err := readIdentifiers(opts.File, flag.Args(), os.Stdin)
	if err != nil {
		fatal(logger, "read identifiers", err)
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	logger.Info("identifiers loaded", "count", len(ids))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dry runs and inline runs never publish.
	withBus := !opts.DryRun && !opts.Inline
	a, err := app.Build(ctx, cfg, withBus, logger)
	if err != nil {
		fatal(logger, "build pipeline", err)
	}
	defer a.Close()

	p := &JobProcessor{source: a.Indexer, settings: opts.Settings, logger: logger}
	switch {
	case opts.DryRun:
		p.mode = modeDryRun
		p.check = a.Processor
	case opts.Inline:
		p.mode = modeInline
		p.inline = a.Processor
	default:
		p.mode = modePublish
		p.scheduler = a.Scheduler
	}

	p.Run(ctx, ids)
	s := p.Stats()
	logger.Info("backfill complete",
		"total", len(ids),
		"needs_work", s.NeedsWork,
		"jobs_published", s.Published,
		"processed_inline", s.Processed,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"dry_run", opts.DryRun,
	)
	if s.Failed > 0 {
		logger.Error("some identifiers failed", "failed_ids", s.FailedIDs)
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) options {
	var opts options
	fs.StringVar(&opts.File, "file", "", "File with one identifier per line (\"-\" reads stdin)")
	fs.IntVar(&opts.Limit, "limit", 0, "Maximum number of identifiers to handle (0 = unlimited)")
	fs.BoolVar(&opts.DryRun, "dry-run", true, "Report which identifiers need work without publishing")
	fs.BoolVar(&opts.Inline, "inline", false, "Process in this process instead of publishing jobs")
	fs.BoolVar(&opts.Settings.ForceRefreshMetadata, "force-metadata", false, "Recompute metadata even when stored")
	fs.BoolVar(&opts.Settings.ForceRefreshMedia, "force-media", false, "Recompute media even when stored")
	fs.BoolVar(&opts.Settings.ForceRefreshThumbnail, "force-thumbnail", false, "Regenerate thumbnails even when present")
	fs.BoolVar(&opts.Settings.SkipRefreshThumbnail, "skip-thumbnail", false, "Do not generate thumbnails")
	fs.BoolVar(&opts.Settings.UploadAsset, "upload-asset", false, "Mirror original assets into the media bucket")

	var execute bool
	fs.BoolVar(&execute, "execute", false, "Actually publish or process (disables dry-run)")
	_ = fs.Parse(args)

	if execute || opts.Inline {
		opts.DryRun = false
	}
	return opts
}

// readIdentifiers collects identifiers from positional args and an optional
// file, dropping blanks, comments and duplicates while keeping order.
func readIdentifiers(file string, args []string, stdin io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") || seen[s] {
			return
		}
		seen[s] = true
		ids = append(ids, s)
	}
	for _, a := range args {
		add(a)
	}

	if file == "" {
		return ids, nil
	}
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan identifiers: %w", err)
	}
	return ids, nil
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
