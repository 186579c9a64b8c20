package main

import (
	"context"
	"log/slog"

	"github.com/tendant/nft-enricher/internal/nft"
)

type mode int

const (
	modeDryRun mode = iota
	modePublish
	modeInline
)

type nftSource interface {
	GetNft(ctx context.Context, identifier string) (*nft.Nft, error)
}

type needChecker interface {
	NeedsProcessing(ctx context.Context, n *nft.Nft, settings nft.Settings) bool
}

type scheduler interface {
	Schedule(ctx context.Context, n *nft.Nft, settings nft.Settings) (bool, error)
}

type inlineProcessor interface {
	Process(ctx context.Context, n *nft.Nft, settings nft.Settings) (bool, error)
}

type Stats struct {
	NeedsWork int
	Published int
	Processed int
	Skipped   int
	Failed    int
	FailedIDs []string
}

// JobProcessor feeds identifiers through the check, publish or inline path.
type JobProcessor struct {
	mode      mode
	source    nftSource
	check     needChecker
	scheduler scheduler
	inline    inlineProcessor
	settings  nft.Settings
	logger    *slog.Logger
	stats     Stats
}

func (p *JobProcessor) Stats() Stats { return p.stats }

func (p *JobProcessor) Run(ctx context.Context, ids []string) {
	for i, id := range ids {
		if ctx.Err() != nil {
			p.logger.Warn("backfill interrupted", "remaining", len(ids)-i)
			return
		}
		p.handle(ctx, id)
		if (i+1)%100 == 0 {
			p.logger.Info("backfill progress", "handled", i+1, "total", len(ids))
		}
	}
}

func (p *JobProcessor) handle(ctx context.Context, id string) {
	logger := p.logger.With("identifier", id)
	n, err := p.source.GetNft(ctx, id)
	if err != nil {
		logger.Error("lookup nft failed", "err", err)
		p.fail(id)
		return
	}

	switch p.mode {
	case modeDryRun:
		if p.check.NeedsProcessing(ctx, n, p.settings) {
			p.stats.NeedsWork++
			logger.Info("would publish job")
			return
		}
		p.stats.Skipped++
	case modePublish:
		queued, err := p.scheduler.Schedule(ctx, n, p.settings)
		if err != nil {
			logger.Error("publish job failed", "err", err)
			p.fail(id)
			return
		}
		if !queued {
			p.stats.Skipped++
			return
		}
		p.stats.NeedsWork++
		p.stats.Published++
	case modeInline:
		did, err := p.inline.Process(ctx, n, p.settings)
		if err != nil {
			logger.Error("process failed", "err", err)
			p.fail(id)
			return
		}
		if !did {
			p.stats.Skipped++
			return
		}
		p.stats.NeedsWork++
		p.stats.Processed++
		logger.Info("processed nft")
	}
}

func (p *JobProcessor) fail(id string) {
	p.stats.Failed++
	p.stats.FailedIDs = append(p.stats.FailedIDs, id)
}
