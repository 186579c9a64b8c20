// Package process sequences metadata, media and thumbnail work for one NFT
// and decides whether any of it is needed.
package process

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/internal/thumbnail"
	"github.com/tendant/nft-enricher/pkg/schema"
)

type MetadataResolver interface {
	Get(ctx context.Context, n *nft.Nft) (nft.Metadata, error)
	Refresh(ctx context.Context, n *nft.Nft) (nft.Metadata, error)
}

type MediaResolver interface {
	Get(ctx context.Context, identifier string) ([]nft.Media, error)
	Refresh(ctx context.Context, n *nft.Nft) ([]nft.Media, error)
}

type ThumbnailGenerator interface {
	Generate(ctx context.Context, n *nft.Nft, mediaURL, contentType string, force bool) (thumbnail.Result, error)
	HasThumbnailGenerated(ctx context.Context, identifier, url string) (bool, error)
}

// AssetUploader mirrors original assets into the media bucket.
type AssetUploader interface {
	IsUploaded(ctx context.Context, m nft.Media) bool
	Upload(ctx context.Context, identifier string, m nft.Media)
}

// ThumbnailOutcome is the result of one descriptor's thumbnail generation.
type ThumbnailOutcome struct {
	Media  nft.Media
	Result thumbnail.Result
}

// Report describes what a Run did.
type Report struct {
	NeedsWork         bool
	// Stage is the last step Run entered.
	Stage             schema.ProcessingStage
	MetadataRefreshed bool
	MediaRefreshed    bool
	Thumbnails        []ThumbnailOutcome
}

type Processor struct {
	metadata   MetadataResolver
	media      MediaResolver
	thumbnails ThumbnailGenerator
	assets     AssetUploader
	logger     *slog.Logger
}

func NewProcessor(metadata MetadataResolver, media MediaResolver, thumbnails ThumbnailGenerator, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{metadata: metadata, media: media, thumbnails: thumbnails, logger: logger}
}

// WithAssetUploader enables the UploadAsset setting. Without one the setting
// is ignored.
func (p *Processor) WithAssetUploader(u AssetUploader) *Processor {
	p.assets = u
	return p
}

// Process runs the pipeline for n and reports whether any work was needed.
// A false result guarantees nothing was written.
func (p *Processor) Process(ctx context.Context, n *nft.Nft, settings nft.Settings) (bool, error) {
	report, err := p.Run(ctx, n, settings)
	return report.NeedsWork, err
}

// NeedsProcessing loads what is already known about n and answers whether
// Process would do anything.
func (p *Processor) NeedsProcessing(ctx context.Context, n *nft.Nft, settings nft.Settings) bool {
	p.loadExisting(ctx, n)
	return p.needsWork(ctx, n, settings)
}

// Run is Process with a description of the work done. The report is never
// nil, even when an error is returned.
func (p *Processor) Run(ctx context.Context, n *nft.Nft, settings nft.Settings) (*Report, error) {
	logger := p.logger.With("identifier", n.Identifier)
	report := &Report{}

	if !p.NeedsProcessing(ctx, n, settings) {
		logger.Debug("nft already processed")
		return report, nil
	}
	report.NeedsWork = true

	report.Stage = schema.StageMetadata
	if settings.ForceRefreshMetadata || n.Metadata == nil {
		md, err := p.metadata.Refresh(ctx, n)
		if err != nil {
			return report, err
		}
		n.Metadata = md
		report.MetadataRefreshed = md != nil
	}

	report.Stage = schema.StageMedia
	if settings.ForceRefreshMedia || n.Media == nil {
		media, err := p.media.Refresh(ctx, n)
		if err != nil {
			return report, err
		}
		n.Media = media
		report.MediaRefreshed = media != nil
	}

	if settings.UploadAsset && p.assets != nil {
		for _, m := range n.Media {
			if p.assets.IsUploaded(ctx, m) {
				logger.Debug("asset already uploaded", "url", m.URL)
				continue
			}
			p.assets.Upload(ctx, n.Identifier, m)
		}
	}

	pending := thumbnailCandidates(n.Media)
	if settings.SkipRefreshThumbnail || len(pending) == 0 {
		return report, nil
	}

	report.Stage = schema.StageThumbnails
	// Every branch runs to completion; Wait returns the first error.
	outcomes := make([]ThumbnailOutcome, len(pending))
	var g errgroup.Group
	for i, m := range pending {
		g.Go(func() error {
			result, err := p.thumbnails.Generate(ctx, n, m.URL, m.FileType, settings.ForceRefreshThumbnail)
			outcomes[i] = ThumbnailOutcome{Media: m, Result: result}
			return err
		})
	}
	err := g.Wait()
	report.Thumbnails = outcomes
	if err != nil {
		logger.Error("thumbnail generation failed", "err", err)
		return report, err
	}
	return report, nil
}

// loadExisting attaches stored metadata and media to n. Read failures are
// logged and treated as absent so the pipeline recomputes them.
func (p *Processor) loadExisting(ctx context.Context, n *nft.Nft) {
	md, err := p.metadata.Get(ctx, n)
	if err != nil {
		p.logger.Warn("read metadata failed", "identifier", n.Identifier, "err", err)
		md = nil
	}
	n.Metadata = md

	media, err := p.media.Get(ctx, n.Identifier)
	if err != nil {
		p.logger.Warn("read media failed", "identifier", n.Identifier, "err", err)
		media = nil
	}
	n.Media = media
}

func (p *Processor) needsWork(ctx context.Context, n *nft.Nft, settings nft.Settings) bool {
	if settings.AnyForced() {
		return true
	}
	if n.HasResolvableMedia() && len(n.Media) == 0 {
		return true
	}
	if n.Attributes != "" && n.Metadata == nil {
		return true
	}
	if !settings.SkipRefreshThumbnail {
		for _, m := range thumbnailCandidates(n.Media) {
			// Only https assets ever get a thumbnail.
			if !strings.HasPrefix(m.URL, "https://") {
				continue
			}
			has, err := p.thumbnails.HasThumbnailGenerated(ctx, n.Identifier, m.URL)
			if err != nil {
				p.logger.Warn("thumbnail existence check failed", "identifier", n.Identifier, "url", m.URL, "err", err)
				return true
			}
			if !has {
				return true
			}
		}
	}

	if settings.UploadAsset && p.assets != nil {
		for _, m := range n.Media {
			if !p.assets.IsUploaded(ctx, m) {
				return true
			}
		}
	}
	return false
}

// thumbnailCandidates drops descriptors that use the default thumbnail.
func thumbnailCandidates(media []nft.Media) []nft.Media {
	out := make([]nft.Media, 0, len(media))
	for _, m := range media {
		if !m.HasDefaultThumbnail() {
			out = append(out, m)
		}
	}
	return out
}
