package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/pkg/schema"
)

// Publisher enqueues process jobs.
type Publisher interface {
	PublishJob(ctx context.Context, job schema.ProcessNft) error
}

// Scheduler enqueues a job for an NFT only when processing would do
// something.
type Scheduler struct {
	processor *Processor
	publisher Publisher
	logger    *slog.Logger
}

func NewScheduler(processor *Processor, publisher Publisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{processor: processor, publisher: publisher, logger: logger}
}

// Schedule returns true when a job was published.
func (s *Scheduler) Schedule(ctx context.Context, n *nft.Nft, settings nft.Settings) (bool, error) {
	if !s.processor.NeedsProcessing(ctx, n, settings) {
		s.logger.Debug("no processing needed", "identifier", n.Identifier)
		return false, nil
	}

	job := schema.ProcessNft{
		Identifier: n.Identifier,
		Settings:   SettingsToMessage(settings),
		Nft:        ReferenceFromNft(n),
	}
	if err := s.publisher.PublishJob(ctx, job); err != nil {
		return false, fmt.Errorf("enqueue %s: %w", n.Identifier, err)
	}
	s.logger.Info("process job enqueued", "identifier", n.Identifier)
	return true, nil
}
