// Package consumer turns process messages into pipeline runs and settles
// each delivery with an ack, a delayed redelivery or a dead letter.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tendant/nft-enricher/internal/indexer"
	"github.com/tendant/nft-enricher/internal/metadata"
	"github.com/tendant/nft-enricher/internal/metrics"
	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/internal/process"
	"github.com/tendant/nft-enricher/pkg/schema"
)

// NftSource looks up an NFT when the job does not embed it.
type NftSource interface {
	GetNft(ctx context.Context, identifier string) (*nft.Nft, error)
}

type Runner interface {
	Run(ctx context.Context, n *nft.Nft, settings nft.Settings) (*process.Report, error)
}

type Publisher interface {
	PublishDone(ctx context.Context, done schema.ProcessDone) error
	PublishDeadLetter(ctx context.Context, data []byte, reason string) error
}

type Config struct {
	// MaxRetries is the delivery count at which a failing job is dead
	// lettered instead of redelivered.
	MaxRetries int
	RetryDelay time.Duration
}

type Consumer struct {
	cfg       Config
	source    NftSource
	runner    Runner
	publisher Publisher
	logger    *slog.Logger
}

func New(cfg Config, source NftSource, runner Runner, publisher Publisher, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, source: source, runner: runner, publisher: publisher, logger: logger}
}

// ValidationError marks a job that can never succeed as delivered.
type ValidationError struct {
	Type    schema.FailureType
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// HandleMessage processes one delivery and settles it.
func (c *Consumer) HandleMessage(ctx context.Context, msg jetstream.Msg) {
	attempt := 1
	jobID := uuid.NewString()
	if md, err := msg.Metadata(); err == nil {
		attempt = int(md.NumDelivered)
		jobID = fmt.Sprintf("%s-%d", md.Stream, md.Sequence.Stream)
	}
	logger := c.logger.With("job_id", jobID, "attempt", attempt)

	var job schema.ProcessNft
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		logger.Warn("undecodable job", "err", err)
		c.deadLetter(ctx, msg, logger, "decode: "+err.Error())
		metrics.JobsTotal.WithLabelValues("poison").Inc()
		return
	}

	err := c.Handle(ctx, jobID, attempt, job)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			logger.Error("ack failed", "err", ackErr)
		}
		metrics.JobsTotal.WithLabelValues("succeeded").Inc()
	case classifyError(err) != schema.FailureTypeRetryable:
		logger.Warn("job cannot succeed, dead lettering", "err", err)
		c.deadLetter(ctx, msg, logger, err.Error())
		metrics.JobsTotal.WithLabelValues("dead_lettered").Inc()
	case attempt >= c.cfg.MaxRetries:
		logger.Error("job exhausted retries, dead lettering", "max_retries", c.cfg.MaxRetries, "err", err)
		c.deadLetter(ctx, msg, logger, err.Error())
		metrics.JobsTotal.WithLabelValues("dead_lettered").Inc()
	default:
		delay := c.cfg.RetryDelay * time.Duration(attempt)
		logger.Warn("job failed, scheduling redelivery", "delay", delay, "err", err)
		if nakErr := msg.NakWithDelay(delay); nakErr != nil {
			logger.Error("nak failed", "err", nakErr)
		}
		metrics.JobsTotal.WithLabelValues("retried").Inc()
	}
}

// Handle runs the pipeline for job and publishes its done event.
func (c *Consumer) Handle(ctx context.Context, jobID string, attempt int, job schema.ProcessNft) error {
	j := process.NewJob(jobID, job.Identifier, attempt)
	logger := c.logger.With("job_id", jobID, "identifier", job.Identifier, "attempt", attempt)
	process.MarkRunning(j)
	defer func() { metrics.JobDuration.Observe(j.Duration().Seconds()) }()

	n, stage, err := c.resolve(ctx, job)
	var report *process.Report
	if err == nil {
		logger.Info("processing nft", "settings", job.Settings)
		report, err = c.runner.Run(ctx, n, process.SettingsFromMessage(job.Settings))
		if report != nil && report.Stage != "" {
			stage = report.Stage
		}
	}

	done := schema.ProcessDone{
		JobID:      jobID,
		Identifier: job.Identifier,
		Attempt:    attempt,
		Stage:      schema.StageCompleted,
	}
	if report != nil {
		done.NeedsWork = report.NeedsWork
		done.MetadataRefreshed = report.MetadataRefreshed
		done.MediaRefreshed = report.MediaRefreshed
		for _, t := range report.Thumbnails {
			done.Thumbnails = append(done.Thumbnails, schema.ThumbnailResult{
				URL:          t.Media.URL,
				ThumbnailURL: t.Media.ThumbnailURL,
				Result:       string(t.Result),
			})
		}
	}

	if err != nil {
		process.MarkFailed(j, err)
		done.Stage = schema.StageFailed
		done.Error = fmt.Sprintf("%s: %s", stage, err)
		done.FailureType = classifyError(err)
		logger.Error("job failed", "stage", stage, "failure_type", done.FailureType, "err", err)
	} else {
		process.MarkSucceeded(j)
		logger.Info("completed job", "needs_work", done.NeedsWork, "thumbnails", len(done.Thumbnails), "processing_time_ms", j.Duration().Milliseconds())
	}
	done.ProcessingTimeMs = j.Duration().Milliseconds()
	done.HappenedAt = time.Now().Unix()

	if pubErr := c.publisher.PublishDone(ctx, done); pubErr != nil {
		logger.Error("publish result failed", "err", pubErr)
	}
	return err
}

func (c *Consumer) resolve(ctx context.Context, job schema.ProcessNft) (*nft.Nft, schema.ProcessingStage, error) {
	if job.Nft != nil {
		if job.Identifier == "" {
			job.Identifier = job.Nft.Identifier
		}
		if job.Identifier == "" {
			return nil, schema.StageFailed, ValidationError{
				Type:    schema.FailureTypeValidation,
				Message: "job missing identifier",
			}
		}
		if job.Nft.Identifier != job.Identifier {
			return nil, schema.StageFailed, ValidationError{
				Type:    schema.FailureTypeValidation,
				Message: fmt.Sprintf("job identifier %q does not match embedded nft %q", job.Identifier, job.Nft.Identifier),
			}
		}
		return process.NftFromReference(job.Nft), schema.StageMetadata, nil
	}
	if job.Identifier == "" {
		return nil, schema.StageFailed, ValidationError{
			Type:    schema.FailureTypeValidation,
			Message: "job missing identifier",
		}
	}
	n, err := c.source.GetNft(ctx, job.Identifier)
	if err != nil {
		return nil, schema.StageFailed, fmt.Errorf("lookup nft: %w", err)
	}
	return n, schema.StageMetadata, nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg jetstream.Msg, logger *slog.Logger, reason string) {
	if err := c.publisher.PublishDeadLetter(ctx, msg.Data(), reason); err != nil {
		// Leave the message for redelivery rather than lose it.
		logger.Error("publish dead letter failed", "err", err)
		if nakErr := msg.NakWithDelay(c.cfg.RetryDelay); nakErr != nil {
			logger.Error("nak failed", "err", nakErr)
		}
		return
	}
	if err := msg.Term(); err != nil {
		logger.Error("term failed", "err", err)
	}
}

func classifyError(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Type
	}
	if errors.Is(err, indexer.ErrNotFound) || errors.Is(err, metadata.ErrMalformedAttributes) {
		return schema.FailureTypePermanent
	}
	if strings.Contains(err.Error(), "unsupported protocol scheme") {
		return schema.FailureTypePermanent
	}

	// Network, storage and gateway failures may clear on redelivery.
	return schema.FailureTypeRetryable
}
