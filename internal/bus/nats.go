// internal/bus/nats.go
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/semaphore"

	"github.com/tendant/nft-enricher/pkg/schema"
)

// Subjects names everything the worker publishes or consumes.
type Subjects struct {
	Jobs         string
	DeadLetter   string
	Done         string
	CacheRefresh string
}

const deadLetterReasonHeader = "Nft-Dead-Letter-Reason"

type Client struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	subjects Subjects
}

func Connect(url string, subjects Subjects) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Client{nc: nc, js: js, subjects: subjects}, nil
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// EnsureStream creates or updates the work-queue stream holding the job and
// dead-letter subjects.
func (c *Client) EnsureStream(ctx context.Context, name string, maxAge time.Duration) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{c.subjects.Jobs, c.subjects.DeadLetter},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    maxAge,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", name, err)
	}
	return nil
}

// PublishJob enqueues a process job with a persisted publish.
func (c *Client) PublishJob(ctx context.Context, job schema.ProcessNft) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if _, err := c.js.Publish(ctx, c.subjects.Jobs, b); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// PublishDeadLetter stores the raw job on the dead-letter subject.
func (c *Client) PublishDeadLetter(ctx context.Context, data []byte, reason string) error {
	msg := nats.NewMsg(c.subjects.DeadLetter)
	msg.Data = data
	msg.Header.Set(deadLetterReasonHeader, reason)
	if _, err := c.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (c *Client) PublishDone(_ context.Context, done schema.ProcessDone) error {
	return c.PublishJSON(c.subjects.Done, done)
}

// RefreshCacheKey broadcasts that key was rewritten.
func (c *Client) RefreshCacheKey(_ context.Context, key string, ttl time.Duration) error {
	return c.PublishJSON(c.subjects.CacheRefresh, schema.CacheRefresh{
		Key:        key,
		TTLSeconds: int64(ttl.Seconds()),
		HappenedAt: time.Now().Unix(),
	})
}

type ConsumerConfig struct {
	Stream  string
	Durable string
	// Parallelism is both the broker side prefetch and the number of
	// handlers running at once.
	Parallelism int
	AckWait     time.Duration
	MaxDeliver  int
}

// Consume delivers job messages to handler with at most cfg.Parallelism in
// flight. The handler owns acknowledgement. Consume blocks until ctx is done
// and in-flight handlers have returned.
func (c *Client) Consume(ctx context.Context, cfg ConsumerConfig, logger *slog.Logger, handler func(context.Context, jetstream.Msg)) error {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	cons, err := c.js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: c.subjects.Jobs,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.Parallelism,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Durable, err)
	}

	it, err := cons.Messages(jetstream.PullMaxMessages(cfg.Parallelism))
	if err != nil {
		return fmt.Errorf("pull messages: %w", err)
	}
	go func() {
		<-ctx.Done()
		it.Stop()
	}()

	sem := semaphore.NewWeighted(int64(cfg.Parallelism))
	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		msg, err := it.Next()
		if err != nil {
			sem.Release(1)
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) || ctx.Err() != nil {
				break
			}
			logger.Error("fetch message failed", "err", err)
			continue
		}
		go func() {
			defer sem.Release(1)
			handler(ctx, msg)
		}()
	}

	// Wait for in-flight handlers.
	_ = sem.Acquire(context.Background(), int64(cfg.Parallelism))
	return nil
}
