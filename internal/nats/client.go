// Package nats carries analysis-job wake-up notifications between the API and
// workers over a single JetStream work queue. The database stays the source of
// truth for job state; losing NATS only degrades workers to polling.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	streamJobs       = "ARCHSCOPE_JOBS"
	subjectJobs      = "jobs.analysis"
	consumerAnalysis = "analysis-worker"
)

// Client is a connection to the analysis job queue.
type Client struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and opens a JetStream context. The connection reconnects
// forever; job notifications published while disconnected are simply lost,
// which the workers' polling fallback covers.
func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("archscope"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("disconnected from NATS")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	log.Info().Str("url", url).Msg("connected to NATS JetStream")
	return &Client{nc: nc, js: js}, nil
}

// jobStreamConfig is the one stream this system has: a durable work queue so
// each analysis notification is delivered to exactly one worker.
func jobStreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        streamJobs,
		Description: "ArchScope analysis job notifications",
		Subjects:    []string{subjectJobs},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		Discard:     jetstream.DiscardOld,
		MaxMsgs:     100000,
		MaxBytes:    100 << 20,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	}
}

func analysisConsumerConfig() jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          consumerAnalysis,
		Durable:       consumerAnalysis,
		FilterSubject: subjectJobs,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Minute, // full-repo analysis can be slow
		MaxDeliver:    5,
		MaxAckPending: 100,
	}
}

// EnsureJobStream creates or updates the job stream and its durable analysis
// consumer. Safe to call from every process at startup.
func (c *Client) EnsureJobStream(ctx context.Context) error {
	if _, err := c.js.CreateOrUpdateStream(ctx, jobStreamConfig()); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", streamJobs, err)
	}
	if _, err := c.js.CreateOrUpdateConsumer(ctx, streamJobs, analysisConsumerConfig()); err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", consumerAnalysis, err)
	}

	log.Debug().Str("stream", streamJobs).Str("consumer", consumerAnalysis).Msg("job stream ready")
	return nil
}

// AnalysisConsumer returns the durable consumer workers fetch jobs from.
func (c *Client) AnalysisConsumer(ctx context.Context) (jetstream.Consumer, error) {
	consumer, err := c.js.Consumer(ctx, streamJobs, consumerAnalysis)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerAnalysis, err)
	}
	return consumer, nil
}

// NotifyAnalysis publishes an encoded job message to wake a worker up.
func (c *Client) NotifyAnalysis(ctx context.Context, data []byte) error {
	if _, err := c.js.Publish(ctx, subjectJobs, data); err != nil {
		return fmt.Errorf("failed to publish job notification: %w", err)
	}
	return nil
}

// IsConnected reports whether the underlying connection is currently up.
func (c *Client) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}

// Close drains nothing and closes the connection; pending notifications are
// recoverable from the database.
func (c *Client) Close() {
	if c.nc != nil && !c.nc.IsClosed() {
		c.nc.Close()
		log.Info().Msg("NATS connection closed")
	}
}
