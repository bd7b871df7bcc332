package nats

import (
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
)

func TestJobStreamConfig(t *testing.T) {
	cfg := jobStreamConfig()

	assert.Equal(t, streamJobs, cfg.Name)
	assert.Equal(t, []string{subjectJobs}, cfg.Subjects)
	assert.Equal(t, jetstream.WorkQueuePolicy, cfg.Retention, "each notification goes to exactly one worker")
	assert.Equal(t, jetstream.FileStorage, cfg.Storage, "notifications survive a broker restart")
	assert.Positive(t, cfg.MaxMsgs)
	assert.Positive(t, cfg.MaxBytes)
	assert.Positive(t, cfg.MaxAge)
}

func TestAnalysisConsumerConfig(t *testing.T) {
	cfg := analysisConsumerConfig()

	assert.Equal(t, consumerAnalysis, cfg.Durable, "consumer survives worker restarts")
	assert.Equal(t, subjectJobs, cfg.FilterSubject, "consumer filter matches the stream subject")
	assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
	assert.Positive(t, cfg.MaxDeliver, "redelivery is bounded")
	assert.GreaterOrEqual(t, cfg.AckWait.Minutes(), 5.0, "ack wait must outlast a slow full-repo run")
}
