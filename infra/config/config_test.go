package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"LOB_CONFIG", "LOB_INSTRUMENT", "LOB_LOG_LEVEL", "LOB_LOG_PRETTY",
		"LOB_GRPC_ADDR", "LOB_METRICS_ADDR", "LOB_JOURNAL_DIR", "LOB_OUTBOX_DIR",
		"LOB_KAFKA_ENABLED", "LOB_KAFKA_CLIENT", "LOB_KAFKA_BROKERS", "LOB_KAFKA_TOPIC",
	} {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", c.Instrument)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 1024, c.Engine.QueueSize)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, ClientSarama, c.Kafka.Client)
}

func TestYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lob.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instrument: ETH-USD
engine:
  queue_size: 64
kafka:
  enabled: true
  client: kafka-go
  brokers: [b1:9092, b2:9092]
  poll_interval: 1s
`), 0o644))
	t.Setenv("LOB_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", c.Instrument)
	assert.Equal(t, 64, c.Engine.QueueSize)
	assert.Equal(t, ClientKafkaGo, c.Kafka.Client)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, time.Second, c.Kafka.PollInterval)
	assert.Equal(t, "lob.events", c.Kafka.Topic, "unset keys keep defaults")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOB_INSTRUMENT", "SOL-USD")
	t.Setenv("LOB_LOG_LEVEL", "debug")
	t.Setenv("LOB_JOURNAL_DIR", "")
	t.Setenv("LOB_KAFKA_ENABLED", "true")
	t.Setenv("LOB_KAFKA_BROKERS", "a:1, b:2,")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "SOL-USD", c.Instrument)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Empty(t, c.Journal.Dir)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:1", "b:2"}, c.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Engine.QueueSize = 0
	assert.Error(t, c.Validate())

	c = Default()
	c.Kafka.Enabled = true
	c.Kafka.Client = "confluent"
	assert.Error(t, c.Validate())

	c = Default()
	c.Kafka.Enabled = true
	c.Outbox.Dir = ""
	assert.Error(t, c.Validate())
}

func TestMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOB_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
