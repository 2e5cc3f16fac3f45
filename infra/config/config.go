package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Instrument string `yaml:"instrument"`
	Logging    struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Engine struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"engine"`
	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Journal struct {
		Dir         string `yaml:"dir"`
		SegmentSize int64  `yaml:"segment_size"`
	} `yaml:"journal"`
	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Client       string        `yaml:"client"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"kafka"`
}

const (
	ClientSarama  = "sarama"
	ClientKafkaGo = "kafka-go"
)

func Default() Config {
	var c Config
	c.Instrument = "BTC-USD"
	c.Logging.Level = "info"
	c.Engine.QueueSize = 1024
	c.GRPC.Addr = ":50051"
	c.Metrics.Addr = ":9090"
	c.Journal.Dir = "./data/journal"
	c.Journal.SegmentSize = 4 << 20
	c.Outbox.Dir = "./data/outbox"
	c.Kafka.Client = ClientSarama
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "lob.events"
	c.Kafka.PollInterval = 250 * time.Millisecond
	return c
}

// Load returns defaults overlaid with the YAML file named by LOB_CONFIG
// and then LOB_* environment variables.
func Load() (Config, error) {
	c := Default()
	if path := os.Getenv("LOB_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(&c)
	return c, c.Validate()
}

func applyEnv(c *Config) {
	if v := os.Getenv("LOB_INSTRUMENT"); v != "" {
		c.Instrument = v
	}
	if v := os.Getenv("LOB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOB_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("LOB_GRPC_ADDR"); v != "" {
		c.GRPC.Addr = v
	}
	if v := os.Getenv("LOB_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	// An explicitly empty value disables the component.
	if v, ok := os.LookupEnv("LOB_JOURNAL_DIR"); ok {
		c.Journal.Dir = v
	}
	if v, ok := os.LookupEnv("LOB_OUTBOX_DIR"); ok {
		c.Outbox.Dir = v
	}
	if v := os.Getenv("LOB_KAFKA_ENABLED"); v != "" {
		c.Kafka.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("LOB_KAFKA_CLIENT"); v != "" {
		c.Kafka.Client = v
	}
	if v := os.Getenv("LOB_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv("LOB_KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

func (c Config) Validate() error {
	if c.Instrument == "" {
		return errors.New("config: instrument is required")
	}
	if c.Engine.QueueSize <= 0 {
		return errors.Newf("config: engine.queue_size must be positive, got %d", c.Engine.QueueSize)
	}
	if c.Kafka.Enabled {
		if c.Kafka.Client != ClientSarama && c.Kafka.Client != ClientKafkaGo {
			return errors.Newf("config: unknown kafka.client %q", c.Kafka.Client)
		}
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("config: kafka needs brokers and topic")
		}
		if c.Outbox.Dir == "" {
			return errors.New("config: kafka requires outbox.dir")
		}
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
