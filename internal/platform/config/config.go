package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is centralized process configuration. Keep infra values here and
// pass typed config into builders.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"safetynet"`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	AuditTopic   string   `envconfig:"AUDIT_TOPIC" default:"governance.audit"`

	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	RelayPollInterval   time.Duration `envconfig:"RELAY_POLL_INTERVAL" default:"2s"`
	AuditRelayBatchSize int           `envconfig:"AUDIT_RELAY_BATCH_SIZE" default:"100"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
