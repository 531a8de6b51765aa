package monitor_config

import (
	"time"

	"github.com/streamlens/streamlens/internal/collectors"
	"github.com/streamlens/streamlens/internal/obs"
	pginfra "github.com/streamlens/streamlens/internal/repository/postgres"
	"github.com/streamlens/streamlens/internal/services/monitor"
)

type KafkaCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type QuotaCfg struct {
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type LimitsCfg struct {
	Default   QuotaCfg            `mapstructure:"default"`
	Platforms map[string]QuotaCfg `mapstructure:"platforms"`

	InboundLimit  int           `mapstructure:"inbound_limit"`
	InboundWindow time.Duration `mapstructure:"inbound_window"`
}

type SecretsCfg struct {
	// MasterKey is only ever injected through the environment; it has
	// no file default on purpose.
	MasterKey string `mapstructure:"master_key"`
}

type Config struct {
	DB      pginfra.Config    `mapstructure:"db"`
	Kafka   KafkaCfg          `mapstructure:"kafka"`
	Sched   monitor.Config    `mapstructure:"sched"`
	Collect collectors.Config `mapstructure:"collect"`
	Limits  LimitsCfg         `mapstructure:"limits"`
	Secrets SecretsCfg        `mapstructure:"secrets"`
	Log     obs.LogConfig     `mapstructure:"log"`
	OTEL    obs.OTELConfig    `mapstructure:"otel"`
}
