// Package config loads clobd's runtime configuration via viper, the
// teacher pack's configuration library of choice. Every tunable named in
// SPEC_FULL.md's configuration surface has a default here, so the binary
// runs with zero configuration files present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration for one clobd
// process (spec.md §4.1, §4.4, §4.7, plus the HTTP/WS/Postgres ambient
// surface this implementation adds around the core).
type Config struct {
	// Engine tunables.
	IngressCapacity    int           `mapstructure:"ingress_capacity"`
	DepthPublishEvery  int           `mapstructure:"depth_publish_every"`
	IdleSpinIterations int           `mapstructure:"idle_spin_iterations"`
	TradeBufferCap     int           `mapstructure:"trade_buffer_capacity"`
	DepthCacheLimit    int           `mapstructure:"depth_cache_limit"`
	BatchEvents        int           `mapstructure:"batch_events"`
	BatchBudget        time.Duration `mapstructure:"batch_budget"`

	// Transport.
	HTTPAddr      string  `mapstructure:"http_addr"`
	RateLimitRPS  float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int    `mapstructure:"rate_limit_burst"`

	// Persistence.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// Markets this process serves, e.g. ["BTC-USD", "ETH-USD"].
	Markets []string `mapstructure:"markets"`
}

// Load resolves configuration from (in increasing priority): built-in
// defaults, an optional config file at configPath, and CLOBD_-prefixed
// environment variables.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("clobd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingress_capacity", 65536)
	v.SetDefault("depth_publish_every", 100)
	v.SetDefault("idle_spin_iterations", 1000)
	v.SetDefault("trade_buffer_capacity", 64)
	v.SetDefault("depth_cache_limit", 20)
	v.SetDefault("batch_events", 200)
	v.SetDefault("batch_budget", 2*time.Millisecond)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("rate_limit_rps", 0)
	v.SetDefault("rate_limit_burst", 0)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("markets", []string{"default"})
}
