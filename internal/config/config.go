package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by store.driver.
const (
	DriverMongo    = "mongodb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures the runtime configuration of the history service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Query     QueryConfig     `mapstructure:"query"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig enables the query cache when URL is set.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type UpstreamConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Pool     string        `mapstructure:"pool"`
	Interval string        `mapstructure:"interval"`
	Count    int           `mapstructure:"count"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Cadence          time.Duration `mapstructure:"cadence"`
	BackoffFloor     time.Duration `mapstructure:"backoff_floor"`
	BackoffCeiling   time.Duration `mapstructure:"backoff_ceiling"`
	InitialWatermark int64         `mapstructure:"initial_watermark"`
}

type QueryConfig struct {
	DefaultLimit int64 `mapstructure:"default_limit"`
	MaxLimit     int64 `mapstructure:"max_limit"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
// Environment keys use the HISTORY_ prefix with "." replaced by "_", e.g.
// HISTORY_MONGO_URI or HISTORY_SCHEDULER_CADENCE.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv("HISTORY_CONFIG_FILE"); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("history")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("HISTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set for the selected store and
// normalizes the rest.
func (c *Config) Validate() error {
	var missing []string

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			missing = append(missing, "HISTORY_MONGO_URI")
		}
		if c.Mongo.Database == "" {
			missing = append(missing, "HISTORY_MONGO_DATABASE")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			missing = append(missing, "HISTORY_POSTGRES_DSN")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver must be one of %s, %s, %s; got %q",
			DriverMongo, DriverPostgres, DriverMemory, c.Store.Driver)
	}

	if c.Scheduler.Enabled && c.Upstream.BaseURL == "" {
		missing = append(missing, "HISTORY_UPSTREAM_BASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Query.MaxLimit <= 0 {
		return fmt.Errorf("query.max_limit must be > 0")
	}
	if c.Query.DefaultLimit <= 0 || c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query.default_limit must be between 1 and query.max_limit")
	}
	if c.Upstream.Count <= 0 || c.Upstream.Count > 400 {
		return fmt.Errorf("upstream.count must be between 1 and 400")
	}
	if c.Scheduler.Cadence <= 0 {
		return fmt.Errorf("scheduler.cadence must be > 0")
	}
	if c.Scheduler.BackoffFloor <= 0 || c.Scheduler.BackoffCeiling < c.Scheduler.BackoffFloor {
		return fmt.Errorf("scheduler.backoff_floor must be > 0 and <= scheduler.backoff_ceiling")
	}
	if c.Scheduler.InitialWatermark < 0 {
		return fmt.Errorf("scheduler.initial_watermark must be >= 0")
	}
	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("store.driver", DriverMongo)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "liquidity")
	v.SetDefault("mongo.collection", "depth_history")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("upstream.base_url", "https://midgard.ninerealms.com")
	v.SetDefault("upstream.pool", "BTC.BTC")
	v.SetDefault("upstream.interval", "hour")
	v.SetDefault("upstream.count", 400)
	v.SetDefault("upstream.timeout", "30s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cadence", "1h")
	v.SetDefault("scheduler.backoff_floor", "60s")
	v.SetDefault("scheduler.backoff_ceiling", "900s")
	v.SetDefault("scheduler.initial_watermark", 1647910800)

	v.SetDefault("query.default_limit", 24)
	v.SetDefault("query.max_limit", 400)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("metrics.enabled", true)
}

// durationHook accepts Go duration strings ("90s") and bare integers as seconds.
func durationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case string:
			if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
				return time.Duration(secs) * time.Second, nil
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
