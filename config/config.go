package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Fyers    FyersConfig    `mapstructure:"fyers"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener and the per-connection WebSocket pumps.
type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	ReadLimit  int64         `mapstructure:"read_limit"`  // max inbound message size in bytes
	WriteWait  time.Duration `mapstructure:"write_wait"`  // deadline for a single frame write
	PongWait   time.Duration `mapstructure:"pong_wait"`   // read deadline extended by every pong
	SendBuffer int           `mapstructure:"send_buffer"` // outbound queue length per connection
}

// ReplayConfig holds the playback settings.
type ReplayConfig struct {
	Interval    time.Duration `mapstructure:"interval"`     // tick period shared by every session
	LoadTimeout time.Duration `mapstructure:"load_timeout"` // upper bound for loading all series of one subscribe
	CacheSeries bool          `mapstructure:"cache_series"` // keep loaded series in memory for later sessions
	// CacheMaxCandles bounds the cache; other symbols are evicted past it. 0 is unbounded.
	CacheMaxCandles int `mapstructure:"cache_max_candles"`
}

type FyersConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AppID       string        `mapstructure:"app_id"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
}

// IngestConfig lists the symbols fetched from the broker at startup and the history range to store.
type IngestConfig struct {
	Symbols     []string `mapstructure:"symbols"`
	Resolution  string   `mapstructure:"resolution"`
	RangeFrom   string   `mapstructure:"range_from"` // YYYY-MM-DD, inclusive
	RangeTo     string   `mapstructure:"range_to"`   // YYYY-MM-DD, inclusive
	ChunkDays   int      `mapstructure:"chunk_days"`
	Concurrency int      `mapstructure:"concurrency"`
	Calendar    string   `mapstructure:"calendar"` // exchange MIC, e.g. "xnse"
	Prune       bool     `mapstructure:"prune"`    // drop stored candles older than range_from
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

const dateLayout = "2006-01-02"

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	// TODO: env path
	var dir string
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		dir = filepath.Join(pwd, "../../config")
	} else {
		dir = filepath.Join(filepath.Dir(ex), "../config")
	}

	cfg, err := LoadFile(dir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFile reads config.yaml from dir. A missing file is not an error: defaults
// and environment variables are enough to run.
func LoadFile(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)

	// Support environment variables with dot notation (e.g., FYERS_ACCESS_TOKEN)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// comma separated env value, e.g. INGEST_SYMBOLS="NSE:SBIN-EQ,NSE:TCS-EQ"
	if len(cfg.Ingest.Symbols) == 1 && strings.Contains(cfg.Ingest.Symbols[0], ",") {
		cfg.Ingest.Symbols = splitSymbols(cfg.Ingest.Symbols[0])
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_limit", 4096)
	v.SetDefault("server.write_wait", 5*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)
	v.SetDefault("server.send_buffer", 256)

	v.SetDefault("replay.interval", time.Second)
	v.SetDefault("replay.load_timeout", 10*time.Second)
	v.SetDefault("replay.cache_series", true)
	v.SetDefault("replay.cache_max_candles", 1_000_000)

	v.SetDefault("fyers.base_url", "https://api-t1.fyers.in")
	v.SetDefault("fyers.app_id", "")
	v.SetDefault("fyers.access_token", "")
	v.SetDefault("fyers.timeout", 10*time.Second)
	v.SetDefault("fyers.rate_per_sec", 5.0)
	v.SetDefault("fyers.burst", 1)

	v.SetDefault("ingest.symbols", []string{})
	v.SetDefault("ingest.resolution", "1")
	v.SetDefault("ingest.range_from", "2022-08-01")
	v.SetDefault("ingest.range_to", "2022-08-15")
	v.SetDefault("ingest.chunk_days", 30)
	v.SetDefault("ingest.concurrency", 5)
	v.SetDefault("ingest.calendar", "xnse")
	v.SetDefault("ingest.prune", false)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "wsreplay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "wsreplay.db")
	v.SetDefault("database.create_db", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.ssm.host_param", "WSREPLAY_DB_HOST")
	v.SetDefault("database.ssm.user_param", "WSREPLAY_DB_USER")
	v.SetDefault("database.ssm.password_param", "WSREPLAY_DB_PASSWORD")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.Replay.Interval <= 0 {
		return fmt.Errorf("replay.interval must be positive, got %s", c.Replay.Interval)
	}
	if !c.Database.Driver.IsValid() {
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if len(c.Ingest.Symbols) > 0 {
		if c.Fyers.AppID == "" || c.Fyers.AccessToken == "" {
			return errors.New("fyers.app_id and fyers.access_token are required when ingest.symbols is set")
		}
		if _, _, err := c.Ingest.Range(); err != nil {
			return err
		}
	}
	return nil
}

// Range parses the configured history range. The end is exclusive: midnight
// after RangeTo, in UTC.
func (c IngestConfig) Range() (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, c.RangeFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ingest.range_from: %w", err)
	}
	to, err := time.Parse(dateLayout, c.RangeTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("ingest.range_to: %w", err)
	}
	to = to.AddDate(0, 0, 1)
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("ingest range is empty: %s..%s", c.RangeFrom, c.RangeTo)
	}
	return from, to, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
