package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestLoadFileDefaults
func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Replay.Interval)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "1", cfg.Ingest.Resolution)
	assert.Empty(t, cfg.Ingest.Symbols)
	assert.Equal(t, 1_000_000, cfg.Replay.CacheMaxCandles)
	assert.False(t, cfg.Ingest.Prune)
	assert.NoError(t, cfg.Validate())
}

// go test -v --run TestLoadFileYAMLAndEnv
func TestLoadFileYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
replay:
  interval: 250ms
ingest:
  symbols: ["NSE:SBIN-EQ", "NSE:TCS-EQ"]
database:
  driver: sqlite
  path: /tmp/candles.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("FYERS_APP_ID", "APP-100")
	t.Setenv("FYERS_ACCESS_TOKEN", "token")

	cfg, err := LoadFile(dir)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Replay.Interval)
	assert.Equal(t, []string{"NSE:SBIN-EQ", "NSE:TCS-EQ"}, cfg.Ingest.Symbols)
	assert.Equal(t, "APP-100", cfg.Fyers.AppID)
	assert.Equal(t, "/tmp/candles.db", cfg.Database.DSN("dev"))
	assert.NoError(t, cfg.Validate())
}

// go test -v --run TestValidate
func TestValidate(t *testing.T) {
	cfg, err := LoadFile(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.Replay.Interval = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.Driver = "oracle"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Ingest.Symbols = []string{"NSE:SBIN-EQ"}
	assert.Error(t, bad.Validate(), "credentials are required once symbols are set")

	bad.Fyers.AppID, bad.Fyers.AccessToken = "app", "token"
	bad.Ingest.RangeFrom, bad.Ingest.RangeTo = "2022-08-15", "2022-08-01"
	assert.Error(t, bad.Validate())
}

// go test -v --run TestIngestRange
func TestIngestRange(t *testing.T) {
	from, to, err := IngestConfig{RangeFrom: "2022-08-01", RangeTo: "2022-08-15"}.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2022, 8, 16, 0, 0, 0, 0, time.UTC), to)
}

// go test -v --run TestDSN
func TestDSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: DriverPostgres, Host: "localhost", Port: 5432, User: "postgres",
		Password: "yourpw", DBName: "wsreplay", SSLMode: "disable", TimeZone: "UTC",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=yourpw dbname=wsreplay sslmode=disable TimeZone=UTC",
		pg.DSN("dev"))
	assert.Contains(t, pg.AdminDSN(), "dbname=postgres")

	my := DatabaseConfig{
		Driver: DriverMySQL, Host: "db", Port: 3306, User: "root", Password: "pw", DBName: "candles",
	}
	dsn := my.DSN("dev")
	assert.True(t, strings.HasPrefix(dsn, "root:pw@tcp(db:3306)/candles"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
}
