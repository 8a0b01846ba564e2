package config

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-sql-driver/mysql"
)

// Driver names the SQL backend holding candle history.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverMySQL, DriverSQLite:
		return true
	}
	return false
}

// DatabaseConfig defines the configuration for connecting to the candle database.
type DatabaseConfig struct {
	Driver   Driver `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	Path     string `mapstructure:"path"` // sqlite only
	CreateDB bool   `mapstructure:"create_db"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	SSM SSMParams `mapstructure:"ssm"`
}

// SSMParams names the Parameter Store entries used for credentials in prod.
type SSMParams struct {
	HostParam     string `mapstructure:"host_param"`
	UserParam     string `mapstructure:"user_param"`
	PasswordParam string `mapstructure:"password_param"`
}

// DSN builds the driver specific connection string. In prod, host, user and
// password are read from AWS SSM Parameter Store instead of the config file.
func (cfg *DatabaseConfig) DSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" && cfg.Driver != DriverSQLite {
		ps := NewParameterStore(5 * time.Second)
		host = ps.Get(cfg.SSM.HostParam, true)
		user = ps.Get(cfg.SSM.UserParam, true)
		password = ps.Get(cfg.SSM.PasswordParam, true)
	}
	return cfg.dsn(host, user, password, cfg.DBName)
}

// AdminDSN points at the server's maintenance database, used to create DBName.
func (cfg *DatabaseConfig) AdminDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *DatabaseConfig) dsn(host, user, password, dbname string) string {
	switch cfg.Driver {
	case DriverSQLite:
		return cfg.Path
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = user
		mc.Passwd = password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
		mc.DBName = dbname
		mc.ParseTime = true
		if cfg.TimeZone != "" {
			if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
				mc.Loc = loc
			}
		}
		return mc.FormatDSN()
	default:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, cfg.Port, user, password, dbname, cfg.SSLMode,
		)
		if cfg.TimeZone != "" {
			dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
		}
		return dsn
	}
}

// ParameterStore reads secrets from AWS SSM.
type ParameterStore struct {
	timeout time.Duration
}

func NewParameterStore(timeout time.Duration) *ParameterStore {
	return &ParameterStore{timeout: timeout}
}

// Get returns the parameter value, or "" when it cannot be read.
func (p *ParameterStore) Get(name string, decrypt bool) string {
	if name == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil || result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
