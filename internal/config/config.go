package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrPostgresCredentials = errors.New("postgres user and db are required")
	ErrRateLimitNoRedis    = errors.New("rate_limit requires redis to be enabled")
	ErrTLSFiles            = errors.New("cert_file and key_file are required in prod")
)

type Config struct {
	Env        string     `yaml:"env" validate:"oneof=dev stage prod"`
	LogLevel   string     `yaml:"log_level" validate:"oneof=debug info warn error"`
	BaseURL    string     `yaml:"base_url" validate:"required,http_url"`
	Shortener  Shortener  `yaml:"shortener"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Postgres   Postgres   `yaml:"postgres"`
	SQLite     SQLite     `yaml:"sqlite"`
	Redis      Redis      `yaml:"redis"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
}

type Shortener struct {
	// OnCheckError is how a failed availability lookup is treated.
	OnCheckError string `yaml:"on_check_error" validate:"oneof=treat_as_available treat_as_taken fail"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	SwaggerPath    string        `yaml:"swagger_path"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	SwaggerPath:    "./docs/swagger.yml",
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	// MigrationsDir holds one subdirectory of migrations per driver.
	MigrationsDir string `yaml:"migrations_dir" validate:"required"`
}

var defaultStorage = Storage{
	Driver:        DriverSQLite,
	MigrationsDir: "migrations",
}

// MigrationsURL returns the golang-migrate source URL for the configured driver.
func (s *Storage) MigrationsURL() string {
	return "file://" + strings.TrimRight(s.MigrationsDir, "/") + "/" + s.Driver
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnectAttempts int           `yaml:"connect_attempts" validate:"gte=0"`
	ConnectInterval time.Duration `yaml:"connect_interval"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	ConnectAttempts: 5,
	ConnectInterval: 2 * time.Second,
}

// DSN builds a postgres:// URL. Credentials are escaped, so they may contain
// reserved characters such as '@', '/' or ':'.
func (p *Postgres) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.DB,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}

	return u.String()
}

type SQLite struct {
	Path string `yaml:"path" validate:"required"`
}

var defaultSQLite = SQLite{
	Path: "notveryshort.db",
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

var defaultRedis = Redis{
	Addr:     "localhost:6379",
	CacheTTL: 24 * time.Hour,
}

type RateLimit struct {
	Enabled bool `yaml:"enabled"`
	// Requests is the number of shorten requests allowed per client per Window.
	Requests int64         `yaml:"requests" validate:"gte=1"`
	Window   time.Duration `yaml:"window" validate:"gte=1s"`
}

var defaultRateLimit = RateLimit{
	Requests: 30,
	Window:   time.Minute,
}

// Load reads the YAML config at path. ${VAR} references are expanded from
// the environment before decoding; omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Storage.Driver == DriverPostgres && (c.Postgres.User == "" || c.Postgres.DB == "") {
		return ErrPostgresCredentials
	}

	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return ErrRateLimitNoRedis
	}

	if c.Env == EnvProd && (c.HTTPServer.CertFile == "" || c.HTTPServer.KeyFile == "") {
		return ErrTLSFiles
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.BaseURL = "http://localhost:8080"
	cfg.Shortener = Shortener{OnCheckError: "treat_as_available"}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.SQLite = defaultSQLite
	cfg.Redis = defaultRedis
	cfg.RateLimit = defaultRateLimit
}
