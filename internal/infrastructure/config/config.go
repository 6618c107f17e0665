package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gatehouse server configuration: YAML over built-in
// defaults, with a few GATEHOUSE_* environment overrides on top.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Directory DirectoryConfig `yaml:"directory"`
}

// DatabaseConfig contains SQLite database settings for the audit store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the optional event bus. Disabled means no connection
// and no published audit events.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds http.Server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// Durations converts the timeouts to time.Duration.
func (t APITimeoutConfig) Durations() (read, write, idle time.Duration) {
	return seconds(t.Read), seconds(t.Write), seconds(t.Idle)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the live audit stream. Intervals are seconds.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig is the optional login and access-decision metrics sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig configures HS256 access tokens.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Issuer     string `yaml:"issuer"`
}

// RateLimitConfig throttles POST /auth/login per client address.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// DirectoryConfig lists principals. YAML entries are keyed by group;
// <EnvPrefix><GROUP>_<FIELD> environment variables add to or override them.
type DirectoryConfig struct {
	EnvPrefix        string                    `yaml:"env_prefix"`
	AllowDevFallback bool                      `yaml:"allow_dev_fallback"`
	Principals       map[string]PrincipalEntry `yaml:"principals"`
}

// PrincipalEntry is the YAML form of one directory principal.
type PrincipalEntry struct {
	Email        string `yaml:"email"`
	Display      string `yaml:"display"`
	Roles        string `yaml:"roles"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Status       string `yaml:"status"`
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	overrideFromEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/gatehouse.db", WALMode: true, BusyTimeout: 5},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "gatehouse"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Security: SecurityConfig{
			JWT:       JWTConfig{TTLSeconds: 3600, Issuer: "gatehouse"},
			RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 10, Burst: 5},
		},
		Directory: DirectoryConfig{EnvPrefix: "GATEHOUSE_USER_"},
	}
}

// overrideFromEnv applies the GATEHOUSE_* variables that may replace a
// file value. Empty values are ignored, as is a non-numeric TTL.
func overrideFromEnv(cfg *Config, lookup func(string) (string, bool)) {
	strs := map[string]*string{
		"GATEHOUSE_DATABASE_PATH":  &cfg.Database.Path,
		"GATEHOUSE_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"GATEHOUSE_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"GATEHOUSE_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"GATEHOUSE_API_HOST":       &cfg.API.Host,
		"GATEHOUSE_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"GATEHOUSE_JWT_SECRET":     &cfg.Security.JWT.Secret,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("GATEHOUSE_TOKEN_TTL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.JWT.TTLSeconds = n
		}
	}
}

// minSecretLen is the shortest HS256 secret accepted.
const minSecretLen = 32

// Validate reports every problem at once, joined with "; ".
func (c *Config) Validate() error {
	var problems []string
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	check(c.Database.Path == "", "database.path is required")
	check(c.MQTT.QoS < 0 || c.MQTT.QoS > 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port < 1 || c.API.Port > 65535, "api.port must be between 1 and 65535")
	check(c.Security.JWT.Secret == "", "security.jwt.secret is required (set GATEHOUSE_JWT_SECRET)")
	check(c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minSecretLen,
		fmt.Sprintf("security.jwt.secret must be at least %d characters", minSecretLen))
	check(c.Security.JWT.TTLSeconds < 0, "security.jwt.ttl_seconds must not be negative")
	check(c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute <= 0,
		"security.rate_limit.requests_per_minute must be positive when enabled")
	check(c.InfluxDB.Enabled && c.InfluxDB.URL == "", "influxdb.url is required when enabled")
	check(c.Directory.EnvPrefix == "", "directory.env_prefix must not be empty")

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TokenTTL is the access token lifetime; zero selects the codec default.
func (c *Config) TokenTTL() time.Duration {
	return seconds(c.Security.JWT.TTLSeconds)
}

// DirectorySource merges YAML principals and environment entries into
// the flat <EnvPrefix><GROUP>_<FIELD> map the auth directory loads.
// environ is in os.Environ form; its entries win over YAML.
func (c *Config) DirectorySource(environ []string) map[string]string {
	prefix := c.Directory.EnvPrefix
	src := make(map[string]string)

	for group, p := range c.Directory.Principals {
		base := prefix + strings.ToUpper(group) + "_"
		for field, v := range map[string]string{
			"EMAIL":         p.Email,
			"DISPLAY":       p.Display,
			"ROLES":         p.Roles,
			"PASSWORD":      p.Password,
			"PASSWORD_HASH": p.PasswordHash,
			"STATUS":        p.Status,
		} {
			if v != "" {
				src[base+field] = v
			}
		}
	}

	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, prefix) {
			src[k] = v
		}
	}
	return src
}
