// Package config loads the miner's top-level configuration: a YAML
// file layered under a small set of environment overrides. Environment
// variables win so containerized deployments can tweak a shared file
// without editing it.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	goversion "github.com/hashicorp/go-version"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/events"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/miner"
	"github.com/dropstream/drops-miner/realtime"
)

// MetricsConfig contains Prometheus metrics exposure configuration.
type MetricsConfig struct {
	// Enabled enables the metrics server.
	Enabled bool `yaml:"enabled"`

	// Addr is the address to expose metrics on.
	// Default: ":9092"
	Addr string `yaml:"addr"`
}

// PprofConfig contains pprof profiling configuration.
type PprofConfig struct {
	// Enabled enables the pprof server.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty"`

	// Addr is the address for the pprof server.
	// Default: "localhost:6060" (localhost only)
	Addr string `yaml:"addr,omitempty"`
}

// Config is the miner's full configuration tree.
type Config struct {
	// SchemaVersion is the config file schema version. Empty means
	// current. Files written for a newer major schema are rejected
	// instead of being half-understood.
	SchemaVersion string `yaml:"schema_version,omitempty"`

	// CredentialsFile is the YAML file holding the platform access
	// token; it is watched for changes.
	CredentialsFile string `yaml:"credentials_file"`

	// SettingsFile is the YAML file holding the user's mining
	// preferences; it is watched for changes. Empty means defaults.
	SettingsFile string `yaml:"settings_file,omitempty"`

	Logging   logging.Config               `yaml:"logging"`
	Client    client.GQLConfig             `yaml:"client"`
	Realtime  realtime.Config              `yaml:"realtime"`
	Heartbeat miner.HeartbeatConfig        `yaml:"heartbeat"`
	Events    events.RedisPublisherConfig  `yaml:"events"`
	Metrics   MetricsConfig                `yaml:"metrics"`
	Pprof     PprofConfig                  `yaml:"pprof,omitempty"`
}

// envOverrides are the deploy-time knobs honored from the environment.
// They are applied on top of the file config.
type envOverrides struct {
	CredentialsFile string `env:"DROPS_CREDENTIALS_FILE"`
	SettingsFile    string `env:"DROPS_SETTINGS_FILE"`
	LogLevel        string `env:"DROPS_LOG_LEVEL"`
	LogFormat       string `env:"DROPS_LOG_FORMAT"`
	ClientID        string `env:"DROPS_CLIENT_ID"`
	RedisURL        string `env:"DROPS_REDIS_URL"`
	MetricsAddr     string `env:"DROPS_METRICS_ADDR"`
}

// Default returns a Config with every subsystem at its defaults.
func Default() Config {
	return Config{
		CredentialsFile: "credentials.yaml",
		Logging:         logging.DefaultConfig(),
		Client:          client.DefaultGQLConfig(),
		Realtime:        realtime.DefaultConfig(),
		Heartbeat:       miner.DefaultHeartbeatConfig(),
		Events:          events.DefaultRedisPublisherConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9092",
		},
		Pprof: PprofConfig{
			Addr: "localhost:6060",
		},
	}
}

// Load reads the config file at path (optional), layers environment
// overrides on top, and validates the result. A missing .env file is
// not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return Config{}, fmt.Errorf("parsing environment overrides: %w", err)
	}
	cfg.apply(ov)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(ov envOverrides) {
	if ov.CredentialsFile != "" {
		c.CredentialsFile = ov.CredentialsFile
	}
	if ov.SettingsFile != "" {
		c.SettingsFile = ov.SettingsFile
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
	if ov.LogFormat != "" {
		c.Logging.Format = ov.LogFormat
	}
	if ov.ClientID != "" {
		c.Client.ClientID = ov.ClientID
	}
	if ov.RedisURL != "" {
		c.Events.URL = ov.RedisURL
	}
	if ov.MetricsAddr != "" {
		c.Metrics.Addr = ov.MetricsAddr
	}
}

// supportedSchema is the range of config schema versions this build
// understands.
var supportedSchema = goversion.MustConstraints(goversion.NewConstraint(">= 1.0, < 2.0"))

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if c.SchemaVersion != "" {
		v, err := goversion.NewVersion(c.SchemaVersion)
		if err != nil {
			return fmt.Errorf("invalid schema_version %q: %w", c.SchemaVersion, err)
		}
		if !supportedSchema.Check(v) {
			return fmt.Errorf("unsupported schema_version %q (supported: %s)", c.SchemaVersion, supportedSchema)
		}
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials_file must be set")
	}
	if c.Client.GQLEndpoint == "" {
		return fmt.Errorf("client.gql_endpoint must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url must be set when the redis publisher is enabled")
	}
	return nil
}
