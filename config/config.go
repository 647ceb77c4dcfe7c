// Package config loads rbld's TOML configuration, grounded on the
// teacher's config.Load + generated-default-file idiom.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	zlog "github.com/semihalev/zlog/v2"
)

const configVersion = "1.0.0"

// RBLEntry is one row of the RBL servers file.
type RBLEntry struct {
	Name        string
	Host        string
	Description string
}

// AggregateZoneEntry is one row of the optional aggregate zones file.
// RBLs is either the literal "*" or an explicit list of RBL hosts.
type AggregateZoneEntry struct {
	Domain      string
	Description string
	RBLs        []string `toml:"rbls"`
}

// Config is the full startup configuration enumerated in spec.md §6.
type Config struct {
	Version string

	ListenHost string `toml:"listenHost"`
	ListenPort int    `toml:"listenPort"`

	UpstreamResolver string `toml:"upstreamResolver"`

	AggregateTimeoutMs int `toml:"aggregateTimeoutMs"`

	LogLevel string `toml:"logLevel"`

	RBLServersFile     string `toml:"rblServersFile"`
	AggregateZonesFile string `toml:"aggregateZonesFile"`

	CustomRBLZoneName string `toml:"customRBLZoneName"`

	CacheHost     string `toml:"cacheHost"`
	CachePort     int    `toml:"cachePort"`
	CacheDB       string `toml:"cacheDB"`
	CacheUser     string `toml:"cacheUser"`
	CachePassword string `toml:"cachePassword"`
	CachePoolMax  int    `toml:"cachePoolMax"`

	L1CacheServers []string `toml:"l1CacheServers"`

	MetricsAddr string `toml:"metricsAddr"`

	SingleLookupTimeout Duration `toml:"singleLookupTimeout"`
	ForwardTimeout      Duration `toml:"forwardTimeout"`

	sVersion string
}

// Duration wraps time.Duration with TOML-friendly text parsing
// ("250ms", "5s"), grounded on the teacher's Duration type.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// AggregateTimeout returns the configured aggregate deadline.
func (c *Config) AggregateTimeout() time.Duration {
	if c.AggregateTimeoutMs <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.AggregateTimeoutMs) * time.Millisecond
}

// Bind returns the listenHost:listenPort address for dns.Server.
func (c *Config) Bind() string {
	host := c.ListenHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ListenPort
	if port == 0 {
		port = 8053
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ServerVersion returns the binary version stamped at Load time.
func (c *Config) ServerVersion() string { return c.sVersion }

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address and port the DNS server binds to.
listenHost = "0.0.0.0"
listenPort = 8053

# Upstream recursive resolver for names outside every configured RBL zone.
upstreamResolver = "8.8.8.8:53"

# Hard wall-clock deadline for aggregate fan-out queries, in milliseconds.
aggregateTimeoutMs = 250

# Log verbosity: none, error, info, verbose.
logLevel = "info"

# Path to the RBL servers file (name/host/description rows).
rblServersFile = "rbls.toml"

# Optional path to the aggregate zones file.
# aggregateZonesFile = "aggregates.toml"

# Custom-RBL zone name, left blank to disable the custom-RBL path.
# customRBLZoneName = "bl.example.com"

# Durable (L2) cache connection.
cacheHost = "127.0.0.1"
cachePort = 5432
cacheDB = "rbld"
cacheUser = "rbld"
cachePassword = ""
cachePoolMax = 10

# Optional shared L1 cache servers (Redis). Left empty, L1 is an
# in-process map instead of a shared tier.
l1CacheServers = [
]

# Prometheus /metrics exporter bind address, left blank to disable.
metricsAddr = "127.0.0.1:9153"

# Per-lookup timeouts.
singleLookupTimeout = "5s"
forwardTimeout = "5s"
`

// Load reads cfgfile, generating a default file in its place first if
// it does not exist.
func Load(cfgfile, version string) (*Config, error) {
	cfg := new(Config)

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, cfg); err != nil {
		return nil, fmt.Errorf("could not load config: %s", err)
	}

	if cfg.Version != "" && cfg.Version != configVersion {
		zlog.Warn("Config file is out of version, you can generate a new one and check the changes.")
	}

	cfg.sVersion = version

	return cfg, nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}

	defer func() {
		if err := output.Close(); err != nil {
			zlog.Warn("Config generation failed while closing file", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configVersion))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
