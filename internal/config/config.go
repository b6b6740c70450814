package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "leadtrack"
	configType = "toml"

	DefaultPort    = "3000"
	DefaultDataDir = "./data"
)

// Proxy modes understood by the HTTP layer when resolving client IPs.
const (
	ProxyNone       = "none"
	ProxyXForwarded = "xforwarded"
	ProxyCloudflare = "cloudflare"
)

// Config is the resolved runtime configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	DataDir        string
	JWTSecret      string
	TrustedOrigins []string
	ProxyMode      string
	GeoIPEnabled   bool
	MetricsEnabled bool
}

// setting maps a config file key to the environment variable that backs it.
type setting struct {
	key string
	env string
	def string
}

var settings = []setting{
	{key: "database_url", env: "DATABASE_URL"},
	{key: "port", env: "PORT", def: DefaultPort},
	{key: "data_dir", env: "DATA_DIR", def: DefaultDataDir},
	{key: "jwt_secret", env: "JWT_SECRET"},
	{key: "trusted_origins", env: "TRUSTED_ORIGINS"},
	{key: "proxy_mode", env: "PROXY_MODE", def: ProxyNone},
	{key: "geoip_enabled", env: "GEOIP_ENABLED", def: "true"},
	{key: "metrics_enabled", env: "METRICS_ENABLED", def: "true"},
}

// Load resolves configuration from leadtrack.toml, the environment and defaults.
func Load() (*Config, error) {
	return LoadWithOverrides("", "", "")
}

// LoadWithOverrides resolves configuration with command-line values taking
// precedence. Order: flag, config file, environment, default.
func LoadWithOverrides(databaseURL, port, dataDir string) (*Config, error) {
	v := newBaseViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	values := make(map[string]string, len(settings))
	for _, s := range settings {
		switch {
		case v.InConfig(s.key):
			values[s.key] = v.GetString(s.key)
		case os.Getenv(s.env) != "":
			values[s.key] = os.Getenv(s.env)
		default:
			values[s.key] = s.def
		}
	}

	if databaseURL != "" {
		values["database_url"] = databaseURL
	}
	if port != "" {
		values["port"] = port
	}
	if dataDir != "" {
		values["data_dir"] = dataDir
	}

	return &Config{
		DatabaseURL:    values["database_url"],
		Port:           values["port"],
		DataDir:        values["data_dir"],
		JWTSecret:      values["jwt_secret"],
		TrustedOrigins: parseTrustedOrigins(values["trusted_origins"]),
		ProxyMode:      parseProxyMode(values["proxy_mode"]),
		GeoIPEnabled:   parseBool(values["geoip_enabled"], true),
		MetricsEnabled: parseBool(values["metrics_enabled"], true),
	}, nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if dir := configDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	return v
}

func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, configName)
}

// parseTrustedOrigins splits a comma separated list and normalises each entry.
func parseTrustedOrigins(raw string) []string {
	origins := []string{}
	for _, part := range strings.Split(raw, ",") {
		origin := strings.ToLower(strings.TrimSpace(part))
		origin = strings.TrimRight(origin, "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func parseProxyMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProxyXForwarded, "x-forwarded-for":
		return ProxyXForwarded
	case ProxyCloudflare:
		return ProxyCloudflare
	default:
		return ProxyNone
	}
}

func parseBool(raw string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return b
}
