package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// configName is the base name of the config file, without extension.
const configName = "docdesk"

// envPrefix prefixes every environment override: DOCDESK_BACKEND_URL.
const envPrefix = "DOCDESK"

// LoadDotEnv loads KEY=VALUE pairs from path into the environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for docdesk.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the docdesk binary itself
// is never picked up as a config file.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig then returns ConfigFileNotFoundError, which callers ignore.
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches . and ~/.docdesk for a config file.
func findConfigFile() string {
	return findConfigFileInPaths([]string{".", DefaultDir()})
}

// findConfigFileInPaths searches the given directories for docdesk.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every scalar config key for environment variable support.
// Example: DOCDESK_TOKEN_STORE_KIND overrides token_store.kind.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("backend.url")
	_ = viper.BindEnv("backend.timeout")

	_ = viper.BindEnv("token_store.kind")
	_ = viper.BindEnv("token_store.path")

	_ = viper.BindEnv("console.addr")
	_ = viper.BindEnv("console.access_key_hash")
	// Comma-separated in the environment.
	_ = viper.BindEnv("console.allowed_origins")

	_ = viper.BindEnv("tracing.enabled")
	_ = viper.BindEnv("tracing.metric_interval")

	_ = viper.BindEnv("log_level")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates the result.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration and applies defaults without validating.
// Use this when CLI flags may still override fields before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: environment only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Console.AllowedOrigins = splitOrigins(cfg.Console.AllowedOrigins)

	cfg.SetDefaults()
	return &cfg, nil
}

// splitOrigins expands comma-separated entries, as they arrive from the environment.
func splitOrigins(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
