package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ledgerline/ledgerline/internal/logging"
)

// Config holds the paths and settings the application runs with.
// Everything lives under DataDir unless overridden.
type Config struct {
	// DataDir is the root data directory, default ~/.ledgerline.
	DataDir string
	// DBPath is the sqlite database file.
	DBPath string
	// ExtensionsDir is where Lua extensions are discovered.
	ExtensionsDir string
	// StatePath is the extension enabled-flags file.
	StatePath string
	// LogLevel is the minimum log level.
	LogLevel logging.Level
}

// LoadConfig resolves configuration from an optional config file,
// LEDGERLINE_* environment variables, and built-in defaults, in that
// order of increasing precedence for env vars over file values.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGERLINE")
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	v.SetDefault("data_dir", filepath.Join(home, ".ledgerline"))
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(filepath.Join(home, ".ledgerline"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	dataDir := v.GetString("data_dir")
	cfg := Config{
		DataDir:       dataDir,
		DBPath:        pathOr(v, "db_path", filepath.Join(dataDir, "ledgerline.db")),
		ExtensionsDir: pathOr(v, "extensions_dir", filepath.Join(dataDir, "extensions")),
		StatePath:     pathOr(v, "state_path", filepath.Join(dataDir, "extensions.json")),
		LogLevel:      logging.ParseLevel(v.GetString("log_level")),
	}
	return cfg, nil
}

func pathOr(v *viper.Viper, key, fallback string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return fallback
}
