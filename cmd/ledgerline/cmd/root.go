package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/logging"
	"github.com/ledgerline/ledgerline/internal/storage"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ledgerline",
	Short: "Personal finance tracker with Lua extensions",
	Long: `ledgerline tracks personal assets in a local sqlite database and
announces every change to Lua extensions loaded from the extensions
directory.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ledgerline/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// withApp runs fn inside a started application: config loaded, store
// opened, extensions up. The app is stopped on every exit path so
// on_app_closing always fires.
func withApp(fn func(*app.App) error) error {
	cfg, err := app.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logging.ParseLevel(logLevel)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	log := logging.New(logCfg)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	a := app.New(cfg, store, log)
	if err := a.Start(); err != nil {
		_ = store.Close()
		return err
	}

	runErr := fn(a)
	if err := a.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
