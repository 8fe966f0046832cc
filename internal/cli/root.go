// Package cli implements the command-line interface for the eater CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colthorp/eater-cli-go/internal/app"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/fetch"
	"github.com/colthorp/eater-cli-go/internal/logger"
)

// Global flags
var (
	verbose bool
	jsonOut bool
	dataDir string
	apiURL  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "eater",
	Short:         "eater CLI – nutrition tracking with a local sync core",
	Long:          `A command-line client for the eater backend that keeps a local cache of the day's food, statistics and ledgers.`,
	Version:       core.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for local state (default: $EATER_DATA_DIR or ~/.eater)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides $EATER_API_URL)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (core.Config, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return core.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if verbose {
		cfg.LogLevel = "DEBUG"
	}
	return cfg, nil
}

// openApp loads configuration, initializes logging and opens local state.
func openApp(presenter fetch.Presenter) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.LogLevel, logger.LogFormat(cfg.LogFormat))
	return app.Open(cfg, presenter, logger.For(logger.ComponentApp))
}

// withApp opens the app, runs fn and closes the app, waiting for background work.
func withApp(presenter fetch.Presenter, fn func(a *app.App) error) (err error) {
	a, err := openApp(presenter)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
