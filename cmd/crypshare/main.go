// Command crypshare mirrors a CrypShare directory listing into a rendered
// page and keeps it current while the shared directory changes.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rillToMe/CrypShare/internal/config"
	"github.com/rillToMe/CrypShare/internal/logging"
)

var version = "dev"

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

type rootFlags struct {
	configFile string
	baseURL    string
	logLevel   string
	logFormat  string
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "crypshare",
		Short:         "Live mirror of a CrypShare directory listing",
		Long:          `crypshare renders the listing served by a CrypShare server into its files page and keeps the page current, publishing it to a file, an S3 bucket or a local relay.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd, flags)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (overrides CRYPSHARE_CONFIG)")
	pf.StringVar(&flags.baseURL, "base-url", "", "listing server base URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: console or json")
	pf.DurationVar(&flags.timeout, "timeout", 0, "HTTP timeout for listing requests")

	rootCmd.AddCommand(newMirrorCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newQRCmd())

	return rootCmd
}

// setup loads configuration, applies command-line overrides and starts
// logging. Flags win over the environment, which wins over the file.
func setup(cmd *cobra.Command, flags rootFlags) error {
	if flags.configFile != "" {
		os.Setenv("CRYPSHARE_CONFIG", flags.configFile)
	}

	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := cmd.Flags()
	if fs.Changed("base-url") {
		loaded.BaseURL = flags.baseURL
	}
	if fs.Changed("log-level") {
		loaded.LogLevel = flags.logLevel
	}
	if fs.Changed("log-format") {
		loaded.LogFormat = flags.logFormat
	}
	if fs.Changed("timeout") {
		loaded.FetchTimeout = flags.timeout
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	if err := logging.Init(logging.Config{
		Level:  loaded.LogLevel,
		Format: loaded.LogFormat,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	cfg = loaded
	return nil
}
