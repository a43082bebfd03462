// Signctl is a master client for TSI-SP-003 road-sign controllers.
//
// It keeps authenticated sessions with the controllers listed in its
// configuration file, polls them for status and sends display, programming
// and maintenance commands. Sessions can be driven one command at a time
// from the shell, watched live in a terminal monitor, or exposed over HTTP
// with a websocket status feed.
//
// Usage:
//
//	signctl [command] [flags]
//
// See 'signctl --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/signctl/internal/config"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "signctl",
	Short: "TSI-SP-003 sign controller client",
	Long: `A master client for TSI-SP-003 road-sign controllers.

signctl authenticates with each controller in its configuration file,
keeps the session alive with heartbeat polls and sends display,
programming and maintenance commands over TCP or a serial line.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/signctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset unless "+logging.LogLevelEnvVar+" is set")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.Detailed())
	},
}

// loadRegistry loads the configuration named by --config.
func loadRegistry() (*config.Registry, error) {
	reg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return reg, nil
}
