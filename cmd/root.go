// -- cmd/root.go --
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/internal/config"
	"github.com/xkilldash9x/stagecheck/internal/observability"
)

// errRunFailed signals that the command itself ran fine but the test sequence
// did not pass. The result JSON has already been emitted; the process just
// needs a non-zero exit code.
var errRunFailed = errors.New("test run failed")

var cfgFile string

// newRootCmd builds the base command. Construction is a function so tests get
// a pristine command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "stagecheck",
		Short:   "Stagecheck drives a real browser through declarative UI test steps.",
		Version: Version,
		// Usage text after a failed run is noise on top of the result JSON.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Runs before any command, setting up config and logging.
			if err := initializeConfig(); err != nil {
				return err
			}
			if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
				viper.Set("logger.level", f.Value.String())
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Initialize a fallback logger if config unmarshal fails.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "stagecheck"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting stagecheck", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}

// Execute runs the root command and maps outcomes to exit codes.
func Execute() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, errRunFailed) {
		// The failure is already on stdout as JSON.
		os.Exit(1)
	}
	if logger := observability.GetLogger(); logger != nil {
		logger.Error("Command execution failed", zap.Error(err))
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

// initializeConfig reads in the config file and environment variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".stagecheck"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("STAGECHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}
	return nil
}
