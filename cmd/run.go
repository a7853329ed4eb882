// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/api/schemas"
	"github.com/xkilldash9x/stagecheck/internal/browser"
	"github.com/xkilldash9x/stagecheck/internal/config"
	"github.com/xkilldash9x/stagecheck/internal/observability"
	"github.com/xkilldash9x/stagecheck/internal/runner"
	"github.com/xkilldash9x/stagecheck/internal/screenshot"
)

const shutdownGracePeriod = 15 * time.Second

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a UI test sequence against a URL and reports the outcome as JSON",
		Long: `Launches a browser, executes the steps from --steps (or just loads --url
when no step file is given), and prints a single JSON result document on
stdout. Screenshots and failure diagnostics are captured along the way.
Exits 1 when the sequence fails.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			flagBindings := map[string]string{
				"browser.headless":               "headless",
				"browser.background":             "background",
				"browser.viewport.width":         "width",
				"browser.viewport.height":        "height",
				"screenshots.dir":                "screenshot-dir",
				"screenshots.cleanup_on_success": "cleanup-on-success",
			}
			for key, flag := range flagBindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: runTest,
	}

	runCmd.Flags().String("url", "", "Starting URL for the test (required)")
	runCmd.Flags().String("steps", "", "JSON file with test steps")
	runCmd.Flags().Bool("headless", false, "Run the browser in headless mode")
	runCmd.Flags().Bool("background", false, "Run the browser off-screen (no focus stealing)")
	runCmd.Flags().String("screenshot-dir", "", "Directory for captured screenshots")
	runCmd.Flags().Int("timeout", 30000, "Default action/navigation timeout in ms")
	runCmd.Flags().Int("width", 1280, "Viewport width")
	runCmd.Flags().Int("height", 720, "Viewport height")
	runCmd.Flags().Bool("cleanup-on-success", false, "Delete captured screenshots after a fully successful run")

	_ = runCmd.MarkFlagRequired("url")
	return runCmd
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	// --timeout arrives in milliseconds and feeds both timeout knobs.
	if cmd.Flags().Changed("timeout") {
		ms, err := cmd.Flags().GetInt("timeout")
		if err != nil {
			return err
		}
		d := time.Duration(ms) * time.Millisecond
		viper.Set("network.action_timeout", d.String())
		viper.Set("network.navigation_timeout", d.String())
	}

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	url, _ := cmd.Flags().GetString("url")
	stepsPath, _ := cmd.Flags().GetString("steps")
	if stepsPath != "" {
		if stepsPath, err = homedir.Expand(stepsPath); err != nil {
			return fmt.Errorf("invalid steps path: %w", err)
		}
	}
	if cfg.Screenshots.Dir, err = homedir.Expand(cfg.Screenshots.Dir); err != nil {
		return fmt.Errorf("invalid screenshot directory: %w", err)
	}

	// Load the step file before touching the browser; a malformed file
	// should fail fast and cheap.
	var steps []schemas.Step
	if stepsPath != "" {
		steps, err = runner.LoadSteps(stepsPath)
		if err != nil {
			return err
		}
	}

	manager := browser.NewManager(cfg, logger)
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := manager.Shutdown(sdCtx); err != nil {
			logger.Warn("Browser shutdown was not clean.", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}

	shots := screenshot.NewService(cfg.Screenshots.Dir, logger)
	r := runner.New(session, session.Diagnostics(), shots, cfg, logger)

	var result *schemas.RunResult
	if len(steps) > 0 {
		result = r.Run(ctx, steps)
	} else {
		result = r.RunInitial(ctx, url)
	}

	out := cmd.OutOrStdout()
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(out, string(encoded))

	if artifacts := shots.Artifacts(); len(artifacts) > 0 {
		fmt.Fprintf(out, "\nCaptured %d screenshot(s) for analysis.\n", len(artifacts))
		for _, p := range artifacts {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}

	if result.Success && cfg.Screenshots.CleanupOnSuccess {
		if err := shots.Cleanup(); err != nil {
			logger.Warn("Screenshot cleanup failed.", zap.Error(err))
		}
	}

	if !result.Success {
		return errRunFailed
	}
	return nil
}
