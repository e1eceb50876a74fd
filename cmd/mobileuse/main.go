// Command mobileuse drives an on-device UI agent from the command line: a
// thin cobra shell around internal/sdk.Agent, grounded on SPEC_FULL.md's
// ambient-stack commitment to cobra/viper CLIs (the teacher itself exposes
// no CLI layer; cmd/demo/main.go is a bare func main wiring a runtime
// in-process, not a command surface) and on sdk/agent.py's run-and-extract
// flow for the "run" command's behavior.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/x7722/mobile-use/internal/config"
	"github.com/x7722/mobile-use/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mobileuse",
		Short: "Drive an on-device UI agent from natural-language goals",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or TOML config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newDevicesCmd(&configPath))
	root.AddCommand(newProfilesCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		goal              string
		outputFormat      string
		outputDescription string
		lockedApp         string
		profile           string
		maxSteps          int
		trace             bool
		timeout           time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single task to completion and print its output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal == "" {
				return fmt.Errorf("run: --goal is required")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := telemetry.NewNoopLogger()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			agent, err := buildAgent(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			h, err := agent.NewTask(goal).
				WithOutputFormat(outputFormat).
				WithOutputDescription(outputDescription).
				WithLockedAppPackage(lockedApp).
				UsingProfile(profile).
				WithMaxSteps(maxSteps).
				WithTraceRecording(trace).
				Run(ctx)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			res := h.Wait()
			if res.Err != nil {
				return fmt.Errorf("run: task %s failed: %w", h.TaskID, res.Err)
			}
			fmt.Println(res.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "natural-language task goal (required)")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "JSON schema the final output must validate against")
	cmd.Flags().StringVar(&outputDescription, "output-description", "", "description of the desired final output")
	cmd.Flags().StringVar(&lockedApp, "locked-app", "", "package to keep the agent confined to, relaunching it on drift")
	cmd.Flags().StringVar(&profile, "profile", "", "override the planner, orchestrator, cortex and executor provider profile for this task")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget override (0 uses the configured default)")
	cmd.Flags().BoolVar(&trace, "trace", false, "record per-step screenshots and thoughts to the configured trace directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "wall-clock budget for the whole run")
	return cmd
}

func newDevicesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List installed packages on the configured device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			_, lister, err := buildDevice(cfg.Device)
			if err != nil {
				return fmt.Errorf("devices: %w", err)
			}
			if lister == nil {
				return fmt.Errorf("devices: the configured device does not support package listing")
			}
			pkgs, err := lister.ListPackages(cmd.Context())
			if err != nil {
				return fmt.Errorf("devices: %w", err)
			}
			for _, p := range pkgs {
				fmt.Println(p)
			}
			return nil
		},
	}
}

func newProfilesCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured LLM provider profiles and their agent-role bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg.Providers)
			}
			for _, p := range cfg.Providers {
				fmt.Printf("%s\t%s\t%s\n", p.Name, p.Provider, p.Model)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
