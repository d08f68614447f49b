package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/reconctl/internal/operations"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run <operation> [key=value...]",
		Short: "Run one catalog operation",
		Example: `  reconctl run port_scan target=10.0.0.5 ports=22,80,443
  reconctl run vulscan_basic target=10.0.0.5 database=exploitdb.csv --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			name := words[0]
			args, err := parseAssignments(words[1:])
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if dryRun {
				registry, err := operations.NewCatalog()
				if err != nil {
					return err
				}
				plan, err := registry.Plan(name, args)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tools.JoinCommand(cfg.Binary, plan.Args))
				return nil
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.dispatcher.Dispatch(cmd.Context(), name, args)
			fmt.Fprint(cmd.OutOrStdout(), withNewline(res.Text()))
			if !res.OK() {
				return fmt.Errorf("%s failed (%s)", name, res.Kind())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the command line instead of running it")
	return cmd
}

func newRawCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raw <command line>",
		Short: "Run a command line through the shell, verbatim",
		Long: `raw hands the joined arguments to the configured shell with no quoting or
validation. It is disabled when raw_enabled is false. Flags after the first
word belong to the command line, not to reconctl.`,
		Example: `  reconctl raw nmap -sV -p 22 10.0.0.5`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, words []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.raw == nil {
				return errors.New("raw commands are disabled (raw_enabled = false)")
			}

			text, err := rt.raw.Run(cmd.Context(), strings.Join(words, " "))
			fmt.Fprint(cmd.OutOrStdout(), withNewline(text))
			return err
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
