package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gitgate/internal/model"
	"github.com/ppiankov/gitgate/internal/policy"
)

var roleActions = []model.ActionKind{model.CreateBranch, model.DeleteBranch, model.PushCommits}

var (
	policyInitFormat string
	policyInitForce  bool
)

func init() {
	policyInitCmd.Flags().StringVar(&policyInitFormat, "format", "", "json or yaml (default: from the file extension)")
	policyInitCmd.Flags().BoolVar(&policyInitForce, "force", false, "Overwrite an existing policy file")

	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyWatchCmd)
	policyCmd.AddCommand(policyInitCmd)
	rootCmd.AddCommand(policyCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy file operations",
	Long:  "Commands for checking, watching and creating the users policy file.",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a policy file against the schema",
	Long: "Parses the policy file, validates it against the embedded JSON Schema\n" +
		"and reports entries that cannot behave as written. Exits 1 if the file\n" +
		"would fail to load.",
	Args: cobra.MaximumNArgs(1),
	RunE: runPolicyValidate,
}

var policyWatchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-validate a policy file every time it changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPolicyWatch,
}

var policyInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter policy file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPolicyInit,
}

// policyPath picks the positional path, then --policy or config.
func policyPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := runtimeConfig()
	if err != nil {
		return "", err
	}
	return cfg.Policy, nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	path, err := policyPath(args)
	if err != nil {
		return err
	}
	if !validatePolicy(cmd, path) {
		osExit(1)
	}
	return nil
}

func validatePolicy(cmd *cobra.Command, path string) bool {
	doc, hash, err := policy.LoadWithHash(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "INVALID: %v\n", err)
		return false
	}
	for _, w := range policy.Lint(doc) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d users, %s)\n", path, len(doc.UsersInfo), hash)
	return true
}

func runPolicyWatch(cmd *cobra.Command, args []string) error {
	path, err := policyPath(args)
	if err != nil {
		return err
	}
	w, err := policy.NewWatcher(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	report := func(ev policy.WatchEvent) {
		if ev.Err != nil {
			fmt.Fprintf(stderr, "INVALID: %v\n", ev.Err)
			return
		}
		for _, warn := range ev.Warnings {
			fmt.Fprintf(stderr, "warning: %s\n", warn)
		}
		fmt.Fprintf(stdout, "OK: %s (%d users, %s)\n", ev.Path, len(ev.Doc.UsersInfo), ev.Hash)
	}

	report(w.Reload())
	fmt.Fprintf(stderr, "watching %s\n", w.Path())
	if err := w.Run(ctx, report); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	path, err := policyPath(args)
	if err != nil {
		return err
	}

	format := policy.FormatFor(path)
	switch policyInitFormat {
	case "":
	case string(policy.FormatJSON), string(policy.FormatYAML):
		format = policy.Format(policyInitFormat)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", policyInitFormat)
	}

	content := policy.SampleJSON()
	if format == policy.FormatYAML {
		content = policy.SampleYAML()
	}

	wrote, err := writeIfMissing(path, content, policyInitForce)
	if err != nil {
		return err
	}
	if !wrote {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	abs, _ := filepath.Abs(path)
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", abs)
	return nil
}
