package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gitgate/internal/config"
	"github.com/ppiankov/gitgate/internal/policy"
)

var (
	installMode  string
	installForce bool
	installBin   string
)

func init() {
	installCmd.Flags().StringVar(&installMode, "mode", "update", "Hook to install: update or pre-receive")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Overwrite existing hook and config files")
	installCmd.Flags().StringVar(&installBin, "binary", "", "gitgate binary the hook runs (default: this executable)")
	rootCmd.AddCommand(installCmd)
}

var installCmd = &cobra.Command{
	Use:   "install <repo>",
	Short: "Install gitgate as a hook in a repository",
	Long: `Writes the hook script, a gitgate.yaml and a starter users.json into
the repository's hooks directory. <repo> is either a bare repository or a
working tree with a .git directory.

Existing files are kept unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

const updateHookScript = `#!/bin/sh
# installed by gitgate install
exec %q --config %q "$1" "$2" "$3"
`

const preReceiveHookScript = `#!/bin/sh
# installed by gitgate install
exec %q --config %q pre-receive
`

// hooksDir returns <repo>/.git/hooks for a working tree, <repo>/hooks
// for a bare repository.
func hooksDir(repo string) (string, error) {
	info, err := os.Stat(repo)
	if err != nil {
		return "", fmt.Errorf("repository: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repository %s is not a directory", repo)
	}
	if fi, err := os.Stat(filepath.Join(repo, ".git")); err == nil && fi.IsDir() {
		return filepath.Join(repo, ".git", "hooks"), nil
	}
	return filepath.Join(repo, "hooks"), nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	repo, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	dir, err := hooksDir(repo)
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(dir, "gitgate.yaml")

	bin := installBin
	if bin == "" {
		bin, err = os.Executable()
		if err != nil {
			return fmt.Errorf("locate gitgate binary: %w", err)
		}
	}

	var hookName, script string
	switch installMode {
	case "update":
		hookName, script = "update", fmt.Sprintf(updateHookScript, bin, cfgPath)
	case "pre-receive":
		hookName, script = "pre-receive", fmt.Sprintf(preReceiveHookScript, bin, cfgPath)
	default:
		return fmt.Errorf("unknown hook mode %q (want update or pre-receive)", installMode)
	}

	cfg := config.Default()
	cfg.Policy = filepath.Join(dir, "users.json")
	cfg.GitDir = filepath.Dir(dir)
	cfgContent, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	var created []string
	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{filepath.Join(dir, hookName), script, 0o755},
		{cfgPath, cfgContent, 0o644},
		{cfg.Policy, policy.SampleJSON(), 0o644},
	}
	for _, f := range files {
		wrote, err := writeIfMissing(f.path, f.content, installForce)
		if err != nil {
			return err
		}
		if !wrote {
			continue
		}
		if err := os.Chmod(f.path, f.mode); err != nil {
			return fmt.Errorf("chmod %s: %w", f.path, err)
		}
		created = append(created, f.path)
	}

	w := cmd.OutOrStdout()
	if len(created) == 0 {
		fmt.Fprintf(w, "gitgate already installed in %s (use --force to overwrite)\n", dir)
		return nil
	}
	fmt.Fprintf(w, "Installed gitgate %s hook:\n", hookName)
	for _, path := range created {
		fmt.Fprintf(w, "  %s\n", path)
	}
	fmt.Fprintf(w, "\nEdit %s to grant branch roles.\n", cfg.Policy)
	return nil
}

// writeIfMissing writes content to path unless it exists and force is unset.
func writeIfMissing(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
