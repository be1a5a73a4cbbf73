package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/gitgate/internal/audit"
	"github.com/ppiankov/gitgate/internal/config"
	"github.com/ppiankov/gitgate/internal/gate"
	"github.com/ppiankov/gitgate/internal/history"
	"github.com/ppiankov/gitgate/internal/logging"
)

// Messages shown to the pushing client.
const (
	msgAllowed = "User Ok"
	msgDenied  = "User Not Permission"
)

var (
	cfgFile      string
	flagPolicy   string
	flagAuditLog string
	flagGitDir   string
	verbose      bool
)

// osExit is replaced in tests.
var osExit = os.Exit

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default hooks/gitgate.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&flagPolicy, "policy", "", "Policy file (default hooks/users.json)")
	rootCmd.PersistentFlags().StringVar(&flagAuditLog, "audit-log", "", "Append decisions to this hash-chained audit log")
	rootCmd.PersistentFlags().StringVar(&flagGitDir, "git-dir", "", "Repository to read history from (default: GIT_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every decision step to stderr")
}

var rootCmd = &cobra.Command{
	Use:   "gitgate <ref> <old> <new>",
	Short: "Branch access control for git pushes",
	Long: "Runs as a git update hook. Classifies the ref update as a branch\n" +
		"creation, deletion or commit push, finds the committer of the newest\n" +
		"pushed commit, looks up their role for the branch in the policy file,\n" +
		"and accepts or rejects the update.\n\n" +
		"Exit code 0 if authorized, 1 otherwise. Any error rejects the update.",
	Args:         cobra.ExactArgs(3),
	RunE:         runHook,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtimeConfig resolves config with command-line overrides applied.
func runtimeConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flagPolicy != "" {
		cfg.Policy = flagPolicy
	}
	if flagAuditLog != "" {
		cfg.AuditLog = flagAuditLog
	}
	if flagGitDir != "" {
		cfg.GitDir = flagGitDir
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	if cfg.LogFormat == "json" {
		return logging.NewJSON(w, cfg.LogLevel)
	}
	return logging.New(w, cfg.LogLevel)
}

// buildGate wires the git history, the policy file and the optional audit
// log. The returned close func must be called when done.
func buildGate(cfg *config.Config, log zerolog.Logger) (*gate.Gate, func(), error) {
	h := history.NewGit(cfg.GitBinary, cfg.GitDir, cfg.HistoryTimeout)
	// Only the newest commit in a range is consulted.
	h.MaxCount = 1

	opts := []gate.Option{gate.WithLogger(log)}
	closeFn := func() {}

	if cfg.AuditLog != "" {
		al, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, gate.WithAudit(al))
		closeFn = func() {
			if err := al.Close(); err != nil {
				log.Error().Err(err).Str("path", al.Path()).Msg("close audit log")
			}
		}
	}

	return gate.New(h, gate.NewPolicyFile(cfg.Policy), opts...), closeFn, nil
}

func runHook(cmd *cobra.Command, args []string) error {
	if !hookDecision(cmd, args[0], args[1], args[2]) {
		osExit(1)
	}
	return nil
}

// hookDecision is the update hook: one ref update, fail-closed.
func hookDecision(cmd *cobra.Command, ref, oldID, newID string) bool {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := runtimeConfig()
	if err != nil {
		fmt.Fprintf(stderr, "gitgate: %v\n", err)
		fmt.Fprintln(stdout, msgDenied)
		return false
	}
	log := newLogger(stderr, cfg)

	g, closeFn, err := buildGate(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		fmt.Fprintln(stdout, msgDenied)
		return false
	}
	defer closeFn()

	res := g.Decide(cmd.Context(), ref, oldID, newID)
	if res.Allowed() {
		fmt.Fprintln(stdout, msgAllowed)
		return true
	}

	fmt.Fprintln(stdout, msgDenied)
	// Policy outcomes are safe to show; errors stay in the log.
	if res.Err == nil {
		fmt.Fprintf(stderr, "gitgate: %s: %s\n", res.Update.Ref, res.Reason)
	}
	return false
}
