package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(preReceiveCmd)
}

var preReceiveCmd = &cobra.Command{
	Use:   "pre-receive",
	Short: "Authorize every ref update of a push (pre-receive hook)",
	Long: "Reads \"<old> <new> <ref>\" lines from stdin, as git passes them to a\n" +
		"pre-receive hook, and authorizes each one. The whole push is rejected\n" +
		"if any update is denied.",
	Args: cobra.NoArgs,
	RunE: runPreReceive,
}

func runPreReceive(cmd *cobra.Command, args []string) error {
	if !preReceiveDecision(cmd) {
		osExit(1)
	}
	return nil
}

func preReceiveDecision(cmd *cobra.Command) bool {
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

	results, ok := g.DecideAll(cmd.Context(), cmd.InOrStdin())
	for _, res := range results {
		if !res.Allowed() && res.Err == nil {
			fmt.Fprintf(stderr, "gitgate: %s: %s\n", res.Update.Ref, res.Reason)
		}
	}

	if ok {
		fmt.Fprintln(stdout, msgAllowed)
		return true
	}
	fmt.Fprintln(stdout, msgDenied)
	return false
}
