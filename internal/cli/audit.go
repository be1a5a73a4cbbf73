package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gitgate/internal/audit"
)

var (
	tailLines     int
	tailDecision  string
	tailCommitter string
	tailRef       string
	tailJSON      bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show (0 for all)")
	auditTailCmd.Flags().StringVar(&tailDecision, "decision", "", "Only show allow or deny entries")
	auditTailCmd.Flags().StringVar(&tailCommitter, "committer", "", "Only show entries for this committer")
	auditTailCmd.Flags().StringVar(&tailRef, "ref", "", "Only show entries for this ref")
	auditTailCmd.Flags().BoolVar(&tailJSON, "json", false, "Output raw JSON entries")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent push decisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	osExit(1)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{
		Ref:       tailRef,
		Committer: tailCommitter,
		Decision:  tailDecision,
	}
	entries, err := audit.Tail(args[0], tailLines, filter)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if tailJSON {
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
		}
		return nil
	}
	fmt.Fprint(w, audit.FormatText(entries))
	return nil
}
