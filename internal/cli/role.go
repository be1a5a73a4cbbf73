package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gitgate/internal/policy"
)

var roleJSON bool

func init() {
	roleCmd.Flags().BoolVar(&roleJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(roleCmd)
}

var roleCmd = &cobra.Command{
	Use:   "role <user> <branch>",
	Short: "Show the role a user holds on a branch",
	Long: "Resolves the role exactly as the hook does: the first entry for the\n" +
		"user, an exact branch match before the first matching wildcard.\n" +
		"Prints nothing when the user has no role on the branch.",
	Args: cobra.ExactArgs(2),
	RunE: runRole,
}

type roleOutput struct {
	User    string   `json:"user"`
	Branch  string   `json:"branch"`
	Role    string   `json:"role"`
	Permits []string `json:"permits"`
}

func runRole(cmd *cobra.Command, args []string) error {
	cfg, err := runtimeConfig()
	if err != nil {
		return err
	}
	doc, err := policy.Load(cfg.Policy)
	if err != nil {
		return err
	}

	out := roleOutput{User: args[0], Branch: args[1], Permits: []string{}}
	out.Role = doc.ResolveRole(out.User, out.Branch)
	for _, action := range roleActions {
		if policy.Permits(action, false, out.Role) {
			out.Permits = append(out.Permits, action.String())
		}
	}

	w := cmd.OutOrStdout()
	if roleJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	if out.Role == "" {
		return nil
	}
	fmt.Fprintln(w, out.Role)
	return nil
}
