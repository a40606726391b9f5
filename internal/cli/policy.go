package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/kidfeed/internal/api/response"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Parental control commands",
	}

	cmd.AddCommand(newPolicyGetCmd())
	cmd.AddCommand(newPolicySetCmd())

	return cmd
}

func policyPath(child string) string {
	return "/api/v1/children/" + url.PathEscape(child) + "/policy"
}

func newPolicyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <child>",
		Short: "Show a child's settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Policy

			if err := client.Get(policyPath(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newPolicySetCmd() *cobra.Command {
	var (
		budget                     int
		filter, approval, viewOnly bool
	)

	cmd := &cobra.Command{
		Use:   "set <child>",
		Short: "Change a child's settings",
		Long: `Change a child's settings. Only the flags given are changed.

A new time limit applies from the child's next session.`,
		Example: `  kidfeed policy set kid --time-limit 90 --view-only=false`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			req := map[string]any{}
			if flags.Changed("time-limit") {
				req["session_budget_minutes"] = budget
			}
			if flags.Changed("content-filter") {
				req["content_filter_enabled"] = filter
			}
			if flags.Changed("approval") {
				req["post_approval_required"] = approval
			}
			if flags.Changed("view-only") {
				req["view_only"] = viewOnly
			}
			if len(req) == 0 {
				return fmt.Errorf("nothing to change: pass at least one setting flag")
			}

			var result response.Policy
			if err := client.Patch(policyPath(args[0]), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&budget, "time-limit", 0, "Daily session length in minutes (15-480)")
	cmd.Flags().BoolVar(&filter, "content-filter", true, "Hide posts flagged as unsuitable")
	cmd.Flags().BoolVar(&approval, "approval", true, "Require a parent's PIN before posts are published")
	cmd.Flags().BoolVar(&viewOnly, "view-only", false, "Block posting and liking")

	return cmd
}
