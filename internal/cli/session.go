package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/kidfeed/internal/api/response"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session time commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show how much session time is left",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionStatus

			if err := client.Get("/api/v1/session", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	})

	return cmd
}
