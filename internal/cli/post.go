package cli

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/kidfeed/internal/api/response"
)

func newFeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Show the feed, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Feed

			if err := client.Get("/api/v1/feed", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post commands",
	}

	cmd.AddCommand(newPostSubmitCmd())
	cmd.AddCommand(newPostApproveCmd())
	cmd.AddCommand(newPostCancelCmd())
	cmd.AddCommand(newPostLikeCmd())

	return cmd
}

func newPostSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <content>...",
		Short: "Write a post",
		Long: `Write a post. When a child's policy requires approval the post waits
until a parent enters their PIN with "post approve".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"content": strings.Join(args, " ")}
			var result response.SubmitResponse

			if err := client.Post("/api/v1/posts", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newPostApproveCmd() *cobra.Command {
	var pin string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve the waiting post with the parent's PIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"pin": pin}
			var result response.SubmitResponse

			if err := client.Post("/api/v1/posts/pending/approve", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "Parent PIN (required)")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func newPostCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the post waiting for approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/posts/pending", nil); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Post discarded")
			return nil
		},
	}
}

func newPostLikeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like a post, or remove your like",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Like

			if err := client.Post("/api/v1/posts/"+url.PathEscape(args[0])+"/like", nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
