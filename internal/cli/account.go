package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/kidfeed/internal/api/response"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
	}

	cmd.AddCommand(newAccountSignupCmd())
	cmd.AddCommand(newAccountLoginCmd())
	cmd.AddCommand(newAccountLogoutCmd())
	cmd.AddCommand(newAccountMeCmd())
	cmd.AddCommand(newAccountAvatarCmd())
	cmd.AddCommand(newAccountAvatarsCmd())

	return cmd
}

func newAccountSignupCmd() *cobra.Command {
	var name, user, pass, bio, accountType, pin, parent, parentPin string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a parent or child account",
		Long: `Create an account and log in.

Parent accounts choose a 4 digit PIN with --pin. Child accounts name their
parent with --parent and confirm the link with the parent's PIN (--parent-pin).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username":     user,
				"password":     pass,
				"display_name": name,
				"bio":          bio,
				"account_type": accountType,
			}
			switch accountType {
			case "parent":
				req["pin"] = pin
			case "child":
				req["parent_username"] = parent
				req["parent_pin"] = parentPin
			default:
				return fmt.Errorf("--type must be parent or child")
			}

			var result response.AuthResponse
			if err := client.Post("/api/v1/accounts", req, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&bio, "bio", "", "Short bio")
	cmd.Flags().StringVar(&accountType, "type", "child", "Account type: parent, child")
	cmd.Flags().StringVar(&pin, "pin", "", "Parent PIN (parent accounts)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent's username (child accounts)")
	cmd.Flags().StringVar(&parentPin, "parent-pin", "", "Parent's PIN (child accounts)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newAccountLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username": user,
				"password": pass,
			}
			var result response.AuthResponse

			if err := client.Post("/api/v1/sessions", req, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.SessionToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newAccountLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current login",
		Long:  "End the current login. A child's unapproved post is discarded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.LogoutResponse

			if err := client.Delete("/api/v1/sessions/current", &result); err != nil {
				return err
			}

			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAccountMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Profile

			if err := client.Get("/api/v1/me", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAccountAvatarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <id>",
		Short: "Change a child's profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"avatar": args[0]}
			var result response.Profile

			if err := client.Put("/api/v1/me/avatar", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAccountAvatarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "avatars",
		Short: "List the available profile pictures",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Avatar

			if err := client.Get("/api/v1/avatars", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
