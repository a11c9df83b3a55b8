package cmd

import (
	"fmt"

	"newsplugin/internal/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUser int64
	tokenCaps []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue signed tokens for testing the HTTP surface",
}

func issuer() *auth.Issuer {
	cfg := GetConfig()
	return auth.NewIssuer(auth.Config{
		Secret:     cfg.Auth.Secret,
		SessionTTL: cfg.Auth.SessionTTL,
		ActionTTL:  cfg.Auth.ActionTTL,
	})
}

var tokenSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Issue a viewer session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := issuer().IssueSession(auth.Viewer{UserID: tokenUser, Caps: tokenCaps})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var tokenActionCmd = &cobra.Command{
	Use:   "action",
	Short: "Issue a management action token",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := issuer().IssueActionToken(tokenUser)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.PersistentFlags().Int64Var(&tokenUser, "user", 0, "user id")
	tokenSessionCmd.Flags().StringSliceVar(&tokenCaps, "caps", []string{auth.CapEditPages}, "capabilities")
	tokenCmd.AddCommand(tokenSessionCmd, tokenActionCmd)
	rootCmd.AddCommand(tokenCmd)
}
