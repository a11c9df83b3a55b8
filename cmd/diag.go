package cmd

import (
	"context"
	"fmt"
	"time"

	"newsplugin/internal/api"
	"newsplugin/internal/transport"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Connectivity diagnostics against the news API",
}

var diagConnectivityCmd = &cobra.Command{
	Use:   "connectivity",
	Short: "Run the HTTP, HTTPS and ping tests over every transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(api.Diagnose(ctx, a.remote, a.api.Root()))
	},
}

var diagMethod string

var diagPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Call the API ping endpoint over one transport",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		m := transport.ParseMethod(diagMethod)
		res := api.PingTest(ctx, a.remote.Getter(m), a.api.Root())
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m, res.Summary())
		return nil
	},
}

func init() {
	diagPingCmd.Flags().StringVar(&diagMethod, "method", string(transport.Platform), "transport: platform, native or socket")
	diagCmd.AddCommand(diagConnectivityCmd, diagPingCmd)
	rootCmd.AddCommand(diagCmd)
}
