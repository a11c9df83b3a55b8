package cmd

import (
	"context"
	"fmt"
	"strings"

	"newsplugin/internal/redisclient"
	"newsplugin/internal/settings"
	"newsplugin/internal/storage"
	"newsplugin/internal/transport"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the stored account key and transport method",
}

func settingsProvider() (*settings.Provider, func()) {
	rdb := redisclient.New(GetConfig().Redis)
	return settings.NewProvider(storage.NewRedisStore(rdb)), func() { rdb.Close() }
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <key>",
	Short: "Store the activation key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, done := settingsProvider()
		defer done()
		if err := p.SetAPIKey(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "api key saved")
		return nil
	},
}

var setMethodCmd = &cobra.Command{
	Use:       "set-method <platform|native|socket>",
	Short:     "Store the preferred transport method",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(transport.Platform), string(transport.Native), string(transport.Socket)},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, done := settingsProvider()
		defer done()
		m := transport.ParseMethod(args[0])
		if err := p.SetMethod(context.Background(), m); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "url method set to %s\n", m)
		return nil
	},
}

var showSettingsCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, done := settingsProvider()
		defer done()
		s, err := p.Load(context.Background())
		if err != nil {
			return err
		}
		out := map[string]any{
			"api_key": maskKey(s.APIKey),
			"active":  s.Active(),
			"method":  string(s.Method),
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(out)
	},
}

func maskKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(setKeyCmd, setMethodCmd, showSettingsCmd)
}
