package cmd

import (
	"context"
	"time"

	"newsplugin/internal/sysinfo"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var sysinfoRefresh bool

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Print the cached system info snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		var info *sysinfo.Info
		if sysinfoRefresh {
			info, err = a.sysinfo.Refresh(ctx)
		} else {
			info, err = a.sysinfo.Ensure(ctx)
		}
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(info)
	},
}

func init() {
	sysinfoCmd.Flags().BoolVar(&sysinfoRefresh, "refresh", false, "rebuild the snapshot even if it is current")
	rootCmd.AddCommand(sysinfoCmd)
}
