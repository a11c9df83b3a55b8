package cmd

import (
	"context"
	"errors"
	"fmt"

	"newsplugin/internal/curation"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var curateCount int

var curateCmd = &cobra.Command{
	Use:   "curate <instance> <exclude|star|unstar|reset|publish> [arg]",
	Short: "Apply a curation action to a feed instance and print its state",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		instance, action := args[0], args[1]
		arg := ""
		if len(args) == 3 {
			arg = args[2]
		}
		count := curateCount
		if count <= 0 {
			if cfg, err := a.store.GetFeed(ctx, instance); err == nil {
				count = cfg.Count
			}
		}
		if err := a.curation.Apply(ctx, instance, action, arg, count); err != nil {
			if errors.Is(err, curation.ErrUnknownAction) {
				return fmt.Errorf("%w: %s", err, action)
			}
			return err
		}
		st, err := a.curation.Get(ctx, instance)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(st)
	},
}

func init() {
	curateCmd.Flags().IntVar(&curateCount, "count", 0, "feed count used for list limits (default: stored feed count)")
	rootCmd.AddCommand(curateCmd)
}
