package cmd

import (
	"context"
	"fmt"
	"time"

	"newsplugin/internal/redisclient"
	"newsplugin/internal/storage"

	"github.com/spf13/cobra"
)

// redisCmd groups Redis-related subcommands.
var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis utilities",
}

// flushCacheCmd drops cached feed bodies so the next render refetches.
var flushCacheCmd = &cobra.Command{
	Use:   "flush-cache",
	Short: "Delete all cached feed bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		rdb := redisclient.New(cfg.Redis)
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := storage.NewRedisStore(rdb).FlushFeedCache(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached feeds\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.AddCommand(flushCacheCmd)
}
