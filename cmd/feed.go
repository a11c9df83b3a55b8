package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"newsplugin/internal/auth"
	"newsplugin/internal/model"
	"newsplugin/internal/widget"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Manage stored feed instances",
}

func addFeedFlags(fs *pflag.FlagSet, c *model.FeedConfig) {
	fs.StringVar(&c.Title, "title", "", "feed title")
	fs.StringVar(&c.Keywords, "keywords", "News", "search keywords")
	fs.IntVar(&c.Count, "count", 5, "number of headlines shown")
	fs.IntVar(&c.Age, "age", 0, "maximum headline age in hours (0 = any)")
	fs.StringVar(&c.Sources, "sources", "", "comma-separated source whitelist")
	fs.StringVar(&c.ExcludedSources, "excluded-sources", "", "comma-separated source blacklist")
	fs.StringVar(&c.SearchMode, "search-mode", "", "search mode")
	fs.StringVar(&c.SearchType, "search-type", "", "search type")
	fs.StringVar(&c.SortMode, "sort-mode", "", "sort mode")
	fs.StringVar(&c.LinkOpenMode, "link-open-mode", "", "link target, e.g. _blank")
	fs.StringVar(&c.LinkFollow, "link-follow", "", "\"no\" adds rel=nofollow")
	fs.StringVar(&c.LinkType, "link-type", "", "link type")
	fs.BoolVar(&c.ShowDate, "show-date", false, "show headline dates")
	fs.BoolVar(&c.ShowSource, "show-source", false, "show headline sources")
	fs.BoolVar(&c.ShowAbstract, "show-abstract", false, "show headline abstracts")
	fs.StringVar(&c.FeedMode, "feed-mode", "", "auto or manual")
	fs.Int64Var(&c.OwnerUID, "owner", 0, "owner user id; selects display styles")
}

var newFeed model.FeedConfig

var feedAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new feed instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := newFeed.Sanitize(newFeed.OwnerUID)
		cfg.ID = uuid.NewString()
		if err := a.store.SaveFeed(ctx, cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.ID)
		return nil
	},
}

var updFeed model.FeedConfig

var feedUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change settings of a feed instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		cur, err := a.store.GetFeed(ctx, args[0])
		if err != nil {
			return err
		}
		// Only flags given on the command line override stored values.
		fs := cmd.Flags()
		given := pflag.NewFlagSet("given", pflag.ContinueOnError)
		stored := cur
		addFeedFlags(given, &cur) // registering resets cur to flag defaults
		cur = stored
		var ferr error
		fs.Visit(func(f *pflag.Flag) {
			if given.Lookup(f.Name) != nil && ferr == nil {
				ferr = given.Set(f.Name, f.Value.String())
			}
		})
		if ferr != nil {
			return ferr
		}
		cfg := cur.Sanitize(cur.OwnerUID)
		if err := a.store.SaveFeed(ctx, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "feed %s updated\n", cfg.ID)
		return nil
	},
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feed instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		cfgs, err := a.store.ListFeeds(ctx)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfgs)
	},
}

var feedDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a feed instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.store.DeleteFeed(ctx, args[0])
	},
}

var (
	renderUser   int64
	renderEditor bool
	renderQuery  string
)

var feedRenderCmd = &cobra.Command{
	Use:   "render <id>",
	Short: "Render a feed instance to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := a.store.GetFeed(ctx, args[0])
		if err != nil {
			return err
		}
		page, err := url.Parse(a.cfg.App.SiteURL + "/feeds/" + url.PathEscape(cfg.ID) + "?" + renderQuery)
		if err != nil {
			return err
		}
		viewer := auth.Viewer{UserID: renderUser}
		if renderEditor {
			viewer.Caps = []string{auth.CapEditPages}
		}
		res, err := a.renderer.Render(ctx, widget.Request{Config: cfg, Viewer: viewer, Page: page})
		if err != nil {
			return err
		}
		if res.Forbidden {
			return errors.New(res.Message)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	addFeedFlags(feedAddCmd.Flags(), &newFeed)
	addFeedFlags(feedUpdateCmd.Flags(), &updFeed)
	feedRenderCmd.Flags().Int64Var(&renderUser, "user", 0, "render as this user id")
	feedRenderCmd.Flags().BoolVar(&renderEditor, "editor", false, "grant the viewer feed management rights")
	feedRenderCmd.Flags().StringVar(&renderQuery, "query", "", "page query string, e.g. management parameters")
	feedCmd.AddCommand(feedAddCmd, feedUpdateCmd, feedListCmd, feedDeleteCmd, feedRenderCmd)
}
