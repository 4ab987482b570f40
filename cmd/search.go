package cmd

import (
	"context"
	"strings"

	"cryogon/rizumu-fetch/app"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query or link>",
	Short: "List candidates for a query, playlist or Spotify link",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			results, err := a.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printDescriptors(results)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
