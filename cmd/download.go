package cmd

import (
	"context"
	"strings"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"

	"github.com/spf13/cobra"
)

var (
	dlOwner   string
	dlType    string
	dlQuality string
	batchMax  int
)

var downloadCmd = &cobra.Command{
	Use:   "download <query or link>",
	Short: "Download the first match and print its path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := media.ParseType(dlType)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			job, err := a.EnqueueDownload(ctx, dlOwner, app.Target{URL: strings.Join(args, " ")}, app.Options{Type: t, Quality: dlQuality})
			if err != nil {
				return err
			}
			infoColor.Printf("Downloading %s...\n", job.Request.Title)

			out, err := job.Wait(ctx)
			if err != nil {
				return err
			}
			printOutcome(out)
			return nil
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <query or link>",
	Short: "Download every match of a search, playlist or album, one at a time",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := media.ParseType(dlType)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			outcomes, err := a.Batch(ctx, strings.Join(args, " "), downloader.BatchOptions{
				Owner:    dlOwner,
				Type:     t,
				Quality:  dlQuality,
				MaxItems: batchMax,
			})
			for _, out := range outcomes {
				printOutcome(out)
			}
			okColor.Printf("%d downloaded\n", len(outcomes))
			return err
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{downloadCmd, batchCmd} {
		c.Flags().StringVar(&dlOwner, "owner", "cli", "queue to run the download in")
		c.Flags().StringVarP(&dlType, "type", "t", "audio", "audio or video")
		c.Flags().StringVarP(&dlQuality, "quality", "q", "", "audio quality (0-10) or max video height (720)")
		rootCmd.AddCommand(c)
	}
	batchCmd.Flags().IntVarP(&batchMax, "max", "n", 0, "maximum items (default BATCH_MAX_ITEMS)")
}
