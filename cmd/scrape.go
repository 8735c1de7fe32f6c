package cmd

import (
	"strings"

	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var (
		platform string
		name     string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape, classify and store the comments of one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cnf)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orchestrator.Scrape(ctx, ingestion.Request{
				Url:      args[0],
				Platform: model.Platform(strings.ToLower(strings.TrimSpace(platform))),
				Name:     name,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if result.ClassifyErr != nil {
				log.Warn().Err(result.ClassifyErr).Msg("new comments were stored as neutral")
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", string(model.PlatformInstagram), "source platform: instagram, youtube or amazon")
	cmd.Flags().StringVarP(&name, "name", "n", "", "product name used when the product is created")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of comments to fetch (default SCRAPE_DEFAULT_LIMIT)")
	return cmd
}
