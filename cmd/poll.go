package cmd

import (
	"strings"
	"time"

	"go-firestore-sentiment/internal/poller"

	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	var (
		platforms []string
		limit     int
		delay     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll pass over the eligible products and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pollerCnf := cnf.Poller
			if cmd.Flags().Changed("platforms") {
				pollerCnf.Platforms = make([]string, 0, len(platforms))
				for _, p := range platforms {
					pollerCnf.Platforms = append(pollerCnf.Platforms, strings.ToLower(strings.TrimSpace(p)))
				}
			}
			if cmd.Flags().Changed("limit") {
				pollerCnf.ResultsLimit = limit
			}
			if cmd.Flags().Changed("delay") {
				pollerCnf.ProductDelay = delay
			}

			a, err := newApp(ctx, cnf)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := poller.New(a.orchestrator, a.products, pollerCnf).PollOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "platforms to poll (default POLL_PLATFORMS)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of comments fetched per product (default POLL_RESULTS_LIMIT)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between two products (default POLL_PRODUCT_DELAY)")
	return cmd
}
