package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
)

func newCrawlCmd(root *rootOptions) *cobra.Command {
	var (
		opts brightdata.CrawlOptions
		poll pollFlags
		save string
	)
	cmd := &cobra.Command{
		Use:   "crawl <start-url>",
		Short: "Discover pages reachable from a start URL",
		Long: `Discover pages reachable from a start URL using the crawl dataset. Filters
are regular expressions matched against discovered URLs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts.Poll = poll.poll()
			res, err := appInstance.Client().Crawl().Discover(cmd.Context(), args[0], opts)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			if err := saveResults(save, root.output, res); err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), root.output).results(res)
		},
	}
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "link depth to follow (0 uses the dataset default)")
	cmd.Flags().StringVar(&opts.FilterPattern, "filter", "", "only keep URLs matching this pattern")
	cmd.Flags().StringVar(&opts.ExcludePattern, "exclude", "", "drop URLs matching this pattern")
	cmd.Flags().StringVar(&opts.DatasetID, "dataset", "", "crawl dataset ID (default from config)")
	cmd.Flags().StringVar(&opts.SourceTag, "source-tag", "", "tag recorded with the crawl")
	cmd.Flags().StringVar(&save, "save", "", "also write the result to this path")
	poll.register(cmd)
	return cmd
}
