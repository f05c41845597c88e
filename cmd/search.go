package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/brightdata-go/internal/platform"
	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
	"github.com/JakeFAU/brightdata-go/pkg/result"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		engine string
		opts   brightdata.SearchOptions
		poll   pollFlags
		save   string
	)
	cmd := &cobra.Command{
		Use:   "search <query> [query...]",
		Short: "Run search engine queries through the SERP zone",
		Example: `  brightdata search "golang context" --engine bing --country us
  brightdata search "pizza" "tacos" --num 20 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts.Poll = poll.poll()
			found, err := appInstance.Client().Search().Queries(cmd.Context(), engine, args, opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			results := make([]result.Result, len(found))
			for i, r := range found {
				results[i] = r
			}
			if err := saveResults(save, root.output, results...); err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), root.output).results(results...)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", platform.EngineGoogle, "search engine: google, bing or yandex")
	cmd.Flags().StringVar(&opts.Country, "country", "", "country name or ISO code")
	cmd.Flags().StringVar(&opts.Language, "language", "", "result language code")
	cmd.Flags().IntVar(&opts.NumResults, "num", 10, "results per page (1-100)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "zero-based result page")
	cmd.Flags().BoolVar(&opts.Mobile, "mobile", false, "request mobile results")
	cmd.Flags().StringVar(&opts.SourceTag, "source-tag", "", "tag recorded with each query")
	cmd.Flags().StringVar(&save, "save", "", "also write each result to this path")
	poll.register(cmd)
	return cmd
}
