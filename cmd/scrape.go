package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
	"github.com/JakeFAU/brightdata-go/pkg/result"
)

type pollFlags struct {
	interval time.Duration
	timeout  time.Duration
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "poll-interval", 0, "delay between status checks (default from config)")
	cmd.Flags().DurationVar(&f.timeout, "poll-timeout", 0, "overall polling budget (default from config)")
}

func (f *pollFlags) poll() brightdata.Poll {
	return brightdata.Poll{Interval: f.interval, Timeout: f.timeout}
}

func newScrapeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch pages through the web unlocker or collect platform datasets",
	}
	cmd.AddCommand(newScrapeURLCmd(root), newScrapePlatformCmd(root))
	return cmd
}

func newScrapeURLCmd(root *rootOptions) *cobra.Command {
	var (
		opts brightdata.ScrapeOptions
		poll pollFlags
		save string
	)
	cmd := &cobra.Command{
		Use:   "url <url> [url...]",
		Short: "Fetch one or more URLs through the web unlocker zone",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts.Poll = poll.poll()
			scraped, err := appInstance.Client().Scrape().URLs(cmd.Context(), args, opts)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			results := make([]result.Result, len(scraped))
			for i, r := range scraped {
				results[i] = r
			}
			if err := saveResults(save, root.output, results...); err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), root.output).results(results...)
		},
	}
	cmd.Flags().StringVar(&opts.Country, "country", "", "ISO country code for the exit node")
	cmd.Flags().StringVar(&opts.Format, "format", "raw", "response format: raw or json")
	cmd.Flags().StringVar(&opts.Method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&opts.SourceTag, "source-tag", "", "tag recorded with the request")
	cmd.Flags().StringVar(&save, "save", "", "also write each result to this path")
	poll.register(cmd)
	return cmd
}

func newScrapePlatformCmd(root *rootOptions) *cobra.Command {
	var (
		options map[string]string
		tag     string
		poll    pollFlags
		save    string
	)
	cmd := &cobra.Command{
		Use:   "platform <platform> <method> <value> [value...]",
		Short: "Collect structured records from a platform dataset",
		Long: `Collect structured records from a platform dataset such as amazon,
linkedin, instagram, facebook or chatgpt. Values are URLs, or prompts and
keywords for methods that take them.`,
		Example: `  brightdata scrape platform amazon products https://www.amazon.com/dp/B0CRMZHDG8
  brightdata scrape platform instagram posts https://www.instagram.com/nasa/ --option num_of_posts=5`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Client().Scrape().Platform(cmd.Context(), args[0], args[1], args[2:],
				brightdata.PlatformOptions{Options: optionMap(options), SourceTag: tag, Poll: poll.poll()})
			if err != nil {
				return fmt.Errorf("scrape %s %s: %w", args[0], args[1], err)
			}
			if err := saveResults(save, root.output, res); err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), root.output).results(res)
		},
	}
	cmd.Flags().StringToStringVar(&options, "option", nil, "method input as key=value (repeatable)")
	cmd.Flags().StringVar(&tag, "source-tag", "", "tag recorded with the collection")
	cmd.Flags().StringVar(&save, "save", "", "also write the result to this path")
	poll.register(cmd)
	return cmd
}

// optionMap turns flag values into dataset inputs. Empty maps become nil.
func optionMap(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
