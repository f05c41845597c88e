package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
	"github.com/JakeFAU/brightdata-go/pkg/normalize"
)

// newJobsCmd exposes the trigger, status and fetch steps separately so long
// collections can be checked on later.
func newJobsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger dataset collections and check on them later",
	}

	var (
		options map[string]string
		tag     string
	)
	trigger := &cobra.Command{
		Use:   "trigger <platform> <method> <value> [value...]",
		Short: "Start a collection and print its job ID",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			jobID, err := appInstance.Client().Scrape().Trigger(cmd.Context(), args[0], args[1], args[2:],
				brightdata.PlatformOptions{Options: optionMap(options), SourceTag: tag})
			if err != nil {
				return fmt.Errorf("trigger: %w", err)
			}
			return newPrinter(cmd.OutOrStdout(), root.output).value("job triggered", map[string]any{"job_id": jobID})
		},
	}
	trigger.Flags().StringToStringVar(&options, "option", nil, "method input as key=value (repeatable)")
	trigger.Flags().StringVar(&tag, "source-tag", "", "tag recorded with the collection")

	status := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			state, err := appInstance.Client().Scrape().Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return newPrinter(cmd.OutOrStdout(), root.output).value("job status", map[string]any{
				"job_id": args[0],
				"status": string(state),
			})
		},
	}

	var shape string
	fetch := &cobra.Command{
		Use:   "fetch <job-id>",
		Short: "Download a finished job's data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := normalize.ParseShape(shape)
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			data, err := appInstance.Client().Scrape().Fetch(cmd.Context(), args[0], parsed)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}
			p := newPrinter(cmd.OutOrStdout(), root.output)
			if root.output == outputYAML {
				return p.yaml(data)
			}
			if s, ok := data.(string); ok && root.output == outputText {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
				return err
			}
			return p.json(data)
		},
	}
	fetch.Flags().StringVar(&shape, "shape", string(normalize.OpaqueList), "data shape: organic-list, opaque-record, opaque-list or raw-text")

	cmd.AddCommand(trigger, status, fetch)
	return cmd
}
