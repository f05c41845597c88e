package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operations HTTP server",
		Long: `Run the operations HTTP server. It exposes health and Prometheus metrics
endpoints, zone listing, manual job control and the run ledger under /v1.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationVerbose: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("serve: %w", err)
			}
			appInstance.Logger().Info("server stopped")
			return nil
		},
	}
}
