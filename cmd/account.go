package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAccountCmd(root *rootOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show the account behind the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			info, err := appInstance.Client().AccountInfo(cmd.Context(), refresh)
			if err != nil {
				return fmt.Errorf("account info: %w", err)
			}
			p := newPrinter(cmd.OutOrStdout(), root.output)
			switch root.output {
			case outputJSON:
				return p.json(info)
			case outputYAML:
				return p.yaml(info)
			}
			names := make([]string, len(info.Zones))
			for i, z := range info.Zones {
				names[i] = z.Name
			}
			return p.value("account", map[string]any{
				"customer_id":  info.CustomerID,
				"token_valid":  info.TokenValid,
				"zone_count":   info.ZoneCount,
				"zones":        names,
				"retrieved_at": info.RetrievedAt.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached account summary")
	return cmd
}

var errConnectionFailed = errors.New("connection test failed")

func newPingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the API is reachable with the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !appInstance.Client().TestConnection(cmd.Context()) {
				return errConnectionFailed
			}
			return newPrinter(cmd.OutOrStdout(), root.output).message("connection ok")
		},
	}
}
