package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/brightdata-go/pkg/zone"
)

func newZonesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "List, create and delete the account's zones",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active zones",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				appInstance, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				zones, err := appInstance.Client().ListZones(cmd.Context(), true)
				if err != nil {
					return fmt.Errorf("list zones: %w", err)
				}
				rows := make([][]string, 0, len(zones))
				for _, z := range zones {
					rows = append(rows, []string{z.Name, z.Type, z.Status})
				}
				return newPrinter(cmd.OutOrStdout(), root.output).table("zones", []string{"name", "type", "status"}, rows)
			},
		},
		&cobra.Command{
			Use:   "ensure",
			Short: "Create the configured unlocker, SERP and browser zones if missing",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				appInstance, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				client := appInstance.Client()
				if err := client.EnsureZones(cmd.Context()); err != nil {
					return fmt.Errorf("ensure zones: %w", err)
				}
				names := client.Zones()
				return newPrinter(cmd.OutOrStdout(), root.output).value("zones ready", map[string]any{
					string(zone.RoleWebUnlocker): names.Name(zone.RoleWebUnlocker),
					string(zone.RoleSERP):        names.Name(zone.RoleSERP),
					string(zone.RoleBrowser):     names.Name(zone.RoleBrowser),
				})
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a zone",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				appInstance, err := resolveApp(cmd.Context())
				if err != nil {
					return err
				}
				if err := appInstance.Client().DeleteZone(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("delete zone %s: %w", args[0], err)
				}
				return newPrinter(cmd.OutOrStdout(), root.output).message("deleted zone " + args[0])
			},
		},
	)
	return cmd
}
