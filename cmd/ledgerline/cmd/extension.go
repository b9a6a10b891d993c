package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/app"
)

var extensionCmd = &cobra.Command{
	Use:     "extension",
	Aliases: []string{"ext", "plugin"},
	Short:   "Manage Lua extensions",
}

var extensionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered extensions",
	Args:  cobra.NoArgs,
	RunE:  runExtensionList,
}

var extensionEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an extension",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtensionToggle(true),
}

var extensionDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an extension",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtensionToggle(false),
}

func init() {
	extensionCmd.AddCommand(extensionListCmd)
	extensionCmd.AddCommand(extensionEnableCmd)
	extensionCmd.AddCommand(extensionDisableCmd)
	rootCmd.AddCommand(extensionCmd)
}

func runExtensionList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		exts := a.Extensions()
		if len(exts) == 0 {
			fmt.Println("No extensions found. Drop Lua scripts into the extensions directory.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Name", "Version", "Author", "Enabled", "Description")
		for _, ext := range exts {
			enabled := "no"
			if ext.Enabled {
				enabled = "yes"
			}
			table.Append(ext.ID, ext.DisplayName(), ext.Version, ext.Author, enabled, ext.Description)
		}
		table.Render()
		return nil
	})
}

func runExtensionToggle(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if err := a.SetExtensionEnabled(args[0], enabled); err != nil {
				return err
			}
			state := "disabled"
			if enabled {
				state = "enabled"
			}
			fmt.Printf("Extension %s %s\n", args[0], state)
			return nil
		})
	}
}
