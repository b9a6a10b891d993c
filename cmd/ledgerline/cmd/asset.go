package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgerline/internal/app"
	"github.com/ledgerline/ledgerline/internal/asset"
)

var (
	assetType        string
	assetCurrency    string
	assetDescription string
	assetTags        []string
	valueNote        string
)

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage tracked assets",
}

var assetAddCmd = &cobra.Command{
	Use:   "add <name> <value>",
	Short: "Add a new asset",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssetAdd,
}

var assetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all assets",
	Args:  cobra.NoArgs,
	RunE:  runAssetList,
}

var assetShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one asset with its transaction history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetShow,
}

var assetSetValueCmd = &cobra.Command{
	Use:   "set-value <id> <value>",
	Short: "Revalue an asset and record the change",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssetSetValue,
}

var assetDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an asset and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetDelete,
}

var assetSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show portfolio totals by type and currency",
	Args:  cobra.NoArgs,
	RunE:  runAssetSummary,
}

func init() {
	assetAddCmd.Flags().StringVar(&assetType, "type", "other", "asset type (cash, bank_deposit, stock, fund, bond, real_estate, vehicle, crypto, precious_metal, other)")
	assetAddCmd.Flags().StringVar(&assetCurrency, "currency", "", "currency code (default CNY)")
	assetAddCmd.Flags().StringVar(&assetDescription, "description", "", "free-form description")
	assetAddCmd.Flags().StringSliceVar(&assetTags, "tags", nil, "comma-separated tags")
	assetSetValueCmd.Flags().StringVar(&valueNote, "note", "", "note recorded with the value change")

	assetCmd.AddCommand(assetAddCmd)
	assetCmd.AddCommand(assetListCmd)
	assetCmd.AddCommand(assetShowCmd)
	assetCmd.AddCommand(assetSetValueCmd)
	assetCmd.AddCommand(assetDeleteCmd)
	assetCmd.AddCommand(assetSummaryCmd)
	rootCmd.AddCommand(assetCmd)
}

func runAssetAdd(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}

	return withApp(func(a *app.App) error {
		rec := asset.New(args[0], asset.ParseType(assetType), value)
		if assetCurrency != "" {
			rec.WithCurrency(asset.Currency(strings.ToUpper(assetCurrency)))
		}
		if assetDescription != "" {
			rec.WithDescription(assetDescription)
		}
		if len(assetTags) > 0 {
			rec.WithTags(assetTags...)
		}

		if err := a.CreateAsset(context.Background(), rec); err != nil {
			return err
		}
		fmt.Printf("Added asset %s (%s)\n", rec.Name, rec.ID)
		return nil
	})
}

func runAssetList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		assets, err := a.Assets(context.Background())
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			fmt.Println("No assets tracked yet.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Name", "Type", "Value", "Currency", "Tags")
		for _, rec := range assets {
			table.Append(
				rec.ID.String(),
				rec.Name,
				string(rec.Type),
				formatValue(rec.Value),
				string(rec.Currency),
				strings.Join(rec.Tags, ", "),
			)
		}
		table.Render()
		return nil
	})
}

func runAssetShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id %q: %w", args[0], err)
	}

	return withApp(func(a *app.App) error {
		ctx := context.Background()
		rec, err := a.Asset(ctx, id)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")
		table.Append("ID", rec.ID.String())
		table.Append("Name", rec.Name)
		table.Append("Type", string(rec.Type))
		table.Append("Value", formatValue(rec.Value))
		table.Append("Currency", string(rec.Currency))
		table.Append("Description", rec.Description)
		table.Append("Tags", strings.Join(rec.Tags, ", "))
		table.Append("Created", rec.CreatedAt.Format("2006-01-02 15:04"))
		table.Append("Updated", rec.UpdatedAt.Format("2006-01-02 15:04"))
		table.Render()

		txs, err := a.Transactions(ctx, id)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			return nil
		}

		fmt.Println("\nHistory:")
		history := tablewriter.NewWriter(os.Stdout)
		history.Header("When", "Kind", "Before", "After", "Note")
		for _, tx := range txs {
			history.Append(
				tx.Timestamp.Format("2006-01-02 15:04"),
				string(tx.Kind),
				formatValue(tx.AmountBefore),
				formatValue(tx.AmountAfter),
				tx.Note,
			)
		}
		history.Render()
		return nil
	})
}

func runAssetSetValue(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id %q: %w", args[0], err)
	}
	value, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}

	return withApp(func(a *app.App) error {
		rec, err := a.SetAssetValue(context.Background(), id, value, valueNote)
		if err != nil {
			return err
		}
		fmt.Printf("%s is now %s %s\n", rec.Name, formatValue(rec.Value), rec.Currency)
		return nil
	})
}

func runAssetDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id %q: %w", args[0], err)
	}

	return withApp(func(a *app.App) error {
		if err := a.DeleteAsset(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted asset %s\n", id)
		return nil
	})
}

func runAssetSummary(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		sum, err := a.Summary(context.Background())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Breakdown", "Value")
		table.Append("Total", formatValue(sum.TotalValue))
		table.Append("Assets", strconv.Itoa(sum.AssetCount))
		for _, key := range sortedKeys(sum.ByType) {
			table.Append("Type: "+key, formatValue(sum.ByType[key]))
		}
		for _, key := range sortedKeys(sum.ByCurrency) {
			table.Append("Currency: "+key, formatValue(sum.ByCurrency[key]))
		}
		table.Render()
		return nil
	})
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
