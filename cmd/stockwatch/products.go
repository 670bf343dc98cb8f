package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ykvlv/stockwatch-bot/internal/app"
	"github.com/ykvlv/stockwatch-bot/internal/config"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the product catalog",
	Long:  `List every catalog entry. Entries in the initial selection are marked with *.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		reg, err := app.LoadRegistry(cfg)
		if err != nil {
			return err
		}
		selected := make(map[string]bool)
		for _, id := range reg.Selection() {
			selected[id] = true
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "\tID\tNAME\tURL")
		for _, p := range reg.Catalog() {
			mark := ""
			if selected[p.ID] {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, p.ID, p.DisplayName, p.SourceURL)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(productsCmd)
}
