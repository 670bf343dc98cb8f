package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ykvlv/stockwatch-bot/internal/app"
	"github.com/ykvlv/stockwatch-bot/internal/config"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check [ids...]",
	Short: "Run one polling cycle and print the results",
	Long: `Fetch and classify the selected products once, without Telegram.

With no arguments the configured selection (PRODUCTS or the catalog
default) is checked. "all" checks the whole catalog.

Example:
  stockwatch check
  stockwatch check rtx5080-fe rtx5090-fe`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	reg, err := app.LoadRegistry(cfg)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		ch, err := reg.SetSelection(args)
		if err != nil {
			return err
		}
		if len(ch.Dropped) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "unknown ids ignored: %s\n", strings.Join(ch.Dropped, ", "))
		}
	}

	f, err := app.NewFetcher(cfg)
	if err != nil {
		return err
	}
	defer app.CloseFetcher(f)

	mon := app.NewMonitor(cfg, f, nil, log, nil)
	results := mon.RunCycle(cmd.Context(), reg.SelectedProducts())
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results []domain.CycleResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tSTATE\tTOOK\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Product.ID, r.Product.DisplayName, r.State.Label(), r.Latency.Round(time.Millisecond), errText)
	}
	_ = tw.Flush()
}
