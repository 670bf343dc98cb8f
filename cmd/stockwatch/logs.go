package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ykvlv/stockwatch-bot/internal/config"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/store"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the newest lines of the log journal",
	Long: `Print the newest entries of the sqlite log journal at JOURNAL_PATH,
oldest first. This is the same data the /log chat command shows.`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntP("lines", "n", domain.DefaultLogLines, fmt.Sprintf("number of lines (1-%d)", domain.MaxLogLines))
}

func runLogs(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("lines")
	if _, err := domain.ParseLineCount(strconv.Itoa(n)); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	j, err := store.OpenSQLite(cmd.Context(), cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Tail(cmd.Context(), n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(cmd.OutOrStdout(), e.Format())
	}
	return nil
}
