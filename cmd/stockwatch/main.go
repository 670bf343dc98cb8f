// Command stockwatch watches retailer product pages and announces restocks
// in a Telegram chat.
//
// Usage:
//
//	stockwatch run                # start the bot
//	stockwatch check [ids...]     # one-shot check, results on stdout
//	stockwatch products           # list the catalog
//	stockwatch logs -n 20         # tail the log journal
//	stockwatch version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ykvlv/stockwatch-bot/internal/config"
)

// Set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "Product stock monitor with Telegram notifications",
	Long: `stockwatch polls product pages on an interval, classifies each page as
In Stock, Coming Soon, Sold Out or not found, and posts a message to a
Telegram chat when a product becomes available.

Configuration comes from environment variables, optionally loaded from
a .env file. BOT_TOKEN and CHAT_ID are required for "run".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		files, _ := cmd.Flags().GetStringSlice("env-file")
		return config.LoadDotEnv(files...)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stockwatch %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files to load before reading the environment")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
