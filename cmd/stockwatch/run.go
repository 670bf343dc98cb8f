package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/app"
	"github.com/ykvlv/stockwatch-bot/internal/config"
	"github.com/ykvlv/stockwatch-bot/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	Long: `Start polling and serve Telegram commands until interrupted.

The bot verifies its token and the target chat before polling starts; an
unreachable chat aborts startup.`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	tg, err := config.LoadTelegram()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	defer func() { _ = log.Sync() }()

	application, err := app.New(cmd.Context(), cfg, tg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(cmd.Context()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
	return nil
}
