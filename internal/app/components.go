package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/catalog"
	"github.com/ykvlv/stockwatch-bot/internal/classifier"
	"github.com/ykvlv/stockwatch-bot/internal/config"
	"github.com/ykvlv/stockwatch-bot/internal/fetcher"
	"github.com/ykvlv/stockwatch-bot/internal/logger"
	"github.com/ykvlv/stockwatch-bot/internal/metrics"
	"github.com/ykvlv/stockwatch-bot/internal/monitor"
	"github.com/ykvlv/stockwatch-bot/internal/store"
)

// OpenJournal opens the log journal, trims it to cfg.LogRetain rows and
// returns log teed into it.
func OpenJournal(ctx context.Context, cfg config.Config, log *zap.Logger) (*store.SQLiteJournal, *zap.Logger, error) {
	j, err := store.OpenSQLite(ctx, cfg.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	if cfg.LogRetain > 0 {
		removed, err := j.Prune(ctx, cfg.LogRetain)
		if err != nil {
			_ = j.Close()
			return nil, nil, fmt.Errorf("prune journal: %w", err)
		}
		if removed > 0 {
			log.Info("journal pruned", zap.Int64("removed", removed), zap.Int("kept", cfg.LogRetain))
		}
	}
	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		_ = j.Close()
		return nil, nil, err
	}
	return j, logger.WithJournal(log, j, lvl), nil
}

// LoadRegistry loads the catalog and applies PRODUCTS as the initial selection.
// Unknown ids in PRODUCTS are a configuration error.
func LoadRegistry(cfg config.Config) (*catalog.Registry, error) {
	f, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	initial := f.DefaultSelection
	if len(cfg.Products) > 0 {
		initial = cfg.Products
	}
	return catalog.NewRegistry(f.ProductList(), initial)
}

// NewFetcher builds the configured fetch backend.
func NewFetcher(cfg config.Config) (fetcher.Fetcher, error) {
	return fetcher.New(cfg.FetchBackend, fetcher.Options{
		UserAgent:         cfg.UserAgent,
		RequestsPerMinute: cfg.FetchRPM,
		ChromePath:        cfg.ChromePath,
	})
}

// CloseFetcher releases backend resources, if any.
func CloseFetcher(f fetcher.Fetcher) {
	if c, ok := f.(fetcher.Closer); ok {
		c.Close()
	}
}

// NewMonitor builds the poll cycle orchestrator. n and m may be nil.
func NewMonitor(cfg config.Config, f fetcher.Fetcher, n monitor.Notifier, log *zap.Logger, m *metrics.Metrics) *monitor.Monitor {
	return monitor.New(f, classifier.New(), n, log, m, monitor.Config{
		Workers:      cfg.Workers,
		FetchTimeout: cfg.FetchTimeout,
		Policy:       cfg.NotifyPolicy(),
	})
}
