// Package monitor runs one polling cycle: fetch and classify every selected
// product, then notify about the states worth announcing.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/classifier"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/fetcher"
	"github.com/ykvlv/stockwatch-bot/internal/metrics"
)

const (
	DefaultWorkers      = 4
	DefaultFetchTimeout = 60 * time.Second
)

// Config tunes a Monitor. Zero values select the defaults.
type Config struct {
	Workers      int
	FetchTimeout time.Duration
	Policy       domain.NotifyPolicy
}

// Monitor is the poll cycle orchestrator.
type Monitor struct {
	fetcher    fetcher.Fetcher
	classifier classifier.Classifier
	notifier   Notifier
	log        *zap.Logger
	metrics    *metrics.Metrics

	workers int
	timeout time.Duration
	policy  domain.NotifyPolicy
	now     func() time.Time
}

// New creates a Monitor. notifier and m may be nil.
func New(f fetcher.Fetcher, c classifier.Classifier, n Notifier, log *zap.Logger, m *metrics.Metrics, cfg Config) *Monitor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Policy == nil {
		cfg.Policy = domain.DefaultNotifyPolicy()
	}
	return &Monitor{
		fetcher:    f,
		classifier: c,
		notifier:   n,
		log:        log,
		metrics:    m,
		workers:    cfg.Workers,
		timeout:    cfg.FetchTimeout,
		policy:     cfg.Policy,
		now:        time.Now,
	}
}

// RunCycle checks every product and returns results in input order.
// Per-product failures become FetchError results; the cycle itself never fails.
func (m *Monitor) RunCycle(ctx context.Context, products []domain.Product) []domain.CycleResult {
	started := m.now()
	log := m.log.With(zap.String("cycle", uuid.NewString()))
	log.Debug("cycle started", zap.Int("products", len(products)))

	results := m.fanOut(ctx, products)

	notified := make(map[string]bool, len(results))
	for _, r := range results {
		m.logResult(log, r)
		m.metrics.RecordResult(r)

		if !m.policy.ShouldNotify(r.State) || m.notifier == nil || notified[r.Product.ID] {
			continue
		}
		notified[r.Product.ID] = true
		err := m.notifier.Notify(ctx, r.Product, r.State)
		m.metrics.RecordNotification(err)
		if err != nil {
			log.Error("notify failed", zap.String("product", r.Product.ID), zap.Error(err))
		}
	}

	elapsed := m.now().Sub(started)
	m.metrics.RecordCycle(elapsed)
	log.Info("cycle finished",
		zap.Int("products", len(results)),
		zap.Int("notified", len(notified)),
		zap.Duration("took", elapsed),
	)
	return results
}

// fanOut runs checks on a bounded worker pool and waits for all of them.
func (m *Monitor) fanOut(ctx context.Context, products []domain.Product) []domain.CycleResult {
	results := make([]domain.CycleResult, len(products))
	jobs := make(chan int, len(products))
	for i := range products {
		jobs <- i
	}
	close(jobs)

	workers := min(m.workers, len(products))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = m.check(ctx, products[i])
			}
		}()
	}
	wg.Wait()
	return results
}

// check fetches and classifies one product.
func (m *Monitor) check(ctx context.Context, p domain.Product) (res domain.CycleResult) {
	start := m.now()
	res = domain.CycleResult{Product: p}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("check panic", zap.String("product", p.ID), zap.Any("panic", r))
			res.State = domain.FetchError
			res.Err = fmt.Errorf("%w: panic: %v", domain.ErrFetch, r)
		}
		res.CheckedAt = m.now().UTC()
		res.Latency = m.now().Sub(start)
	}()

	fctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	page, err := m.fetcher.Fetch(fctx, p.SourceURL)
	if err != nil {
		res.State = domain.FetchError
		res.Err = err
		return res
	}
	res.State = m.classifier.Classify(page)
	return res
}

func (m *Monitor) logResult(log *zap.Logger, r domain.CycleResult) {
	fields := []zap.Field{
		zap.String("product", r.Product.ID),
		zap.String("state", r.State.String()),
		zap.Duration("latency", r.Latency),
	}
	if r.State == domain.FetchError {
		log.Error("stock check failed", append(fields, zap.Error(r.Err))...)
		return
	}
	log.Info("stock checked", fields...)
}
