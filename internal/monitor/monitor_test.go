package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ykvlv/stockwatch-bot/internal/classifier"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/metrics"
)

type page struct {
	body  string
	err   error
	delay time.Duration
}

type fakeFetcher struct {
	pages    map[string]page
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	p, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: no route to %s", domain.ErrFetch, url)
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrFetch, ctx.Err())
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return []byte(p.body), nil
}

type sent struct {
	product string
	state   domain.StockState
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
}

func (n *fakeNotifier) Notify(_ context.Context, p domain.Product, s domain.StockState) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{p.ID, s})
	if n.fail[p.ID] {
		return fmt.Errorf("%w: chat unavailable", domain.ErrNotify)
	}
	return nil
}

const (
	addToCart = `<html><body><div class="btn"><button>Add to Cart</button></div></body></html>`
	soldOut   = `<html><body><div class="btn"><button>Sold Out</button></div></body></html>`
)

var (
	productA = domain.Product{ID: "A", DisplayName: "Alpha GPU", SourceURL: "https://shop.example/a"}
	productB = domain.Product{ID: "B", DisplayName: "Beta GPU", SourceURL: "https://shop.example/b"}
)

func newTestMonitor(f *fakeFetcher, n Notifier, cfg Config) (*Monitor, *observer.ObservedLogs, *metrics.Metrics) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New(prometheus.NewRegistry())
	return New(f, classifier.New(), n, zap.New(core), m, cfg), logs, m
}

func TestRunCycle_InStockAndSoldOut(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		productA.SourceURL: {body: addToCart},
		productB.SourceURL: {body: soldOut},
	}}
	n := &fakeNotifier{}
	mon, logs, _ := newTestMonitor(f, n, Config{})

	results := mon.RunCycle(context.Background(), []domain.Product{productA, productB})

	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Product.ID)
	assert.Equal(t, domain.InStock, results[0].State)
	assert.Equal(t, "B", results[1].Product.ID)
	assert.Equal(t, domain.SoldOut, results[1].State)

	assert.Equal(t, []sent{{"A", domain.InStock}}, n.sent)
	assert.Equal(t, 2, logs.FilterMessage("stock checked").Len())
	assert.Equal(t, 1, logs.FilterMessage("cycle finished").Len())
}

func TestRunCycle_FetchErrorIsLocal(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		productA.SourceURL: {err: fmt.Errorf("%w: connection reset", domain.ErrFetch)},
		productB.SourceURL: {body: soldOut},
	}}
	n := &fakeNotifier{}
	mon, logs, m := newTestMonitor(f, n, Config{})

	results := mon.RunCycle(context.Background(), []domain.Product{productA, productB})

	require.Len(t, results, 2)
	assert.Equal(t, domain.FetchError, results[0].State)
	assert.ErrorIs(t, results[0].Err, domain.ErrFetch)
	assert.Equal(t, domain.SoldOut, results[1].State)
	assert.Empty(t, n.sent)

	failed := logs.FilterMessage("stock check failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)

	// The next cycle is unaffected.
	f.pages[productA.SourceURL] = page{body: addToCart}
	results = mon.RunCycle(context.Background(), []domain.Product{productA})
	assert.Equal(t, domain.InStock, results[0].State)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles))
}

func TestRunCycle_AllFetchErrorsStillComplete(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{}}
	n := &fakeNotifier{}
	mon, logs, _ := newTestMonitor(f, n, Config{})

	results := mon.RunCycle(context.Background(), []domain.Product{productA, productB})
	for _, r := range results {
		assert.Equal(t, domain.FetchError, r.State)
	}
	assert.Empty(t, n.sent)
	assert.Equal(t, 1, logs.FilterMessage("cycle finished").Len())
}

func TestRunCycle_NotifyFailureDoesNotStopOthers(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		productA.SourceURL: {body: addToCart},
		productB.SourceURL: {body: addToCart},
	}}
	n := &fakeNotifier{fail: map[string]bool{"A": true}}
	mon, logs, m := newTestMonitor(f, n, Config{})

	mon.RunCycle(context.Background(), []domain.Product{productA, productB})

	assert.Len(t, n.sent, 2)
	assert.Equal(t, 1, logs.FilterMessage("notify failed").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("sent")))
}

func TestRunCycle_OneNotificationPerProduct(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{productA.SourceURL: {body: addToCart}}}
	n := &fakeNotifier{}
	mon, _, _ := newTestMonitor(f, n, Config{})

	mon.RunCycle(context.Background(), []domain.Product{productA, productA})
	assert.Len(t, n.sent, 1)
}

func TestRunCycle_BoundedConcurrency(t *testing.T) {
	pages := map[string]page{}
	var products []domain.Product
	for i := 0; i < 10; i++ {
		p := domain.Product{ID: fmt.Sprint(i), DisplayName: fmt.Sprint("GPU ", i), SourceURL: fmt.Sprint("https://shop.example/", i)}
		pages[p.SourceURL] = page{body: soldOut, delay: 20 * time.Millisecond}
		products = append(products, p)
	}
	f := &fakeFetcher{pages: pages}
	mon, _, _ := newTestMonitor(f, &fakeNotifier{}, Config{Workers: 3})

	results := mon.RunCycle(context.Background(), products)

	assert.Len(t, results, 10)
	assert.EqualValues(t, 10, f.calls.Load())
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
	for i, r := range results {
		assert.Equal(t, products[i].ID, r.Product.ID)
	}
}

func TestRunCycle_FetchTimeout(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{productA.SourceURL: {body: addToCart, delay: time.Minute}}}
	mon, _, _ := newTestMonitor(f, &fakeNotifier{}, Config{FetchTimeout: 20 * time.Millisecond})

	results := mon.RunCycle(context.Background(), []domain.Product{productA})
	assert.Equal(t, domain.FetchError, results[0].State)
	assert.True(t, errors.Is(results[0].Err, domain.ErrFetch))
}

type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, string) ([]byte, error) { panic("driver crashed") }

func TestRunCycle_PanicIsFetchError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := &fakeNotifier{}
	mon := New(panicFetcher{}, classifier.New(), n, zap.New(core), nil, Config{})

	results := mon.RunCycle(context.Background(), []domain.Product{productA})

	require.Len(t, results, 1)
	assert.Equal(t, domain.FetchError, results[0].State)
	assert.ErrorIs(t, results[0].Err, domain.ErrFetch)
	assert.Contains(t, results[0].Err.Error(), "driver crashed")
	assert.Empty(t, n.sent)
	assert.Equal(t, 1, logs.FilterMessage("stock check failed").Len())
}

func TestRunCycle_CustomPolicy(t *testing.T) {
	f := &fakeFetcher{pages: map[string]page{
		productA.SourceURL: {body: `<html><body><p>nothing</p></body></html>`},
		productB.SourceURL: {body: addToCart},
	}}
	n := &fakeNotifier{}
	mon, _, _ := newTestMonitor(f, n, Config{Policy: domain.NotifyPolicy{domain.NotFound: true}})

	mon.RunCycle(context.Background(), []domain.Product{productA, productB})
	assert.Equal(t, []sent{{"A", domain.NotFound}}, n.sent)
}

type recordingSender struct {
	chatID int64
	text   string
	err    error
}

func (s *recordingSender) SendMessage(chatID int64, text string) error {
	s.chatID, s.text = chatID, text
	return s.err
}

func TestChatNotifier(t *testing.T) {
	s := &recordingSender{}
	n := NewChatNotifier(s, 42)

	require.NoError(t, n.Notify(context.Background(), productA, domain.InStock))
	assert.Equal(t, int64(42), s.chatID)
	assert.Equal(t, "Alpha GPU - In Stock", s.text)

	s.err = errors.New("429 too many requests")
	err := n.Notify(context.Background(), productB, domain.ComingSoon)
	assert.ErrorIs(t, err, domain.ErrNotify)
	assert.Equal(t, "Beta GPU - Coming Soon", s.text)
}
