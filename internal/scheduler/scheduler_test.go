package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ykvlv/stockwatch-bot/internal/classifier"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/monitor"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) }

type timerFactory struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *timerFactory) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *timerFactory) last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) RunCycle(_ context.Context, products []domain.Product) []domain.CycleResult {
	r.calls.Add(1)
	out := make([]domain.CycleResult, len(products))
	for i, p := range products {
		out[i] = domain.CycleResult{Product: p, State: domain.SoldOut}
	}
	return out
}

type staticProducts []domain.Product

func (s staticProducts) SelectedProducts() []domain.Product { return s }

var (
	friday   = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)
	monday   = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	products = staticProducts{{ID: "A", DisplayName: "Alpha", SourceURL: "https://shop.example/a"}}
)

type harness struct {
	s      *Scheduler
	clock  *fakeClock
	timers *timerFactory
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T, runner CycleRunner, at time.Time) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	clock := &fakeClock{now: at}
	timers := &timerFactory{}
	s, err := New(runner, products, zap.New(core), Options{
		IntervalMinutes: 60,
		Window:          domain.Weekend(time.UTC),
		Now:             clock.Now,
		AfterFunc:       timers.AfterFunc,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})
	return &harness{s: s, clock: clock, timers: timers, logs: logs}
}

func TestNew_RejectsBadInterval(t *testing.T) {
	_, err := New(&countingRunner{}, products, zap.NewNop(), Options{IntervalMinutes: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestStart_WeekdayRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, friday)

	h.s.Start(context.Background())

	assert.Equal(t, Running, h.s.Status().State)
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.s.Status().LastCycle != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.s.Status().LastCycle.Counts[domain.SoldOut])
}

func TestStart_Idempotent(t *testing.T) {
	h := newHarness(t, &countingRunner{}, friday)
	h.s.Start(context.Background())
	h.s.Start(context.Background())

	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	assert.Equal(t, 1, h.s.loopStarts)
}

func TestStart_DuringBlackout(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, saturday.Add(3*time.Hour))

	h.s.Start(context.Background())

	st := h.s.Status()
	assert.Equal(t, Blackout, st.State)
	assert.True(t, st.BlackoutEnds.Equal(monday))
	assert.Zero(t, runner.calls.Load())

	// The watchdog sleeps at most a day, even though Monday is further away.
	require.NotNil(t, h.timers.last())
	assert.Equal(t, watchdogMaxDelay, h.timers.last().delay)
}

func TestTick_EntersBlackoutAndStopsTicker(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, friday)
	h.s.Start(context.Background())
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The tick at the transition instant yields to the blackout.
	h.clock.Set(saturday)
	h.s.tick(context.Background())

	st := h.s.Status()
	assert.Equal(t, Blackout, st.State)
	assert.True(t, st.NextTick.IsZero())
	h.s.mu.Lock()
	assert.Nil(t, h.s.ticker)
	assert.Nil(t, h.s.loopCancel)
	h.s.mu.Unlock()
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.Equal(t, 1, h.logs.FilterMessage("blackout started, polling paused").Len())
}

func TestWatchdog_ResumesAfterBlackout(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, saturday.Add(12*time.Hour))
	h.s.Start(context.Background())
	require.Equal(t, Blackout, h.s.Status().State)

	// Still inside the window: watchdog re-arms instead of starting.
	first := h.timers.last()
	h.clock.Set(saturday.Add(36 * time.Hour))
	first.fn()
	assert.Equal(t, Blackout, h.s.Status().State)
	second := h.timers.last()
	require.NotSame(t, first, second)
	assert.Equal(t, 12*time.Hour, second.delay)

	h.clock.Set(monday)
	second.fn()
	assert.Equal(t, Running, h.s.Status().State)
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatchdog_DoesNotRestartTwice(t *testing.T) {
	h := newHarness(t, &countingRunner{}, friday)
	h.s.Start(context.Background())

	h.s.mu.Lock()
	gen := h.s.watchdogGen
	h.s.mu.Unlock()
	h.s.onWatchdog(gen)
	h.s.onWatchdog(gen)

	assert.Equal(t, Running, h.s.Status().State)
	h.s.mu.Lock()
	assert.Equal(t, 1, h.s.loopStarts)
	h.s.mu.Unlock()
}

func TestWatchdog_ReArmReplacesPending(t *testing.T) {
	h := newHarness(t, &countingRunner{}, saturday.Add(time.Hour))
	h.s.Start(context.Background())
	first := h.timers.last()

	h.s.mu.Lock()
	h.s.armWatchdogLocked(h.clock.Now())
	h.s.mu.Unlock()

	assert.True(t, first.stopped.Load())
	assert.False(t, h.timers.last().stopped.Load())
}

func TestWatchdog_StaleCallbackAfterRestartIsIgnored(t *testing.T) {
	h := newHarness(t, &countingRunner{}, saturday.Add(time.Hour))
	h.s.Start(context.Background())
	stale := h.timers.last()

	h.s.Restart(context.Background())
	require.Equal(t, Blackout, h.s.Status().State)
	current := h.timers.last()
	require.NotSame(t, stale, current)

	// The replaced timer fired before Stop could cancel it.
	stale.fn()

	assert.Same(t, current, h.timers.last(), "no extra watchdog armed")
	assert.False(t, current.stopped.Load())

	live := 0
	h.timers.mu.Lock()
	for _, tm := range h.timers.timers {
		if !tm.stopped.Load() {
			live++
		}
	}
	h.timers.mu.Unlock()
	assert.Equal(t, 1, live)

	h.s.Stop()
	assert.True(t, current.stopped.Load())
}

func TestLaunch_RefusedAfterStop(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, friday)
	h.s.mu.Lock()
	h.s.state = Running
	h.s.mu.Unlock()

	// A tick that passed its state check just before Stop.
	h.s.Stop()
	assert.False(t, h.s.launch(context.Background(), "tick", true))
	h.s.Wait()
	assert.Zero(t, runner.calls.Load())
	assert.False(t, h.s.Status().InFlight)
}

func TestStop_CancelsWatchdog(t *testing.T) {
	h := newHarness(t, &countingRunner{}, saturday)
	h.s.Start(context.Background())
	timer := h.timers.last()

	h.s.Stop()

	assert.Equal(t, Stopped, h.s.Status().State)
	assert.True(t, timer.stopped.Load())

	// A late-firing watchdog must not resurrect an explicitly stopped scheduler.
	h.clock.Set(monday)
	timer.fn()
	assert.Equal(t, Stopped, h.s.Status().State)
}

func TestFail_RecordsError(t *testing.T) {
	h := newHarness(t, &countingRunner{}, friday)
	h.s.Start(context.Background())

	h.s.Fail(domain.ErrDestinationUnresolvable)

	st := h.s.Status()
	assert.Equal(t, Stopped, st.State)
	assert.ErrorIs(t, st.LastError, domain.ErrDestinationUnresolvable)
}

func TestSetInterval(t *testing.T) {
	h := newHarness(t, &countingRunner{}, friday)
	h.s.Start(context.Background())

	err := h.s.SetInterval(0)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	assert.Equal(t, time.Hour, h.s.Status().Interval)

	require.NoError(t, h.s.SetInterval(15))
	st := h.s.Status()
	assert.Equal(t, Running, st.State)
	assert.Equal(t, 15*time.Minute, st.Interval)
	assert.Equal(t, friday.Add(15*time.Minute), st.NextTick)
}

func TestSetInterval_WhileStoppedAppliesOnStart(t *testing.T) {
	h := newHarness(t, &countingRunner{}, friday)

	require.NoError(t, h.s.SetInterval(5))
	assert.Equal(t, Stopped, h.s.Status().State)

	h.s.Start(context.Background())
	assert.Equal(t, 5*time.Minute, h.s.Status().Interval)
}

// blockingFetcher holds every fetch until released.
type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return []byte("<div>Sold Out</div>"), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, ctx.Err())
	}
}

func TestTick_SkipsWhileCycleInFlight(t *testing.T) {
	fetch := &blockingFetcher{release: make(chan struct{})}
	mon := monitor.New(fetch, classifier.New(), nil, zap.NewNop(), nil, monitor.Config{})
	h := newHarness(t, mon, friday)

	// Drive ticks by hand instead of through the ticker goroutine.
	h.s.mu.Lock()
	h.s.state = Running
	h.s.mu.Unlock()

	h.s.tick(context.Background())
	require.Eventually(t, func() bool { return fetch.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.s.tick(context.Background())
	assert.EqualValues(t, 1, fetch.calls.Load())
	assert.Equal(t, 1, h.logs.FilterMessage("cycle skipped: previous cycle still running").Len())
	assert.True(t, h.s.Status().InFlight)

	close(fetch.release)
	h.s.Wait()
	assert.False(t, h.s.Status().InFlight)

	// The next tick is eligible again.
	h.s.tick(context.Background())
	h.s.Wait()
	assert.EqualValues(t, 2, fetch.calls.Load())
}

func TestTriggerNow(t *testing.T) {
	runner := &countingRunner{}
	h := newHarness(t, runner, saturday)

	assert.True(t, h.s.TriggerNow())
	h.s.Wait()
	assert.EqualValues(t, 1, runner.calls.Load())
}
