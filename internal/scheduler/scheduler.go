package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/metrics"
)

// State of the polling timer.
type State int

const (
	Stopped State = iota
	Running
	Blackout
)

var stateNames = []string{"stopped", "running", "blackout"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// watchdogMaxDelay caps how long the blackout watchdog sleeps before re-checking.
const watchdogMaxDelay = 24 * time.Hour

// CycleRunner executes one polling cycle. monitor.Monitor implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context, products []domain.Product) []domain.CycleResult
}

// ProductSource provides the selection snapshot for a tick. catalog.Registry implements it.
type ProductSource interface {
	SelectedProducts() []domain.Product
}

// Timer is the part of *time.Timer the watchdog needs.
type Timer interface {
	Stop() bool
}

// Options configures a Scheduler.
type Options struct {
	IntervalMinutes int
	Window          domain.BlackoutWindow
	Metrics         *metrics.Metrics

	// Now and AfterFunc default to time.Now and time.AfterFunc.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) Timer
}

// CycleSummary describes the last completed cycle.
type CycleSummary struct {
	StartedAt time.Time
	Took      time.Duration
	Counts    map[domain.StockState]int
}

// Status is a consistent snapshot of the scheduler.
type Status struct {
	State        State
	Interval     time.Duration
	InFlight     bool
	NextTick     time.Time // zero unless Running
	BlackoutEnds time.Time // zero unless Blackout
	Window       domain.BlackoutWindow
	LastCycle    *CycleSummary
	LastError    error
}

// Scheduler owns the polling ticker and the weekly blackout state machine.
// At most one cycle runs at a time; ticks that arrive while a cycle is in
// flight are skipped.
type Scheduler struct {
	runner    CycleRunner
	products  ProductSource
	log       *zap.Logger
	metrics   *metrics.Metrics
	window    domain.BlackoutWindow
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer

	inFlight atomic.Bool
	cycles   sync.WaitGroup

	mu           sync.Mutex
	baseCtx      context.Context
	state        State
	interval     time.Duration
	ticker       *time.Ticker
	loopCancel   context.CancelFunc
	loopStarts   int
	nextTick     time.Time
	watchdog     Timer
	watchdogGen  uint64 // bumped on every arm and cancel; stale callbacks compare against it
	waiters      int    // Wait calls in progress; no cycle may start meanwhile
	blackoutEnds time.Time
	lastCycle    *CycleSummary
	lastErr      error
}

// New creates a stopped scheduler.
func New(runner CycleRunner, products ProductSource, log *zap.Logger, opts Options) (*Scheduler, error) {
	if err := domain.ValidateIntervalMinutes(opts.IntervalMinutes); err != nil {
		return nil, err
	}
	s := &Scheduler{
		runner:    runner,
		products:  products,
		log:       log,
		metrics:   opts.Metrics,
		window:    opts.Window,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		baseCtx:   context.Background(),
		interval:  time.Duration(opts.IntervalMinutes) * time.Minute,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	s.setStateLocked(Stopped)
	return s, nil
}

// Start begins polling, or enters Blackout if the window is active now.
// Calling Start while Running or in Blackout is a no-op.
// ctx bounds the lifetime of all cycles.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Stopped {
		return
	}
	s.baseCtx = ctx
	s.lastErr = nil
	now := s.now()
	if s.window.Contains(now) {
		s.enterBlackoutLocked(now)
		return
	}
	s.startLoopLocked(now)
}

// Stop halts polling and cancels the watchdog. An in-flight cycle finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
	s.log.Info("scheduler stopped")
}

// Fail stops the scheduler because of an unrecoverable error.
func (s *Scheduler) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
	s.lastErr = err
	s.log.Error("scheduler stopped on fatal error", zap.Error(err))
}

// Restart stops and starts again, re-evaluating the blackout window.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

// Wait blocks until the in-flight cycle, if any, completes. Cycles requested
// while Wait is blocked are refused.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	s.waiters++
	s.mu.Unlock()

	s.cycles.Wait()

	s.mu.Lock()
	s.waiters--
	s.mu.Unlock()
}

// SetInterval changes the polling period. A running ticker is reset in place;
// otherwise the value applies on the next start.
func (s *Scheduler) SetInterval(minutes int) error {
	if err := domain.ValidateIntervalMinutes(minutes); err != nil {
		return err
	}
	d := time.Duration(minutes) * time.Minute

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if s.ticker != nil {
		s.ticker.Reset(d)
		s.nextTick = s.now().Add(d)
	}
	s.log.Info("interval changed", zap.Duration("interval", d), zap.String("state", s.state.String()))
	return nil
}

// TriggerNow runs an out-of-band cycle in any state. It reports false when a
// cycle is already in flight.
func (s *Scheduler) TriggerNow() bool {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	return s.launch(ctx, "manual", false)
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Interval:  s.interval,
		InFlight:  s.inFlight.Load(),
		Window:    s.window,
		LastError: s.lastErr,
	}
	switch s.state {
	case Running:
		st.NextTick = s.nextTick
	case Blackout:
		st.BlackoutEnds = s.blackoutEnds
	}
	if s.lastCycle != nil {
		c := *s.lastCycle
		st.LastCycle = &c
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, ticker *time.Ticker) {
	defer ticker.Stop()
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick evaluates the blackout window, then launches a cycle unless one is in flight.
func (s *Scheduler) tick(loopCtx context.Context) {
	if loopCtx.Err() != nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	if s.window.Contains(now) {
		s.enterBlackoutLocked(now)
		s.mu.Unlock()
		return
	}
	s.nextTick = now.Add(s.interval)
	ctx := s.baseCtx
	s.mu.Unlock()

	s.launch(ctx, "tick", true)
}

// launch starts a cycle unless one is in flight. With requireRunning set, a
// scheduler stopped since the caller's check starts nothing.
func (s *Scheduler) launch(ctx context.Context, trigger string, requireRunning bool) bool {
	s.mu.Lock()
	if s.waiters > 0 || (requireRunning && s.state != Running) {
		state := s.state
		s.mu.Unlock()
		s.log.Debug("cycle not started", zap.String("trigger", trigger), zap.String("state", state.String()))
		return false
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.log.Warn("cycle skipped: previous cycle still running", zap.String("trigger", trigger))
		s.metrics.RecordSkippedTick()
		return false
	}
	s.cycles.Add(1)
	s.mu.Unlock()

	products := s.products.SelectedProducts()
	go func() {
		defer s.cycles.Done()
		defer s.inFlight.Store(false)

		started := s.now()
		results := s.runner.RunCycle(ctx, products)

		counts := make(map[domain.StockState]int, len(results))
		for _, r := range results {
			counts[r.State]++
		}
		s.mu.Lock()
		s.lastCycle = &CycleSummary{StartedAt: started, Took: s.now().Sub(started), Counts: counts}
		s.mu.Unlock()
	}()
	return true
}

func (s *Scheduler) startLoopLocked(now time.Time) {
	s.cancelWatchdogLocked()
	ctx, cancel := context.WithCancel(s.baseCtx)
	ticker := time.NewTicker(s.interval)
	s.ticker = ticker
	s.loopCancel = cancel
	s.loopStarts++
	s.nextTick = now
	s.blackoutEnds = time.Time{}
	s.setStateLocked(Running)
	s.log.Info("polling started", zap.Duration("interval", s.interval))

	go s.loop(ctx, ticker)
}

func (s *Scheduler) stopLoopLocked() {
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	s.nextTick = time.Time{}
}

func (s *Scheduler) haltLocked() {
	s.stopLoopLocked()
	s.cancelWatchdogLocked()
	s.blackoutEnds = time.Time{}
	s.setStateLocked(Stopped)
}

func (s *Scheduler) enterBlackoutLocked(now time.Time) {
	s.stopLoopLocked()
	s.blackoutEnds = s.window.NextEnd(now)
	s.setStateLocked(Blackout)
	s.armWatchdogLocked(now)
	s.log.Info("blackout started, polling paused",
		zap.String("window", s.window.String()),
		zap.Time("resumes_at", s.blackoutEnds),
	)
}

// armWatchdogLocked replaces any pending watchdog with one firing at the
// window end, or within watchdogMaxDelay, whichever is sooner.
func (s *Scheduler) armWatchdogLocked(now time.Time) {
	s.cancelWatchdogLocked()
	delay := s.blackoutEnds.Sub(now)
	if delay > watchdogMaxDelay {
		delay = watchdogMaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	gen := s.watchdogGen
	s.watchdog = s.afterFunc(delay, func() { s.onWatchdog(gen) })
}

func (s *Scheduler) cancelWatchdogLocked() {
	s.watchdogGen++
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

// onWatchdog resumes polling once the blackout is over. It never starts a
// second polling loop. Callbacks of replaced or cancelled timers are ignored.
func (s *Scheduler) onWatchdog(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.watchdogGen {
		s.log.Debug("stale watchdog ignored")
		return
	}
	s.watchdog = nil

	if s.state != Blackout {
		s.log.Debug("watchdog fired outside blackout", zap.String("state", s.state.String()))
		return
	}
	now := s.now()
	if s.window.Contains(now) {
		s.blackoutEnds = s.window.NextEnd(now)
		s.armWatchdogLocked(now)
		return
	}
	s.log.Info("blackout over, resuming polling")
	s.startLoopLocked(now)
}

func (s *Scheduler) setStateLocked(st State) {
	s.state = st
	s.metrics.SetSchedulerState(st.String(), stateNames...)
}
