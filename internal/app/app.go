package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/catalog"
	"github.com/ykvlv/stockwatch-bot/internal/config"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/fetcher"
	"github.com/ykvlv/stockwatch-bot/internal/metrics"
	"github.com/ykvlv/stockwatch-bot/internal/monitor"
	"github.com/ykvlv/stockwatch-bot/internal/scheduler"
	"github.com/ykvlv/stockwatch-bot/internal/store"
	"github.com/ykvlv/stockwatch-bot/internal/telegram"
)

type App struct {
	cfg      config.Config
	log      *zap.Logger
	bot      *tgbotapi.BotAPI
	httpSrv  *http.Server
	journal  store.Journal
	registry *catalog.Registry
	fetcher  fetcher.Fetcher
	sched    *scheduler.Scheduler
	router   *telegram.Router
}

// New wires every component. Credentials and chat reachability are checked
// here so a misconfigured bot never starts polling.
func New(ctx context.Context, cfg config.Config, tg config.Telegram, log *zap.Logger) (*App, error) {
	journal, log, err := OpenJournal(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, log: log, journal: journal}

	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	if a.registry, err = LoadRegistry(cfg); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	a.bot, err = tgbotapi.NewBotAPI(tg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram login: %v", domain.ErrMissingCredentials, err)
	}
	a.bot.Debug = false
	chat, err := a.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: tg.ChatID}})
	if err != nil {
		return nil, fmt.Errorf("%w: chat %d: %v", domain.ErrDestinationUnresolvable, tg.ChatID, err)
	}
	log.Info("telegram ready", zap.String("bot", a.bot.Self.UserName), zap.Int64("chatID", chat.ID), zap.String("chat", chat.Title))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	if a.fetcher, err = NewFetcher(cfg); err != nil {
		return nil, err
	}

	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	out := telegram.NewMessenger(a.bot)
	mon := NewMonitor(cfg, a.fetcher, monitor.NewChatNotifier(out, tg.ChatID), log, m)
	a.sched, err = scheduler.New(mon, a.registry, log, scheduler.Options{
		IntervalMinutes: cfg.IntervalMinutes,
		Window:          window,
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}
	a.router = telegram.NewRouter(out, log, tg.ChatID, a.sched, a.registry, journal)

	if cfg.HTTPAddr != "" {
		a.httpSrv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      newMux(a.sched, promReg),
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}

	ok = true
	return a, nil
}

// Run starts polling and serves Telegram updates until ctx is cancelled or
// a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("starting stockwatch-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Strings("products", a.registry.Selection()),
		zap.Int("intervalMinutes", a.cfg.IntervalMinutes),
		zap.String("backend", a.cfg.FetchBackend),
	)

	if a.httpSrv != nil {
		go func() {
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server error", zap.Error(err))
			}
		}()
	}

	a.sched.Start(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case upd, open := <-updCh:
			if !open {
				err := errors.New("telegram update stream closed")
				a.sched.Fail(err)
				a.shutdown()
				return err
			}
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) shutdown() {
	a.bot.StopReceivingUpdates()
	a.sched.Stop()
	a.sched.Wait()

	if a.httpSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := a.httpSrv.Shutdown(shCtx)
		cancel()
		if err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
	}
	a.log.Info("stopped")
	a.close()
}

func (a *App) close() {
	if a.fetcher != nil {
		CloseFetcher(a.fetcher)
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

type statusSource interface {
	Status() scheduler.Status
}

func newMux(s statusSource, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler(s))
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// healthHandler reports the scheduler state; a scheduler halted by a fatal
// error is unhealthy.
func healthHandler(s statusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := s.Status()
		if st.LastError != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "%s: %v\n", st.State, st.LastError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, st.State)
	}
}
