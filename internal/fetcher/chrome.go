package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// ChromeFetcher renders pages in headless Chrome. The browser is started on
// first use and shared; each Fetch runs in its own tab.
type ChromeFetcher struct {
	opts   Options
	launch func(Options) (browser context.Context, browserCancel, allocCancel context.CancelFunc, err error)

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewChrome creates a headless-browser fetcher.
func NewChrome(opts Options) *ChromeFetcher {
	return &ChromeFetcher{opts: opts, launch: launchChrome}
}

// browser returns the shared browser context, relaunching Chrome when the
// previous browser has gone away.
func (f *ChromeFetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browserCtx != nil {
		if f.browserCtx.Err() == nil {
			return f.browserCtx, nil
		}
		f.closeLocked()
	}

	browserCtx, browserCancel, allocCancel, err := f.launch(f.opts)
	if err != nil {
		return nil, err
	}
	f.browserCtx, f.browserCancel, f.allocCancel = browserCtx, browserCancel, allocCancel
	return browserCtx, nil
}

func launchChrome(opts Options) (context.Context, context.CancelFunc, context.CancelFunc, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// Run with no actions starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, nil, fmt.Errorf("start chrome: %w", err)
	}
	return browserCtx, browserCancel, allocCancel, nil
}

// Fetch implements Fetcher. The deadline of ctx bounds the whole page load.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	parent, err := f.browser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(parent)
	defer cancelTab()

	// chromedp only honours cancellation of its own context tree.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var markup string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: render %s: %v", domain.ErrFetch, url, err)
	}
	return []byte(markup), nil
}

// Close shuts the browser down. Safe to call multiple times.
func (f *ChromeFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *ChromeFetcher) closeLocked() {
	if f.browserCancel != nil {
		f.browserCancel()
		f.allocCancel()
	}
	f.browserCtx, f.browserCancel, f.allocCancel = nil, nil, nil
}
