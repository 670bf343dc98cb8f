package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ykvlv/stockwatch-bot/internal/catalog"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/scheduler"
	"github.com/ykvlv/stockwatch-bot/internal/store"
)

// maxMessageLen is the Telegram limit for a single text message.
const maxMessageLen = 4096

const helpText = "👋 I watch product pages and ping this chat when stock shows up.\n\n" +
	"/status - scheduler state, interval and selection\n" +
	"/products - catalog of known products\n" +
	"/setproducts <ids…|all> - choose products to watch\n" +
	"/setinterval <minutes> - change polling interval\n" +
	"/log [n] - last n log lines (default 10, max 200)\n" +
	"/checknow - run a check right away\n" +
	"/start, /stop, /restart - control polling\n" +
	"/clear - delete recent bot messages (admins only)"

// stateOrder fixes the order of per-state counts in the status text.
var stateOrder = []domain.StockState{
	domain.InStock, domain.ComingSoon, domain.SoldOut, domain.NotFound, domain.FetchError,
}

func formatStatus(st scheduler.Status, selection []string, now time.Time) string {
	var b strings.Builder
	b.WriteString("🧾 Stock watch status\n\n")

	switch st.State {
	case scheduler.Running:
		next := "now"
		if !st.NextTick.IsZero() {
			next = "in " + domain.FormatCountdown(st.NextTick.Sub(now))
		}
		fmt.Fprintf(&b, "• State: ✅ running, next check %s\n", next)
	case scheduler.Blackout:
		fmt.Fprintf(&b, "• State: 🌙 blackout, resumes in %s\n", domain.FormatCountdown(st.BlackoutEnds.Sub(now)))
	default:
		b.WriteString("• State: ⏸ stopped\n")
	}
	fmt.Fprintf(&b, "• Interval: %s\n", domain.FormatCountdown(st.Interval))
	fmt.Fprintf(&b, "• Products: %s\n", strings.Join(selection, ", "))
	fmt.Fprintf(&b, "• Blackout: %s\n", st.Window)

	if c := st.LastCycle; c != nil {
		var parts []string
		for _, s := range stateOrder {
			if n := c.Counts[s]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, s.Label()))
			}
		}
		fmt.Fprintf(&b, "• Last check: %s ago (%s)\n", domain.FormatCountdown(now.Sub(c.StartedAt)), strings.Join(parts, ", "))
	} else {
		b.WriteString("• Last check: none yet\n")
	}
	if st.InFlight {
		b.WriteString("• A check is running right now\n")
	}
	if st.LastError != nil {
		fmt.Fprintf(&b, "• Stopped on error: %v\n", st.LastError)
	}
	return b.String()
}

func formatProducts(products []domain.Product, selection []string) string {
	selected := make(map[string]bool, len(selection))
	for _, id := range selection {
		selected[id] = true
	}
	var b strings.Builder
	b.WriteString("📦 Catalog (✅ = watched)\n\n")
	for _, p := range products {
		mark := "▫️"
		if selected[p.ID] {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s - %s\n", mark, p.ID, p.DisplayName)
	}
	fmt.Fprintf(&b, "\nUse /setproducts <ids…> or /setproducts %s.", catalog.AllProducts)
	return b.String()
}

func formatSelectionChange(ch catalog.SelectionChange) string {
	text := "Watching: " + strings.Join(ch.Applied, ", ")
	if len(ch.Dropped) > 0 {
		text += "\nUnknown ids ignored: " + strings.Join(ch.Dropped, ", ")
	}
	return text
}

// formatLog renders journal entries as an HTML <pre> block that fits in one
// message. When the lines do not fit, the oldest ones are dropped.
func formatLog(entries []store.Entry) string {
	const preOpen, preClose = "<pre>", "</pre>"
	budget := maxMessageLen - len(preOpen) - len(preClose)

	lines := make([]string, 0, len(entries))
	used := 0
	for i := len(entries) - 1; i >= 0; i-- {
		line := html.EscapeString(entries[i].Format())
		cost := len(line)
		if len(lines) > 0 {
			cost++ // newline
		}
		if used+cost > budget {
			if len(lines) == 0 {
				lines = append(lines, truncate(line, budget))
			}
			break
		}
		lines = append(lines, line)
		used += cost
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return preOpen + strings.Join(lines, "\n") + preClose
}

// truncate cuts s to at most n bytes without splitting a rune or an HTML entity.
func truncate(s string, n int) string {
	const ellipsis = "…"
	if len(s) <= n {
		return s
	}
	cut := n - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if amp := strings.LastIndexByte(s[:cut], '&'); amp >= 0 && !strings.Contains(s[amp:cut], ";") {
		cut = amp
	}
	return s[:cut] + ellipsis
}
