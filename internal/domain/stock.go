package domain

import (
	"fmt"
	"strings"
)

// StockState is the discrete availability of a product page.
type StockState int

const (
	NotFound StockState = iota
	InStock
	ComingSoon
	SoldOut
	FetchError
)

var stateNames = map[StockState]string{
	NotFound:   "not_found",
	InStock:    "in_stock",
	ComingSoon: "coming_soon",
	SoldOut:    "sold_out",
	FetchError: "fetch_error",
}

// String returns the machine name used in config and log fields.
func (s StockState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stock_state(%d)", int(s))
}

// Label returns the human-readable text used in chat messages.
func (s StockState) Label() string {
	switch s {
	case InStock:
		return "In Stock"
	case ComingSoon:
		return "Coming Soon"
	case SoldOut:
		return "Sold Out"
	case FetchError:
		return "Fetch Error"
	default:
		return "Stock status not found"
	}
}

// ParseStockState accepts machine names ("in_stock") and labels ("In Stock").
func ParseStockState(s string) (StockState, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for st, name := range stateNames {
		if name == norm {
			return st, nil
		}
	}
	return NotFound, fmt.Errorf("%w: %q", ErrUnknownStockState, s)
}

// NotifyPolicy is the set of states that trigger an outbound message.
type NotifyPolicy map[StockState]bool

// DefaultNotifyPolicy announces purchasable and about-to-be-purchasable listings.
func DefaultNotifyPolicy() NotifyPolicy {
	return NotifyPolicy{InStock: true, ComingSoon: true}
}

// ParseNotifyPolicy builds a policy from state names. An empty list yields the default policy.
func ParseNotifyPolicy(names []string) (NotifyPolicy, error) {
	if len(names) == 0 {
		return DefaultNotifyPolicy(), nil
	}
	p := make(NotifyPolicy, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		st, err := ParseStockState(n)
		if err != nil {
			return nil, err
		}
		p[st] = true
	}
	return p, nil
}

// ShouldNotify reports whether s is notify-worthy under the policy.
func (p NotifyPolicy) ShouldNotify(s StockState) bool {
	return p[s]
}
