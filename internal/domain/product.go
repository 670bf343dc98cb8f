package domain

import "time"

// Product is a single catalog entry. Products are immutable once the catalog is loaded.
type Product struct {
	ID          string
	DisplayName string
	SourceURL   string
}

// CycleResult is the outcome of checking one product during a polling cycle.
type CycleResult struct {
	Product   Product
	State     StockState
	Err       error         // set for FetchError results
	CheckedAt time.Time     // UTC
	Latency   time.Duration // fetch + classify
}
