package domain

import "errors"

var (
	ErrFetch                   = errors.New("fetch failed")
	ErrNotify                  = errors.New("notification failed")
	ErrNoValidProducts         = errors.New("no valid product ids")
	ErrUnknownProduct          = errors.New("unknown product id")
	ErrInvalidInterval         = errors.New("interval must be a whole number of minutes >= 1")
	ErrInvalidLineCount        = errors.New("line count out of range")
	ErrUnknownStockState       = errors.New("unknown stock state")
	ErrMissingCredentials      = errors.New("missing bot credentials")
	ErrDestinationUnresolvable = errors.New("destination chat unresolvable")
)
