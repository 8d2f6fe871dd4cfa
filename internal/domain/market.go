package domain

import "time"

// PriceSample is a single observed (timestamp, price) pair for one symbol.
// Immutable once created.
type PriceSample struct {
	Timestamp time.Time
	Price     float64
}

// Tick is a raw feed update as pushed by the feed collaborator.
// Archived to the ticks table when a tick store is configured.
type Tick struct {
	Symbol    string
	Timestamp time.Time
	Price     float64
}
