package scan

import (
	"github.com/shopspring/decimal"
)

// Availability is the tri-state answer for one isbn in one run.
type Availability int

const (
	// every tier came back inconclusive, see Outcome.Err
	AvailabilityUnknown Availability = iota
	AvailabilityBuyable
	AvailabilityNotBuyable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityBuyable:
		return "buyable"
	case AvailabilityNotBuyable:
		return "not-buyable"
	}
	return "unknown"
}

// Outcome is the result of resolving one isbn in one run.
//
// invariants: Price is set only when Availability is buyable, Err is
// set only when Availability is unknown.
type Outcome struct {
	Isbn         string
	Availability Availability
	Price        decimal.Decimal
	Title        string
	Url          string
	Err          string
}

func (o Outcome) Buyable() bool {
	return o.Availability == AvailabilityBuyable
}

func (o Outcome) Errored() bool {
	return o.Availability == AvailabilityUnknown
}
