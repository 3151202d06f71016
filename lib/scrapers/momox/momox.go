// Package momox talks to the momox.de buyback shop and digs
// price/availability signals out of whatever it answers with.
//
// everything in here is versioned against the current shape of the
// site. endpoints, field aliases and phrase lists are expected to rot
// and get patched independently of the resolution logic that calls
// this package.
package momox

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tier is one way of reaching the offer view for an isbn, ordered by
// ascending cost. the offer api is nearly free, a page fetch is cheap,
// a render through the js proxy costs real money per request.
type Tier int

const (
	TierOffer Tier = iota
	TierPage
	TierRendered
)

// Tiers returns the closed set of tiers in ascending cost order.
func Tiers() []Tier {
	return []Tier{TierOffer, TierPage, TierRendered}
}

func (t Tier) String() string {
	switch t {
	case TierOffer:
		return "offer-api"
	case TierPage:
		return "page"
	case TierRendered:
		return "rendered"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// TierFromString is the inverse of String, used when loading the
// persisted method memory.
func TierFromString(s string) (Tier, bool) {
	for _, t := range Tiers() {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

// Shape declares how a tier's response body should be read.
type Shape int

const (
	ShapeJson Shape = iota
	ShapeHtml
)

func (t Tier) Shape() Shape {
	if t == TierOffer {
		return ShapeJson
	}
	return ShapeHtml
}

// Response is the raw result of executing one tier.
type Response struct {
	Tier       Tier
	StatusCode int
	Body       []byte
}

// Signal is what extraction makes of a response. when Conclusive is
// false every other field is best-effort only. Price is set only for
// a buyable signal.
type Signal struct {
	Conclusive bool
	Buyable    bool
	Price      decimal.Decimal
	Title      string
}

func inconclusive(title string) Signal {
	return Signal{Title: title}
}

func notBuyable(title string) Signal {
	return Signal{Conclusive: true, Title: title}
}

func buyable(price decimal.Decimal, title string) Signal {
	return Signal{Conclusive: true, Buyable: true, Price: price, Title: title}
}
