// Package events defines the execution reports the engine publishes and
// their protobuf wire encoding.
package events

import (
	"github.com/shopspring/decimal"

	"lob/domain/orderbook"
)

type Type uint8

const (
	OrderAccepted Type = iota + 1
	OrderCancelled
	OrderFilled
	MarketOrderDone
)

func (t Type) String() string {
	switch t {
	case OrderAccepted:
		return "order_accepted"
	case OrderCancelled:
		return "order_cancelled"
	case OrderFilled:
		return "order_filled"
	case MarketOrderDone:
		return "market_order_done"
	default:
		return "unknown"
	}
}

// Event is a flat execution report. Which fields are meaningful depends on
// Type; Seq, Time and Instrument are stamped by the publisher.
type Event struct {
	Seq        uint64
	Time       int64
	Type       Type
	Instrument string

	OrderID   uint64
	UserID    string
	Side      orderbook.Side
	Price     int64
	Quantity  int64
	Remaining int64

	// MarketOrderDone only.
	Requested int64
	Filled    int64
	Notional  decimal.Decimal
}

func Accepted(o *orderbook.Order) Event {
	return Event{
		Type:      OrderAccepted,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Side:      o.Side,
		Price:     o.Price,
		Quantity:  o.Original,
		Remaining: o.Qty,
	}
}

func Cancelled(o *orderbook.Order) Event {
	return Event{
		Type:      OrderCancelled,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Side:      o.Side,
		Price:     o.Price,
		Quantity:  o.Original,
		Remaining: o.Qty,
	}
}

// Filled reports one execution against a resting order. Side is the side
// of the resting (maker) order.
func Filled(maker orderbook.Side, f orderbook.Fill) Event {
	return Event{
		Type:      OrderFilled,
		OrderID:   f.OrderID,
		UserID:    f.UserID,
		Side:      maker,
		Price:     f.Price,
		Quantity:  f.Quantity,
		Remaining: f.Remaining,
	}
}

func MarketDone(r orderbook.MarketResult) Event {
	return Event{
		Type:      MarketOrderDone,
		Side:      r.Side,
		Requested: r.Requested,
		Filled:    r.Filled,
		Notional:  r.Notional,
	}
}

// FromMarketResult expands a sweep into one fill per execution followed by
// the summary.
func FromMarketResult(r orderbook.MarketResult) []Event {
	out := make([]Event, 0, len(r.Fills)+1)
	maker := r.Side.Opposite()
	for _, f := range r.Fills {
		out = append(out, Filled(maker, f))
	}
	return append(out, MarketDone(r))
}
