package orderbook

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Side int
type Status int

const (
	Bid Side = iota
	Ask
)

const (
	Resting Status = iota
	Cancelled
	Filled
)

// ParseSide accepts "bid"/"buy" and "ask"/"sell", case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown side %q", s)
}

func (s Side) Valid() bool { return s == Bid || s == Ask }

// Opposite returns the side a market order on s consumes.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	switch s {
	case Resting:
		return "resting"
	case Cancelled:
		return "cancelled"
	case Filled:
		return "filled"
	default:
		return "unknown"
	}
}

// Order is the canonical record of a limit order.
// Qty is the remaining quantity and stays > 0 while the order rests.
type Order struct {
	ID       uint64
	Seq      uint64
	UserID   string
	Side     Side
	Price    int64
	Qty      int64
	Original int64
	Status   Status

	// FIFO links inside the order's price level.
	next *Order
	prev *Order
}

// Filled reports how much of the order has executed so far.
func (o *Order) Filled() int64 {
	return o.Original - o.Qty
}
