package orderbook

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// bookSide groups the three structures kept per side. They share nothing
// but price values.
type bookSide struct {
	orders *orderStore
	levels *levelIndex
	best   *priceHeap
}

func newBookSide(side Side) *bookSide {
	s := &bookSide{
		orders: newOrderStore(),
		levels: newLevelIndex(),
	}
	s.best = newPriceHeap(side == Bid, s.levels.isLive)
	return s
}

// OrderBook is the matching engine for one instrument.
// It is not safe for concurrent use.
type OrderBook struct {
	bids *bookSide
	asks *bookSide

	fulfilled map[uint64]struct{}
	lastID    uint64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:      newBookSide(Bid),
		asks:      newBookSide(Ask),
		fulfilled: make(map[uint64]struct{}),
	}
}

// BBO is the best bid and offer. HasBid/HasAsk are false for an empty side.
type BBO struct {
	Bid    int64
	Ask    int64
	HasBid bool
	HasAsk bool
}

// Fill is one execution against a resting order. Remaining is what the
// resting order has left; zero means it was fully filled and removed.
type Fill struct {
	OrderID   uint64
	UserID    string
	Price     int64
	Quantity  int64
	Remaining int64
}

// MarketResult reports a market order sweep. Filled never exceeds
// Requested. Notional is kept as a decimal because price times quantity
// does not fit in int64 for large orders.
type MarketResult struct {
	Side         Side
	Requested    int64
	Filled       int64
	Notional     decimal.Decimal
	AveragePrice decimal.Decimal
	Fills        []Fill
}

// NoLiquidity reports the empty-fill outcome: nothing rested on the
// opposite side, or nothing was requested.
func (r MarketResult) NoLiquidity() bool { return r.Filled == 0 }

// Unfilled is the part of the request left over after the sweep.
func (r MarketResult) Unfilled() int64 { return r.Requested - r.Filled }

func (b *OrderBook) side(s Side) *bookSide {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// AddLimitOrder rests a new order and returns its id.
// Ids increase strictly and are never reused.
func (b *OrderBook) AddLimitOrder(side Side, userID string, qty, price int64) (uint64, error) {
	if !side.Valid() {
		return 0, errors.Wrapf(ErrInvalidArgument, "side %d", side)
	}
	if qty <= 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "quantity %d must be positive", qty)
	}
	if price <= 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "price %d must be positive", price)
	}

	b.lastID++
	o := &Order{
		ID:       b.lastID,
		Seq:      b.lastID,
		UserID:   userID,
		Side:     side,
		Price:    price,
		Qty:      qty,
		Original: qty,
		Status:   Resting,
	}

	s := b.side(side)
	s.orders.insert(o)
	// Only a new level needs a heap entry, so every live level owns at
	// least one entry for as long as it exists. A stale entry left behind by
	// an earlier level at this price may duplicate it, which peekBest
	// tolerates.
	if s.levels.push(o) {
		s.best.push(price)
	}
	return o.ID, nil
}

// CancelLimitOrder removes a resting order and returns its final record.
// Heap entries for its price are left for lazy cleanup.
func (b *OrderBook) CancelLimitOrder(id uint64) (*Order, error) {
	for _, s := range []*bookSide{b.bids, b.asks} {
		o, ok := s.orders.remove(id)
		if !ok {
			continue
		}
		s.levels.remove(o)
		o.Status = Cancelled
		return o, nil
	}
	if _, ok := b.fulfilled[id]; ok {
		return nil, errors.Wrapf(ErrAlreadyFulfilled, "order %d", id)
	}
	return nil, errors.Wrapf(ErrNotFound, "order %d", id)
}

// PlaceMarketOrder executes qty against the opposite side, best price
// first and FIFO within a price, until qty is exhausted or the opposite
// side is empty. Whatever cannot be filled is dropped.
func (b *OrderBook) PlaceMarketOrder(side Side, qty int64) (MarketResult, error) {
	if !side.Valid() {
		return MarketResult{}, errors.Wrapf(ErrInvalidArgument, "side %d", side)
	}
	if qty < 0 {
		return MarketResult{}, errors.Wrapf(ErrInvalidArgument, "quantity %d is negative", qty)
	}

	res := MarketResult{Side: side, Requested: qty, Notional: decimal.Zero}
	book := b.side(side.Opposite())
	want := qty

	for want > 0 {
		price, ok := book.best.peekBest()
		if !ok {
			break
		}
		id, _ := book.levels.front(price)
		o, _ := book.orders.get(id)

		var trade int64
		if o.Qty <= want {
			trade = o.Qty
			book.levels.popFront(price)
			if !book.levels.isLive(price) {
				book.best.popBest()
			}
			book.orders.remove(id)
			o.Qty = 0
			o.Status = Filled
			b.fulfilled[id] = struct{}{}
		} else {
			trade = want
			book.orders.decrement(id, trade)
		}

		want -= trade
		res.Filled += trade
		res.Notional = res.Notional.Add(decimal.NewFromInt(price).Mul(decimal.NewFromInt(trade)))
		res.Fills = append(res.Fills, Fill{
			OrderID:   o.ID,
			UserID:    o.UserID,
			Price:     price,
			Quantity:  trade,
			Remaining: o.Qty,
		})
	}

	res.AveragePrice = averagePrice(res.Notional, res.Filled)
	return res, nil
}

func averagePrice(notional decimal.Decimal, filled int64) decimal.Decimal {
	if filled == 0 {
		return decimal.Zero
	}
	return notional.Div(decimal.NewFromInt(filled))
}

// BestBidOffer returns the highest live bid and lowest live ask.
func (b *OrderBook) BestBidOffer() BBO {
	var q BBO
	q.Bid, q.HasBid = b.bids.best.peekBest()
	q.Ask, q.HasAsk = b.asks.best.peekBest()
	return q
}

// Lookup returns the resting order with the given id.
func (b *OrderBook) Lookup(id uint64) (*Order, bool) {
	if o, ok := b.bids.orders.get(id); ok {
		return o, true
	}
	return b.asks.orders.get(id)
}

// Fulfilled reports whether a market order fully executed id.
func (b *OrderBook) Fulfilled(id uint64) bool {
	_, ok := b.fulfilled[id]
	return ok
}

// Len is the number of resting orders on a side.
func (b *OrderBook) Len(side Side) int {
	return b.side(side).orders.len()
}

// LevelView aggregates one live price level.
type LevelView struct {
	Price    int64
	Quantity int64
	Orders   int
}

type DepthSnapshot struct {
	Bids []LevelView
	Asks []LevelView
}

// Depth returns up to levels aggregated price levels per side, best first.
// levels <= 0 returns every level. The heaps are not touched.
func (b *OrderBook) Depth(levels int) DepthSnapshot {
	return DepthSnapshot{
		Bids: b.bids.depth(levels, true),
		Asks: b.asks.depth(levels, false),
	}
}

func (s *bookSide) depth(n int, desc bool) []LevelView {
	keys := make([]int64, 0, s.levels.len())
	for p := range s.levels.levels {
		keys = append(keys, p)
	}
	slices.Sort(keys)
	if desc {
		slices.Reverse(keys)
	}
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}

	out := make([]LevelView, 0, len(keys))
	for _, p := range keys {
		lvl := s.levels.level(p)
		out = append(out, LevelView{Price: p, Quantity: lvl.Quantity(), Orders: lvl.Len()})
	}
	return out
}
