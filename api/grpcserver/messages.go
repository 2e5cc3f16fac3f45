package grpcserver

import "lob/domain/orderbook"

// Field numbers follow declaration order, starting at 1. Sides are the
// strings accepted by orderbook.ParseSide; decimals travel as strings.

// -------------------- Requests --------------------

type AddLimitOrderRequest struct {
	Side     string
	UserID   string
	Quantity int64
	Price    int64
}

func (m *AddLimitOrderRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Side)
	b = appendString(b, 2, m.UserID)
	b = appendSint(b, 3, m.Quantity)
	return appendSint(b, 4, m.Price)
}

func (m *AddLimitOrderRequest) readField(f field) error {
	switch f.num {
	case 1:
		m.Side = f.str()
	case 2:
		m.UserID = f.str()
	case 3:
		m.Quantity = f.sint()
	case 4:
		m.Price = f.sint()
	}
	return nil
}

type CancelLimitOrderRequest struct {
	OrderID uint64
}

func (m *CancelLimitOrderRequest) appendWire(b []byte) []byte {
	return appendUint(b, 1, m.OrderID)
}

func (m *CancelLimitOrderRequest) readField(f field) error {
	if f.num == 1 {
		m.OrderID = f.uint()
	}
	return nil
}

type PlaceMarketOrderRequest struct {
	Side     string
	Quantity int64
}

func (m *PlaceMarketOrderRequest) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Side)
	return appendSint(b, 2, m.Quantity)
}

func (m *PlaceMarketOrderRequest) readField(f field) error {
	switch f.num {
	case 1:
		m.Side = f.str()
	case 2:
		m.Quantity = f.sint()
	}
	return nil
}

type BestBidOfferRequest struct{}

func (m *BestBidOfferRequest) appendWire(b []byte) []byte { return b }
func (m *BestBidOfferRequest) readField(field) error      { return nil }

// DepthRequest asks for up to Levels price levels per side; zero means all.
type DepthRequest struct {
	Levels int
}

func (m *DepthRequest) appendWire(b []byte) []byte {
	return appendSint(b, 1, int64(m.Levels))
}

func (m *DepthRequest) readField(f field) error {
	if f.num == 1 {
		m.Levels = int(f.sint())
	}
	return nil
}

// -------------------- Responses --------------------

type AddLimitOrderResponse struct {
	OrderID uint64
}

func (m *AddLimitOrderResponse) appendWire(b []byte) []byte {
	return appendUint(b, 1, m.OrderID)
}

func (m *AddLimitOrderResponse) readField(f field) error {
	if f.num == 1 {
		m.OrderID = f.uint()
	}
	return nil
}

type OrderEntry struct {
	ID       uint64
	UserID   string
	Side     string
	Price    int64
	Quantity int64
	Original int64
	Status   string
}

func (m *OrderEntry) appendWire(b []byte) []byte {
	b = appendUint(b, 1, m.ID)
	b = appendString(b, 2, m.UserID)
	b = appendString(b, 3, m.Side)
	b = appendSint(b, 4, m.Price)
	b = appendSint(b, 5, m.Quantity)
	b = appendSint(b, 6, m.Original)
	return appendString(b, 7, m.Status)
}

func (m *OrderEntry) readField(f field) error {
	switch f.num {
	case 1:
		m.ID = f.uint()
	case 2:
		m.UserID = f.str()
	case 3:
		m.Side = f.str()
	case 4:
		m.Price = f.sint()
	case 5:
		m.Quantity = f.sint()
	case 6:
		m.Original = f.sint()
	case 7:
		m.Status = f.str()
	}
	return nil
}

type CancelLimitOrderResponse struct {
	Order OrderEntry
}

func (m *CancelLimitOrderResponse) appendWire(b []byte) []byte {
	return appendMessage(b, 1, &m.Order)
}

func (m *CancelLimitOrderResponse) readField(f field) error {
	if f.num == 1 {
		return decode(f.bytes, &m.Order)
	}
	return nil
}

type FillEntry struct {
	OrderID   uint64
	UserID    string
	Price     int64
	Quantity  int64
	Remaining int64
}

func (m *FillEntry) appendWire(b []byte) []byte {
	b = appendUint(b, 1, m.OrderID)
	b = appendString(b, 2, m.UserID)
	b = appendSint(b, 3, m.Price)
	b = appendSint(b, 4, m.Quantity)
	return appendSint(b, 5, m.Remaining)
}

func (m *FillEntry) readField(f field) error {
	switch f.num {
	case 1:
		m.OrderID = f.uint()
	case 2:
		m.UserID = f.str()
	case 3:
		m.Price = f.sint()
	case 4:
		m.Quantity = f.sint()
	case 5:
		m.Remaining = f.sint()
	}
	return nil
}

// PlaceMarketOrderResponse renders Notional and AveragePrice as decimal
// strings so no precision is lost on the wire.
type PlaceMarketOrderResponse struct {
	Side         string
	Requested    int64
	Filled       int64
	Unfilled     int64
	Notional     string
	AveragePrice string
	NoLiquidity  bool
	Fills        []FillEntry
}

func (m *PlaceMarketOrderResponse) appendWire(b []byte) []byte {
	b = appendString(b, 1, m.Side)
	b = appendSint(b, 2, m.Requested)
	b = appendSint(b, 3, m.Filled)
	b = appendSint(b, 4, m.Unfilled)
	b = appendString(b, 5, m.Notional)
	b = appendString(b, 6, m.AveragePrice)
	b = appendBool(b, 7, m.NoLiquidity)
	for i := range m.Fills {
		b = appendMessage(b, 8, &m.Fills[i])
	}
	return b
}

func (m *PlaceMarketOrderResponse) readField(f field) error {
	switch f.num {
	case 1:
		m.Side = f.str()
	case 2:
		m.Requested = f.sint()
	case 3:
		m.Filled = f.sint()
	case 4:
		m.Unfilled = f.sint()
	case 5:
		m.Notional = f.str()
	case 6:
		m.AveragePrice = f.str()
	case 7:
		m.NoLiquidity = f.uint() != 0
	case 8:
		var fill FillEntry
		if err := decode(f.bytes, &fill); err != nil {
			return err
		}
		m.Fills = append(m.Fills, fill)
	}
	return nil
}

// BestBidOfferResponse leaves a side nil when it is empty.
type BestBidOfferResponse struct {
	Bid *int64
	Ask *int64
}

func (m *BestBidOfferResponse) appendWire(b []byte) []byte {
	if m.Bid != nil {
		b = appendSintPresent(b, 1, *m.Bid)
	}
	if m.Ask != nil {
		b = appendSintPresent(b, 2, *m.Ask)
	}
	return b
}

func (m *BestBidOfferResponse) readField(f field) error {
	v := f.sint()
	switch f.num {
	case 1:
		m.Bid = &v
	case 2:
		m.Ask = &v
	}
	return nil
}

type LevelEntry struct {
	Price    int64
	Quantity int64
	Orders   int
}

func (m *LevelEntry) appendWire(b []byte) []byte {
	b = appendSint(b, 1, m.Price)
	b = appendSint(b, 2, m.Quantity)
	return appendSint(b, 3, int64(m.Orders))
}

func (m *LevelEntry) readField(f field) error {
	switch f.num {
	case 1:
		m.Price = f.sint()
	case 2:
		m.Quantity = f.sint()
	case 3:
		m.Orders = int(f.sint())
	}
	return nil
}

type DepthResponse struct {
	Bids []LevelEntry
	Asks []LevelEntry
}

func (m *DepthResponse) appendWire(b []byte) []byte {
	for i := range m.Bids {
		b = appendMessage(b, 1, &m.Bids[i])
	}
	for i := range m.Asks {
		b = appendMessage(b, 2, &m.Asks[i])
	}
	return b
}

func (m *DepthResponse) readField(f field) error {
	if f.num != 1 && f.num != 2 {
		return nil
	}
	var l LevelEntry
	if err := decode(f.bytes, &l); err != nil {
		return err
	}
	if f.num == 1 {
		m.Bids = append(m.Bids, l)
	} else {
		m.Asks = append(m.Asks, l)
	}
	return nil
}

// -------------------- Converters --------------------

func fromOrder(o *orderbook.Order) OrderEntry {
	return OrderEntry{
		ID:       o.ID,
		UserID:   o.UserID,
		Side:     o.Side.String(),
		Price:    o.Price,
		Quantity: o.Qty,
		Original: o.Original,
		Status:   o.Status.String(),
	}
}

func fromMarketResult(r orderbook.MarketResult) *PlaceMarketOrderResponse {
	resp := &PlaceMarketOrderResponse{
		Side:         r.Side.String(),
		Requested:    r.Requested,
		Filled:       r.Filled,
		Unfilled:     r.Unfilled(),
		Notional:     r.Notional.String(),
		AveragePrice: r.AveragePrice.String(),
		NoLiquidity:  r.NoLiquidity(),
	}
	for _, f := range r.Fills {
		resp.Fills = append(resp.Fills, FillEntry(f))
	}
	return resp
}

func fromBBO(q orderbook.BBO) *BestBidOfferResponse {
	resp := &BestBidOfferResponse{}
	if q.HasBid {
		bid := q.Bid
		resp.Bid = &bid
	}
	if q.HasAsk {
		ask := q.Ask
		resp.Ask = &ask
	}
	return resp
}

func fromLevels(in []orderbook.LevelView) []LevelEntry {
	out := make([]LevelEntry, len(in))
	for i, l := range in {
		out[i] = LevelEntry(l)
	}
	return out
}
