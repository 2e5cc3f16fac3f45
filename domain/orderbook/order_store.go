package orderbook

import "fmt"

// orderStore holds the resting orders of one side, keyed by id.
// It only keeps records; levels and heaps are maintained by OrderBook.
type orderStore struct {
	orders map[uint64]*Order
}

func newOrderStore() *orderStore {
	return &orderStore{orders: make(map[uint64]*Order)}
}

func (s *orderStore) insert(o *Order) uint64 {
	s.orders[o.ID] = o
	return o.ID
}

func (s *orderStore) get(id uint64) (*Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

func (s *orderStore) remove(id uint64) (*Order, bool) {
	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	delete(s.orders, id)
	return o, true
}

// decrement reduces the remaining quantity of a resting order. The result
// must stay positive: an order that would reach zero has to be removed.
func (s *orderStore) decrement(id uint64, amount int64) {
	o, ok := s.orders[id]
	if !ok {
		panic(fmt.Sprintf("orderbook: decrement of unknown order %d", id))
	}
	if amount <= 0 || o.Qty-amount <= 0 {
		panic(fmt.Sprintf("orderbook: decrement %d would leave order %d with %d", amount, id, o.Qty-amount))
	}
	o.Qty -= amount
}

func (s *orderStore) len() int { return len(s.orders) }
