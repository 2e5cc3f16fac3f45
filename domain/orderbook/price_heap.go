package orderbook

import (
	"container/heap"
	"fmt"
)

// prices is the container/heap backing store. With max set the highest
// price sorts first (bids), otherwise the lowest (asks).
type prices struct {
	keys []int64
	max  bool
}

func (h *prices) Len() int { return len(h.keys) }

func (h *prices) Less(i, j int) bool {
	if h.max {
		return h.keys[i] > h.keys[j]
	}
	return h.keys[i] < h.keys[j]
}

func (h *prices) Swap(i, j int) { h.keys[i], h.keys[j] = h.keys[j], h.keys[i] }

func (h *prices) Push(x any) { h.keys = append(h.keys, x.(int64)) }

func (h *prices) Pop() any {
	n := len(h.keys)
	k := h.keys[n-1]
	h.keys = h.keys[:n-1]
	return k
}

// priceHeap finds the best price of one side. It may hold stale or
// duplicate prices; isLive decides which entries still count.
type priceHeap struct {
	h      prices
	isLive func(price int64) bool
}

func newPriceHeap(max bool, isLive func(int64) bool) *priceHeap {
	return &priceHeap{h: prices{max: max}, isLive: isLive}
}

func (p *priceHeap) push(price int64) {
	heap.Push(&p.h, price)
}

// clean discards tops whose level no longer exists.
func (p *priceHeap) clean() {
	for p.h.Len() > 0 && !p.isLive(p.h.keys[0]) {
		heap.Pop(&p.h)
	}
}

func (p *priceHeap) peekBest() (int64, bool) {
	p.clean()
	if p.h.Len() == 0 {
		return 0, false
	}
	return p.h.keys[0], true
}

// popBest drops the top price together with its duplicates once its level
// has been removed. A live level is never popped: AddLimitOrder pushes a
// price only when it creates the level, so the entry must stay until the
// level is gone.
func (p *priceHeap) popBest() (int64, bool) {
	if p.h.Len() == 0 {
		return 0, false
	}
	top := p.h.keys[0]
	if p.isLive(top) {
		panic(fmt.Sprintf("orderbook: popBest on live price %d", top))
	}
	for p.h.Len() > 0 && p.h.keys[0] == top {
		heap.Pop(&p.h)
	}
	return top, true
}

// size counts entries, stale ones included.
func (p *priceHeap) size() int { return p.h.Len() }
