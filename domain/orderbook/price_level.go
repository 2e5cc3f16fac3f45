package orderbook

// PriceLevel is a FIFO queue of resting orders at a single price.
// Orders are linked intrusively so any queued order can be unlinked in O(1).
type PriceLevel struct {
	Price int64

	head  *Order
	tail  *Order
	count int
}

func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.count++
}

func (p *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev = nil, nil
	p.count--
}

func (p *PriceLevel) Head() *Order { return p.head }
func (p *PriceLevel) Len() int     { return p.count }
func (p *PriceLevel) Empty() bool  { return p.head == nil }

// Quantity sums the remaining quantity of every queued order.
func (p *PriceLevel) Quantity() int64 {
	var total int64
	for o := p.head; o != nil; o = o.next {
		total += o.Qty
	}
	return total
}

// levelIndex maps price to its level for one side. A level exists iff at
// least one order rests at that price.
type levelIndex struct {
	levels map[int64]*PriceLevel
}

func newLevelIndex() *levelIndex {
	return &levelIndex{levels: make(map[int64]*PriceLevel)}
}

// push appends o at the back of its price level and reports whether the
// level had to be created.
func (x *levelIndex) push(o *Order) bool {
	lvl, ok := x.levels[o.Price]
	if !ok {
		lvl = &PriceLevel{Price: o.Price}
		x.levels[o.Price] = lvl
	}
	lvl.Enqueue(o)
	return !ok
}

func (x *levelIndex) front(price int64) (uint64, bool) {
	lvl, ok := x.levels[price]
	if !ok || lvl.Empty() {
		return 0, false
	}
	return lvl.head.ID, true
}

func (x *levelIndex) popFront(price int64) (uint64, bool) {
	lvl, ok := x.levels[price]
	if !ok || lvl.Empty() {
		return 0, false
	}
	o := lvl.head
	x.unlink(lvl, o)
	return o.ID, true
}

// remove unlinks o wherever it sits in its level.
func (x *levelIndex) remove(o *Order) bool {
	lvl, ok := x.levels[o.Price]
	if !ok {
		return false
	}
	x.unlink(lvl, o)
	return true
}

func (x *levelIndex) unlink(lvl *PriceLevel, o *Order) {
	lvl.Remove(o)
	if lvl.Empty() {
		delete(x.levels, lvl.Price)
	}
}

func (x *levelIndex) isLive(price int64) bool {
	lvl, ok := x.levels[price]
	return ok && !lvl.Empty()
}

func (x *levelIndex) level(price int64) *PriceLevel {
	return x.levels[price]
}

func (x *levelIndex) len() int { return len(x.levels) }
