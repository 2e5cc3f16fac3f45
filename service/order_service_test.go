package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob/domain/events"
	"lob/domain/orderbook"
	"lob/infra/journal"
	"lob/infra/metrics"
)

type memSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memSink) Emit(ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memSink) all() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

type env struct {
	svc     *OrderService
	sink    *memSink
	metrics *metrics.Metrics
	dir     string
	cancel  context.CancelFunc
	done    chan error
	once    sync.Once
}

func start(t *testing.T, cfg Config) *env {
	t.Helper()
	e := &env{sink: &memSink{}, metrics: metrics.New(nil), dir: t.TempDir(), done: make(chan error, 1)}

	if cfg.Journal == nil {
		j, err := journal.Open(journal.Config{Dir: e.dir})
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		cfg.Journal = j
	}
	cfg.Instrument = "BTC-USD"
	cfg.Sink = e.sink
	cfg.Metrics = e.metrics
	cfg.Logger = zerolog.Nop()
	e.svc = NewOrderService(orderbook.NewOrderBook(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() { e.done <- e.svc.Run(ctx) }()
	t.Cleanup(e.stop)
	return e
}

func (e *env) stop() {
	e.once.Do(func() {
		e.cancel()
		<-e.done
	})
}

func TestServiceLifecycle(t *testing.T) {
	e := start(t, Config{})
	ctx := context.Background()

	alice, err := e.svc.AddLimitOrder(ctx, orderbook.Ask, "alice", 10, 100)
	require.NoError(t, err)
	bob, err := e.svc.AddLimitOrder(ctx, orderbook.Ask, "bob", 5, 90)
	require.NoError(t, err)
	_, err = e.svc.AddLimitOrder(ctx, orderbook.Bid, "charles", 20, 85)
	require.NoError(t, err)

	q, err := e.svc.BestBidOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, orderbook.BBO{Bid: 85, Ask: 90, HasBid: true, HasAsk: true}, q)

	res, err := e.svc.PlaceMarketOrder(ctx, orderbook.Bid, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Filled)
	assert.Equal(t, "95.83", res.AveragePrice.StringFixed(2))

	_, err = e.svc.CancelLimitOrder(ctx, bob)
	assert.ErrorIs(t, err, orderbook.ErrAlreadyFulfilled)

	o, err := e.svc.CancelLimitOrder(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.Qty)

	_, err = e.svc.CancelLimitOrder(ctx, alice)
	assert.ErrorIs(t, err, orderbook.ErrNotFound)

	d, err := e.svc.Depth(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, d.Asks)
	assert.Equal(t, []orderbook.LevelView{{Price: 85, Quantity: 20, Orders: 1}}, d.Bids)

	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.OrdersAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Cancels.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Cancels.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Cancels.WithLabelValues("already_fulfilled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.MarketOrders.WithLabelValues("filled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.Fills))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RestingOrders))
}

func TestServiceEmitsEventsInOrder(t *testing.T) {
	e := start(t, Config{EventSeq: 100})
	ctx := context.Background()

	_, err := e.svc.AddLimitOrder(ctx, orderbook.Bid, "u1", 4, 50)
	require.NoError(t, err)
	_, err = e.svc.PlaceMarketOrder(ctx, orderbook.Ask, 6)
	require.NoError(t, err)
	_, err = e.svc.PlaceMarketOrder(ctx, orderbook.Ask, 1)
	require.NoError(t, err)

	evs := e.sink.all()
	var types []events.Type
	for i, ev := range evs {
		types = append(types, ev.Type)
		assert.Equal(t, uint64(101+i), ev.Seq)
		assert.Equal(t, "BTC-USD", ev.Instrument)
		assert.NotZero(t, ev.Time)
	}
	assert.Equal(t, []events.Type{
		events.OrderAccepted,
		events.OrderFilled,
		events.MarketOrderDone,
		events.MarketOrderDone,
	}, types)

	assert.Equal(t, orderbook.Bid, evs[1].Side)
	assert.Equal(t, int64(0), evs[1].Remaining)
	assert.Equal(t, int64(6), evs[2].Requested)
	assert.Equal(t, int64(4), evs[2].Filled)
	assert.Equal(t, int64(0), evs[3].Filled)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.MarketOrders.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.MarketOrders.WithLabelValues("no_liquidity")))
}

func TestServiceRejectsInvalid(t *testing.T) {
	e := start(t, Config{})
	ctx := context.Background()

	_, err := e.svc.AddLimitOrder(ctx, orderbook.Bid, "u", 0, 10)
	assert.ErrorIs(t, err, orderbook.ErrInvalidArgument)
	_, err = e.svc.PlaceMarketOrder(ctx, orderbook.Ask, -3)
	assert.ErrorIs(t, err, orderbook.ErrInvalidArgument)

	assert.Empty(t, e.sink.all())
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.OrdersRejected))
}

func TestServiceJournalsCommands(t *testing.T) {
	e := start(t, Config{JournalSeq: 7})
	ctx := context.Background()

	id, err := e.svc.AddLimitOrder(ctx, orderbook.Ask, "alice", 10, 100)
	require.NoError(t, err)
	_, err = e.svc.CancelLimitOrder(ctx, id)
	require.NoError(t, err)
	_, err = e.svc.PlaceMarketOrder(ctx, orderbook.Bid, 5)
	require.NoError(t, err)
	_, err = e.svc.BestBidOffer(ctx)
	require.NoError(t, err)
	e.stop()

	var recs []*journal.Record
	require.NoError(t, journal.Scan(e.dir, func(r *journal.Record) error {
		recs = append(recs, r)
		return nil
	}))
	require.Len(t, recs, 3, "queries are not journaled")
	assert.Equal(t, journal.CommandAdd, recs[0].Type)
	assert.Equal(t, uint64(8), recs[0].Seq)
	assert.Equal(t, "1|10|100|alice", string(recs[0].Data))
	assert.Equal(t, journal.CommandCancel, recs[1].Type)
	assert.Equal(t, "1", string(recs[1].Data))
	assert.Equal(t, journal.CommandMarket, recs[2].Type)
	assert.Equal(t, "0|5", string(recs[2].Data))
}

func TestServiceConcurrentProducers(t *testing.T) {
	e := start(t, Config{QueueSize: 8})
	ctx := context.Background()

	const producers, per = 8, 50
	var wg sync.WaitGroup
	ids := make(chan uint64, producers*per)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id, err := e.svc.AddLimitOrder(ctx, orderbook.Side(p&1), "u", 1, int64(100+i))
				if assert.NoError(t, err) {
					ids <- id
				}
			}
		}(p)
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, producers*per)

	evs := e.sink.all()
	require.Len(t, evs, producers*per)
	for i := 1; i < len(evs); i++ {
		assert.Less(t, evs[i-1].OrderID, evs[i].OrderID, "events follow application order")
	}
}

func TestServiceJournalKeepsPipesInUserID(t *testing.T) {
	e := start(t, Config{})

	_, err := e.svc.AddLimitOrder(context.Background(), orderbook.Bid, "desk|7", 2, 40)
	require.NoError(t, err)
	e.stop()

	var recs []*journal.Record
	require.NoError(t, journal.Scan(e.dir, func(r *journal.Record) error {
		recs = append(recs, r)
		return nil
	}))
	require.Len(t, recs, 1)
	fields := strings.SplitN(string(recs[0].Data), "|", 4)
	assert.Equal(t, []string{"0", "2", "40", "desk|7"}, fields)
}

type countingJournal struct {
	mu      sync.Mutex
	appends int
	syncs   int
}

func (c *countingJournal) Append(*journal.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appends++
	return nil
}

func (c *countingJournal) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncs++
	return nil
}

func TestServiceSyncsJournalOnStop(t *testing.T) {
	j := &countingJournal{}
	e := start(t, Config{Journal: j})

	_, err := e.svc.AddLimitOrder(context.Background(), orderbook.Ask, "u", 1, 10)
	require.NoError(t, err)
	e.stop()

	j.mu.Lock()
	defer j.mu.Unlock()
	assert.Equal(t, 1, j.appends)
	assert.Equal(t, 1, j.syncs)
}

func TestServiceStopped(t *testing.T) {
	e := start(t, Config{})
	e.stop()

	_, err := e.svc.AddLimitOrder(context.Background(), orderbook.Bid, "u", 1, 1)
	assert.ErrorIs(t, err, ErrStopped)
	_, err = e.svc.BestBidOffer(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestServiceContextBoundsAdmission(t *testing.T) {
	svc := NewOrderService(orderbook.NewOrderBook(), Config{QueueSize: 1, Logger: zerolog.Nop()})

	// Without a running worker the first command is admitted and waits.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	type result struct {
		id  uint64
		err error
	}
	first := make(chan result, 1)
	go func() {
		id, err := svc.AddLimitOrder(ctx, orderbook.Bid, "u", 1, 1)
		first <- result{id, err}
	}()
	require.Eventually(t, func() bool { return len(svc.cmds) == 1 }, time.Second, time.Millisecond)

	// The queue is full, so the next caller gives up at its deadline.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err := svc.AddLimitOrder(ctx2, orderbook.Bid, "u", 1, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// An expired context is rejected before admission.
	_, err = svc.BestBidOffer(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-ctx.Done()
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	// The admitted command reports its real result despite the expired deadline.
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, uint64(1), r.id)

	q, err := svc.BestBidOffer(context.Background())
	require.NoError(t, err)
	assert.True(t, q.HasBid)
	assert.Equal(t, int64(1), q.Bid)
	stop()
	require.NoError(t, <-done)
}

func TestServiceLogsFailures(t *testing.T) {
	var buf strings.Builder
	j, err := journal.Open(journal.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, j.Append(journal.NewRecord(journal.CommandAdd, 50, nil)))
	defer j.Close()

	// Starting below the journal's last sequence makes appends fail.
	svc := NewOrderService(orderbook.NewOrderBook(), Config{
		Journal:    j,
		JournalSeq: 1,
		Logger:     zerolog.New(&syncWriter{w: &buf}),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	_, err = svc.AddLimitOrder(context.Background(), orderbook.Ask, "u", 1, 10)
	require.NoError(t, err, "journal failures do not fail the command")
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, buf.String(), "journal append failed")
}

type syncWriter struct {
	mu sync.Mutex
	w  *strings.Builder
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
