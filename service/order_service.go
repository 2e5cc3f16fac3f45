package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"lob/domain/events"
	"lob/domain/orderbook"
	"lob/infra/journal"
	"lob/infra/metrics"
	"lob/infra/sequence"
)

// ErrStopped is returned for commands submitted after Run has returned.
var ErrStopped = errors.New("service: engine stopped")

const DefaultQueueSize = 1024

// Journal records admitted commands.
type Journal interface {
	Append(*journal.Record) error
}

// Sink receives execution events in the order they happen.
type Sink interface {
	Emit(events.Event) error
}

type Config struct {
	Instrument string
	QueueSize  int

	// Optional. A nil Journal or Sink disables that step.
	Journal Journal
	Sink    Sink

	// Sequences already persisted, so numbering continues after them.
	JournalSeq uint64
	EventSeq   uint64

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type command struct {
	name string
	run  func()
	done chan struct{}
}

type OrderService struct {
	instrument string
	book       *orderbook.OrderBook
	cmds       chan command
	stopping   chan struct{}
	stopped    chan struct{}

	journal    Journal
	sink       Sink
	journalSeq *sequence.Sequencer
	eventSeq   *sequence.Sequencer

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewOrderService wires a book to its queue. Call Run to start the worker.
func NewOrderService(book *orderbook.OrderBook, cfg Config) *OrderService {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	return &OrderService{
		instrument: cfg.Instrument,
		book:       book,
		cmds:       make(chan command, cfg.QueueSize),
		stopping:   make(chan struct{}),
		stopped:    make(chan struct{}),
		journal:    cfg.Journal,
		sink:       cfg.Sink,
		journalSeq: sequence.New(cfg.JournalSeq),
		eventSeq:   sequence.New(cfg.EventSeq),
		metrics:    cfg.Metrics,
		log:        cfg.Logger.With().Str("component", "engine").Logger(),
	}
}

//
// ──────────────────────────────────────────────────────────
// Worker
// ──────────────────────────────────────────────────────────
//

// Run applies commands until ctx is done, then drains what was already
// admitted and returns. It must be called exactly once.
func (s *OrderService) Run(ctx context.Context) error {
	s.log.Info().Int("queue_size", cap(s.cmds)).Msg("engine started")
	defer close(s.stopped)

	for {
		select {
		case c := <-s.cmds:
			s.apply(c)
		case <-ctx.Done():
			close(s.stopping)
			s.drain()
			s.syncJournal()
			s.log.Info().Msg("engine stopped")
			return nil
		}
	}
}

func (s *OrderService) drain() {
	for {
		select {
		case c := <-s.cmds:
			s.apply(c)
		default:
			return
		}
	}
}

func (s *OrderService) apply(c command) {
	start := time.Now()
	c.run()
	close(c.done)
	s.metrics.CommandSeconds.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	s.metrics.QueueDepth.Set(float64(len(s.cmds)))
}

// do queues fn and waits for it. ctx bounds admission only: once admitted,
// fn runs to completion and the caller always gets its result, so an
// accepted order's id is never lost to an expired deadline.
func (s *OrderService) do(ctx context.Context, name string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := command{name: name, run: fn, done: make(chan struct{})}

	select {
	case <-s.stopping:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case s.cmds <- c:
	}
	s.metrics.QueueDepth.Set(float64(len(s.cmds)))

	select {
	case <-c.done:
		return nil
	case <-s.stopped:
		// Admitted during shutdown: it either ran in the final drain or never will.
		select {
		case <-c.done:
			return nil
		default:
			return ErrStopped
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// AddLimitOrder rests a new limit order and returns its id.
func (s *OrderService) AddLimitOrder(
	ctx context.Context,
	side orderbook.Side,
	userID string,
	qty int64,
	price int64,
) (uint64, error) {
	var (
		id  uint64
		err error
	)
	if qErr := s.do(ctx, "add", func() {
		// The user id goes last and unescaped: readers split on the first
		// three '|' only, so ids may contain '|'.
		s.record(journal.CommandAdd, fmt.Sprintf("%d|%d|%d|%s", side, qty, price, userID))

		id, err = s.book.AddLimitOrder(side, userID, qty, price)
		if err != nil {
			s.metrics.OrdersRejected.Inc()
			s.log.Debug().Err(err).Str("side", side.String()).Int64("qty", qty).Int64("price", price).Msg("add rejected")
			return
		}

		o, _ := s.book.Lookup(id)
		s.emit(events.Accepted(o))
		s.metrics.OrdersAdded.Inc()
		s.updateResting()
		s.log.Debug().Uint64("order_id", id).Str("side", side.String()).Int64("qty", qty).Int64("price", price).Msg("order resting")
	}); qErr != nil {
		return 0, qErr
	}
	return id, err
}

// CancelLimitOrder removes a resting order and returns its final record.
func (s *OrderService) CancelLimitOrder(ctx context.Context, id uint64) (*orderbook.Order, error) {
	var (
		o   *orderbook.Order
		err error
	)
	if qErr := s.do(ctx, "cancel", func() {
		s.record(journal.CommandCancel, fmt.Sprintf("%d", id))

		o, err = s.book.CancelLimitOrder(id)
		switch {
		case errors.Is(err, orderbook.ErrAlreadyFulfilled):
			s.metrics.Cancels.WithLabelValues("already_fulfilled").Inc()
		case errors.Is(err, orderbook.ErrNotFound):
			s.metrics.Cancels.WithLabelValues("not_found").Inc()
		case err == nil:
			s.metrics.Cancels.WithLabelValues("ok").Inc()
			s.emit(events.Cancelled(o))
			s.updateResting()
		}
		s.log.Debug().Err(err).Uint64("order_id", id).Msg("cancel")
	}); qErr != nil {
		return nil, qErr
	}
	return o, err
}

// PlaceMarketOrder sweeps the opposite side. A result with NoLiquidity()
// is an outcome, not an error.
func (s *OrderService) PlaceMarketOrder(ctx context.Context, side orderbook.Side, qty int64) (orderbook.MarketResult, error) {
	var (
		res orderbook.MarketResult
		err error
	)
	if qErr := s.do(ctx, "market", func() {
		s.record(journal.CommandMarket, fmt.Sprintf("%d|%d", side, qty))

		res, err = s.book.PlaceMarketOrder(side, qty)
		if err != nil {
			s.metrics.OrdersRejected.Inc()
			return
		}

		for _, ev := range events.FromMarketResult(res) {
			s.emit(ev)
		}

		outcome := "filled"
		switch {
		case res.NoLiquidity():
			outcome = "no_liquidity"
		case res.Unfilled() > 0:
			outcome = "partial"
		}
		s.metrics.MarketOrders.WithLabelValues(outcome).Inc()
		s.metrics.Fills.Add(float64(len(res.Fills)))
		s.metrics.FilledQuantity.Add(float64(res.Filled))
		s.updateResting()

		s.log.Debug().
			Str("side", side.String()).
			Int64("requested", qty).
			Int64("filled", res.Filled).
			Str("avg_price", res.AveragePrice.String()).
			Str("outcome", outcome).
			Msg("market order")
	}); qErr != nil {
		return orderbook.MarketResult{}, qErr
	}
	return res, err
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// BestBidOffer is sequenced like any other command so it observes every
// mutation admitted before it.
func (s *OrderService) BestBidOffer(ctx context.Context) (orderbook.BBO, error) {
	var q orderbook.BBO
	err := s.do(ctx, "bbo", func() {
		q = s.book.BestBidOffer()
	})
	return q, err
}

func (s *OrderService) Depth(ctx context.Context, levels int) (orderbook.DepthSnapshot, error) {
	var d orderbook.DepthSnapshot
	err := s.do(ctx, "depth", func() {
		d = s.book.Depth(levels)
	})
	return d, err
}

func (s *OrderService) Instrument() string { return s.instrument }

//
// ──────────────────────────────────────────────────────────
// Worker helpers
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) record(t journal.RecordType, payload string) {
	if s.journal == nil {
		return
	}
	rec := journal.NewRecord(t, s.journalSeq.Next(), []byte(payload))
	if err := s.journal.Append(rec); err != nil {
		s.log.Error().Err(err).Str("command", t.String()).Uint64("seq", rec.Seq).Msg("journal append failed")
	}
}

// syncJournal flushes the journal to disk when it supports it.
func (s *OrderService) syncJournal() {
	j, ok := s.journal.(interface{ Sync() error })
	if !ok {
		return
	}
	if err := j.Sync(); err != nil {
		s.log.Error().Err(err).Msg("journal sync failed")
	}
}

func (s *OrderService) emit(ev events.Event) {
	if s.sink == nil {
		return
	}
	ev.Seq = s.eventSeq.Next()
	ev.Time = time.Now().UnixNano()
	ev.Instrument = s.instrument
	if err := s.sink.Emit(ev); err != nil {
		s.log.Error().Err(err).Str("event", ev.Type.String()).Uint64("seq", ev.Seq).Msg("emit failed")
	}
}

func (s *OrderService) updateResting() {
	s.metrics.RestingOrders.Set(float64(s.book.Len(orderbook.Bid) + s.book.Len(orderbook.Ask)))
}
