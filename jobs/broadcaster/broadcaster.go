// Package broadcaster drains the event outbox to a publisher.
package broadcaster

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"lob/infra/outbox"
)

const DefaultInterval = 250 * time.Millisecond

// Source is the slice of the outbox the broadcaster needs.
type Source interface {
	ScanPending(fn func(outbox.Record) error) error
	MarkSent(seq uint64) error
	MarkFailed(seq uint64) error
	Delete(seq uint64) error
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Broadcaster struct {
	src      Source
	pub      Publisher
	key      []byte
	interval time.Duration
	log      zerolog.Logger
}

// New builds a broadcaster publishing every record under key, normally
// the instrument symbol.
func New(src Source, pub Publisher, key string, interval time.Duration, log zerolog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Broadcaster{
		src:      src,
		pub:      pub,
		key:      []byte(key),
		interval: interval,
		log:      log.With().Str("component", "broadcaster").Logger(),
	}
}

// Run polls the outbox until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info().Dur("interval", b.interval).Msg("started")
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("stopped")
			return nil
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn().Err(err).Msg("flush incomplete")
			}
		}
	}
}

// Flush makes one pass over pending records and returns how many were
// delivered. It stops at the first publish failure so events leave in
// sequence order.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	sent := 0
	err := b.src.ScanPending(func(rec outbox.Record) error {
		if err := b.src.MarkSent(rec.Seq); err != nil {
			return err
		}
		if err := b.pub.Publish(ctx, b.key, rec.Payload); err != nil {
			if mErr := b.src.MarkFailed(rec.Seq); mErr != nil {
				b.log.Error().Err(mErr).Uint64("seq", rec.Seq).Msg("mark failed")
			}
			return errors.Wrapf(err, "publish seq %d (attempt %d)", rec.Seq, rec.Retries+1)
		}
		if err := b.src.Delete(rec.Seq); err != nil {
			return err
		}
		sent++
		return nil
	})
	return sent, err
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
