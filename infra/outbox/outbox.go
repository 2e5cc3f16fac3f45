// Package outbox stores encoded execution events in pebble until the
// broadcaster has delivered them.
package outbox

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"lob/domain/events"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one outbox entry. Seq is the event sequence and the key.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const (
	keyPrefix  = "event/"
	headerSize = 1 + 4 + 8
)

var ErrCorruptRecord = errors.New("outbox: invalid record")

// value layout: [state:1][retries:4][lastAttempt:8][payload]
func encodeValue(r Record) []byte {
	buf := make([]byte, headerSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerSize:], r.Payload)
	return buf
}

func decodeValue(seq uint64, b []byte) (Record, error) {
	if len(b) < headerSize {
		return Record{}, errors.Wrapf(ErrCorruptRecord, "seq %d: %d bytes", seq, len(b))
	}
	payload := make([]byte, len(b)-headerSize)
	copy(payload, b[headerSize:])
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(string(b), keyPrefix), 10, 64)
}

type Outbox struct {
	db *pebble.DB
}

// Open opens or creates the outbox at dir. opts may be nil.
func Open(dir string, opts *pebble.Options) (*Outbox, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Emit stores ev as a NEW record keyed by its sequence.
func (o *Outbox) Emit(ev events.Event) error {
	return o.Put(ev.Seq, events.Marshal(ev))
}

func (o *Outbox) Put(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeValue(Record{State: StateNew, Payload: payload}), pebble.Sync)
}

func (o *Outbox) Get(seq uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeValue(seq, val)
}

func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateSent
		r.LastAttempt = time.Now().UnixNano()
	})
}

func (o *Outbox) MarkFailed(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateFailed
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
	})
}

// Delete removes a delivered record.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

func (o *Outbox) update(seq uint64, fn func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return errors.Wrapf(err, "outbox seq %d", seq)
	}
	fn(&rec)
	return o.db.Set(keyFor(seq), encodeValue(rec), pebble.Sync)
}

func (o *Outbox) newIter() (*pebble.Iterator, error) {
	return o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("event0"), // '0' sorts right after '/'
	})
}

// ScanPending visits NEW, SENT and FAILED records in sequence order. A
// SENT record is one whose delivery outcome was never recorded, so it is
// retried. fn returning an error stops the scan with that error.
func (o *Outbox) ScanPending(fn func(Record) error) error {
	iter, err := o.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return errors.Wrapf(ErrCorruptRecord, "key %q", iter.Key())
		}
		rec, err := decodeValue(seq, iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq returns the highest stored sequence, or 0 when empty.
func (o *Outbox) LastSeq() (uint64, error) {
	iter, err := o.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}
