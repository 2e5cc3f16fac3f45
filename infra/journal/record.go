// Package journal is an append-only audit trail of the commands admitted
// into an engine, in the order they were applied.
//
// Records are framed as [type:1][seq:8][time:8][len:4][payload][crc:4]
// (big-endian) and written to size-rotated segment files. The journal is
// read back for auditing only; the book is never rebuilt from it.
package journal

import "time"

type RecordType uint8

const (
	CommandAdd RecordType = iota + 1
	CommandCancel
	CommandMarket
)

func (t RecordType) String() string {
	switch t {
	case CommandAdd:
		return "add"
	case CommandCancel:
		return "cancel"
	case CommandMarket:
		return "market"
	default:
		return "unknown"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

const headerSize = 1 + 8 + 8 + 4
