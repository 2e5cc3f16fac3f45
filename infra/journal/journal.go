package journal

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

const DefaultSegmentSize = 4 << 20

type Config struct {
	Dir         string
	SegmentSize int64
}

// Journal appends records to the active segment, rotating to a new one
// once SegmentSize is reached. A reopened journal always starts a fresh
// segment so a torn tail from a crash is never appended to.
type Journal struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	current  *segment
	segIndex int
	lastSeq  uint64
}

func Open(cfg Config) (*Journal, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %s", cfg.Dir)
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	next := 0
	var lastSeq uint64
	for _, path := range files {
		idx, err := segmentIndex(path)
		if err != nil {
			continue
		}
		if idx >= next {
			next = idx + 1
		}
		max, err := maxSeqInSegment(path)
		if err != nil {
			return nil, err
		}
		if max > lastSeq {
			lastSeq = max
		}
	}

	seg, err := openSegment(cfg.Dir, next)
	if err != nil {
		return nil, err
	}

	return &Journal{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: next,
		lastSeq:  lastSeq,
	}, nil
}

// LastSeq is the highest sequence found on open or appended since.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

func (j *Journal) Append(r *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.Seq <= j.lastSeq {
		return errors.Newf("journal: seq %d not after %d", r.Seq, j.lastSeq)
	}

	if err := j.current.append(encode(r)); err != nil {
		return errors.Wrap(err, "journal append")
	}
	j.lastSeq = r.Seq

	if j.current.offset >= j.segSize {
		return j.rotate()
	}
	return nil
}

func encode(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+int(payloadLen)+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	end := headerSize + int(payloadLen)
	binary.BigEndian.PutUint32(buf[end:], crc32.ChecksumIEEE(buf[:end]))
	return buf
}

func (j *Journal) rotate() error {
	if err := j.current.sync(); err != nil {
		return errors.Wrap(err, "journal sync")
	}
	_ = j.current.close()

	seg, err := openSegment(j.dir, j.segIndex+1)
	if err != nil {
		return err
	}
	j.segIndex++
	j.current = seg
	return nil
}

func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current.sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.current.sync(); err != nil {
		_ = j.current.close()
		return err
	}
	return j.current.close()
}
