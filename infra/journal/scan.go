package journal

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var ErrCorrupt = errors.New("journal: crc mismatch")

// Scan calls fn for every record in dir, oldest first. A torn final frame
// ends its segment and scanning moves on to the next one, matching what
// Open accepts after a crash. Scan stops at the first corrupt frame,
// non-monotonic sequence, or error returned by fn.
func Scan(dir string, fn func(*Record) error) error {
	files, err := listSegments(dir)
	if err != nil {
		return err
	}

	var lastSeq uint64
	for _, path := range files {
		if err := scanSegment(path, func(rec *Record) error {
			if rec.Seq <= lastSeq {
				return errors.Newf("journal: non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq
			return fn(rec)
		}); err != nil {
			return err
		}
	}
	return nil
}

func scanSegment(path string, fn func(*Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	body := make([]byte, int(l)+4)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := body[:l]
	h := crc32.NewIEEE()
	_, _ = h.Write(header)
	_, _ = h.Write(payload)
	if h.Sum32() != binary.BigEndian.Uint32(body[l:]) {
		return nil, ErrCorrupt
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}

// maxSeqInSegment returns the highest sequence in a segment without
// checking payloads. A torn final frame is ignored.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}
