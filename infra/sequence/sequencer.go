package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for journal
// records and events. The first value issued is start+1.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after start; pass the highest sequence already persisted so
// numbering continues across restarts.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
