package auction

// Sequencer issues the strictly increasing numbers stamped on commitments.
// Like the auction that owns it, it is not safe for concurrent use.
type Sequencer struct {
	last uint64
}

// NewSequencer creates a sequencer whose first Next returns 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next issues the next sequence number.
func (s *Sequencer) Next() uint64 {
	s.last++
	return s.last
}

// Current returns the last issued number (0 if none).
func (s *Sequencer) Current() uint64 {
	return s.last
}
