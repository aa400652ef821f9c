// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

// LargeGapThreshold is the forward distance past which an accepted sequence
// number is additionally flagged as a large gap, per spec.md §4.7.
const LargeGapThreshold = 1000

// SequenceTracker validates a stream of 16-bit RTP sequence numbers,
// tolerating wraparound, and classifies each as accepted, a duplicate, or
// out of order. It never blocks and never retains old packets (C7).
type SequenceTracker struct {
	last        uint16
	initialized bool
}

// NewSequenceTracker returns an uninitialized tracker.
func NewSequenceTracker() *SequenceTracker { return &SequenceTracker{} }

// distance returns the signed wrap-aware distance d(b,a) = b-a in the
// range (-32768, 32768], computed over the 16-bit sequence space. The
// halfway point (raw difference 0x8000) is reported as +32768 rather than
// the int16 two's-complement -32768, so the range is the half-open
// (-32768, 32768] spec.md §4.7/§8 calls for.
func distance(b, a uint16) int32 {
	raw := b - a
	if raw == 0x8000 {
		return 32768
	}
	return int32(int16(raw))
}

// Accept validates s against the tracker state. On success it returns
// (gapSize, largeGap, nil) and advances last to s. gapSize is the
// number of sequence numbers skipped (0 for a strictly next-in-order
// packet). On rejection it returns (0, false, err) with err a *Error of
// Kind KindDuplicate or KindOutOfOrder; the tracker is left unchanged.
func (t *SequenceTracker) Accept(s uint16) (gapSize uint32, largeGap bool, err error) {
	if !t.initialized {
		t.last = s
		t.initialized = true
		return 0, false, nil
	}

	if s == t.last {
		return 0, false, &Error{Kind: KindDuplicate, SeqNum: s}
	}

	d := distance(s, t.last)
	if d > 0 {
		t.last = s
		gap := uint32(d - 1)
		return gap, gap > LargeGapThreshold, nil
	}

	return 0, false, &Error{Kind: KindOutOfOrder, SeqNum: s}
}

// ExpectedNext returns last+1 (mod 65536). Valid only once Initialized.
func (t *SequenceTracker) ExpectedNext() uint16 {
	return t.last + 1
}

// Initialized reports whether any sequence number has been accepted yet.
func (t *SequenceTracker) Initialized() bool { return t.initialized }

// Last returns the most recently accepted sequence number.
func (t *SequenceTracker) Last() uint16 { return t.last }

// GapSize returns the wrap-aware number of sequence numbers between a
// previously accepted sequence last and a newly observed s, without
// mutating tracker state. It is exposed so a reorder buffer can reason
// about gaps between arbitrary pairs of sequence numbers, not just against
// the tracker's own last-accepted value.
func GapSize(last, s uint16) uint32 {
	d := distance(s, last)
	if d <= 0 {
		return 0
	}
	return uint32(d - 1)
}
