// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"sort"
	"time"
)

// ReorderConfig configures a ReorderBuffer, per spec.md §3/§6.
type ReorderConfig struct {
	MaxBuffer int           // max packets buffered per RTP timestamp before force-flush
	MaxSeqGap uint32        // largest tolerated run of missing sequence numbers
	Timeout   time.Duration // age at which an incomplete context is dropped
}

type bufferedPacket[T any] struct {
	value  T
	marker bool
}

// reorderContext is the per-RTP-timestamp reassembly state of spec.md §3
// ("Reorder context (per RTP timestamp)").
type reorderContext[T any] struct {
	timestamp   uint32
	packets     map[uint16]bufferedPacket[T]
	hasSpan     bool
	minSeq      uint16
	maxSeq      uint16
	markerSeen  bool
	firstSeenAt time.Time
}

// AssembledRun is the result of a completed, force-flushed, or timed-out
// reorder context: the buffered values in forward sequence order.
type AssembledRun[T any] struct {
	Timestamp     uint32
	Values        []T
	Discontinuity bool // true if any packet was missing from the run
}

// ReorderBuffer reassembles packets carrying a given payload type T into
// per-timestamp runs, tolerating loss and reordering up to MaxSeqGap and
// MaxBuffer, per spec.md §4.11.
//
// A new context's min_seq is seeded from the previous run's last sequence
// number + 1 (recorded by the buffer when it finalizes that run), not merely from whichever
// packet happens to arrive first. Without that, a marker packet that
// arrives before any of its access unit's earlier packets would look like
// a complete, single-packet run the instant it lands.
type ReorderBuffer[T any] struct {
	cfg             ReorderConfig
	contexts        map[uint32]*reorderContext[T]
	nextExpected    uint16
	hasNextExpected bool
}

// NewReorderBuffer returns an empty buffer using cfg.
func NewReorderBuffer[T any](cfg ReorderConfig) *ReorderBuffer[T] {
	return &ReorderBuffer[T]{cfg: cfg, contexts: make(map[uint32]*reorderContext[T])}
}

// Insert adds one packet's decoded value under the given RTP timestamp and
// sequence number. now drives the context's age for later Tick cleanup. It
// returns the finalized run and true if this insert completed, force-flushed
// (buffer full), the context — the context is then discarded — or (nil,
// false) if the context is still waiting for more packets.
func (b *ReorderBuffer[T]) Insert(timestamp uint32, seq uint16, value T, marker bool, now time.Time) (*AssembledRun[T], bool) {
	ctx, ok := b.contexts[timestamp]
	if !ok {
		ctx = &reorderContext[T]{
			timestamp:   timestamp,
			packets:     make(map[uint16]bufferedPacket[T]),
			firstSeenAt: now,
		}
		if b.hasNextExpected {
			ctx.minSeq, ctx.maxSeq, ctx.hasSpan = b.nextExpected, b.nextExpected, true
		}
		b.contexts[timestamp] = ctx
	}

	ctx.packets[seq] = bufferedPacket[T]{value: value, marker: marker}
	if marker {
		ctx.markerSeen = true
	}

	if !ctx.hasSpan {
		ctx.minSeq, ctx.maxSeq, ctx.hasSpan = seq, seq, true
	} else {
		if distance(seq, ctx.minSeq) < 0 {
			ctx.minSeq = seq
		}
		if distance(seq, ctx.maxSeq) > 0 {
			ctx.maxSeq = seq
		}
	}

	if ctx.markerSeen {
		if values, lastSeq, hadGap, complete := b.tryAssemble(ctx); complete {
			delete(b.contexts, timestamp)
			b.nextExpected, b.hasNextExpected = lastSeq+1, true
			return &AssembledRun[T]{Timestamp: timestamp, Values: values, Discontinuity: hadGap}, true
		}
		return nil, false
	}

	if len(ctx.packets) >= b.cfg.MaxBuffer {
		values := b.forceAssemble(ctx)
		delete(b.contexts, timestamp)
		b.nextExpected, b.hasNextExpected = ctx.maxSeq+1, true
		return &AssembledRun[T]{Timestamp: timestamp, Values: values, Discontinuity: true}, true
	}

	return nil, false
}

// tryAssemble walks forward from minSeq looking for a contiguous (within
// MaxSeqGap) run ending at the packet carrying the marker. It returns
// complete=false, leaving the context untouched, if a gap exceeding
// MaxSeqGap is hit or the marker is never reached.
func (b *ReorderBuffer[T]) tryAssemble(ctx *reorderContext[T]) (values []T, lastSeq uint16, hadGap, complete bool) {
	cur := ctx.minSeq
	missingRun := uint32(0)

	for {
		pkt, present := ctx.packets[cur]
		if present {
			values = append(values, pkt.value)
			missingRun = 0
			if pkt.marker {
				return values, cur, hadGap, true
			}
		} else {
			missingRun++
			hadGap = true
			if missingRun > b.cfg.MaxSeqGap {
				return nil, 0, true, false
			}
		}

		if distance(cur, ctx.maxSeq) >= int32(b.cfg.MaxSeqGap)+1 {
			return nil, 0, hadGap, false
		}
		cur++
	}
}

// forceAssemble walks minSeq..maxSeq inclusive, skipping any missing
// sequence numbers, with no gap limit.
func (b *ReorderBuffer[T]) forceAssemble(ctx *reorderContext[T]) []T {
	var values []T
	cur := ctx.minSeq
	for {
		if pkt, ok := ctx.packets[cur]; ok {
			values = append(values, pkt.value)
		}
		if cur == ctx.maxSeq {
			break
		}
		cur++
	}
	return values
}

// Tick drops contexts older than cfg.Timeout, force-assembling and
// returning whatever they held, per spec.md §4.11's cleanup pass. The
// caller is expected to emit one discontinuity event per returned run.
func (b *ReorderBuffer[T]) Tick(now time.Time) []AssembledRun[T] {
	var flushed []AssembledRun[T]

	for ts, ctx := range b.contexts {
		if now.Sub(ctx.firstSeenAt) < b.cfg.Timeout {
			continue
		}
		values := b.forceAssemble(ctx)
		flushed = append(flushed, AssembledRun[T]{Timestamp: ts, Values: values, Discontinuity: true})
		b.nextExpected, b.hasNextExpected = ctx.maxSeq+1, true
		delete(b.contexts, ts)
	}

	sort.Slice(flushed, func(i, j int) bool { return flushed[i].Timestamp < flushed[j].Timestamp })
	return flushed
}

// Len reports the number of in-flight (incomplete) reorder contexts.
func (b *ReorderBuffer[T]) Len() int { return len(b.contexts) }
