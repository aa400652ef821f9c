// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"time"

	"github.com/rs/zerolog"
)

// Event names the stable telemetry schema of spec.md §7. Downstream
// collaborators match on these strings, so they never change shape once
// shipped.
type Event string

const (
	EventAggregationComplete Event = "aggregation.complete"
	EventDiscontinuity       Event = "depayloader.discontinuity"
	EventFragmentTimeout     Event = "depayloader.fragment_timeout"
	EventLayerFiltered       Event = "depayloader.layer_filtered"
	EventOBUValidationError  Event = "obu_validation.error"
	EventSequenceGap         Event = "sequence.gap"
	EventReorderDrop         Event = "reorder.drop"
)

// Record is one typed telemetry emission: measurements (counts, bytes,
// durations) plus metadata (mtu, reason, sequence numbers), per spec.md
// §7. Zero-valued fields are simply omitted from the emitted log event.
type Record struct {
	Event Event

	Count    int
	Bytes    int
	Duration time.Duration

	MTU        int
	Reason     Kind
	SeqNum     *uint16
	Timestamp  *uint32
	TemporalID *uint8
	SpatialID  *uint8
}

// Emitter writes Records as structured zerolog events. It carries no
// buffering or sampling of its own — that belongs to the zerolog.Logger
// passed in, consistent with spec.md §9's "global state is avoided".
type Emitter struct {
	log zerolog.Logger
}

// NewEmitter returns an Emitter that writes through log.
func NewEmitter(log zerolog.Logger) *Emitter {
	return &Emitter{log: log}
}

// Emit writes r as one structured log event at Info level; flow-control
// events (layer_filtered, force_flush, *_timeout) are not failures and are
// never raised above Info.
func (e *Emitter) Emit(r Record) {
	if e == nil {
		return
	}

	ev := e.log.Info().Str("event", string(r.Event))
	if r.Count != 0 {
		ev = ev.Int("count", r.Count)
	}
	if r.Bytes != 0 {
		ev = ev.Int("bytes", r.Bytes)
	}
	if r.Duration != 0 {
		ev = ev.Dur("duration", r.Duration)
	}
	if r.MTU != 0 {
		ev = ev.Int("mtu", r.MTU)
	}
	if r.Reason != "" {
		ev = ev.Str("reason", string(r.Reason))
	}
	if r.SeqNum != nil {
		ev = ev.Uint16("seq_num", *r.SeqNum)
	}
	if r.Timestamp != nil {
		ev = ev.Uint32("timestamp", *r.Timestamp)
	}
	if r.TemporalID != nil {
		ev = ev.Uint8("temporal_id", *r.TemporalID)
	}
	if r.SpatialID != nil {
		ev = ev.Uint8("spatial_id", *r.SpatialID)
	}
	ev.Msg(string(r.Event))
}

// AggregationComplete reports one Payloader.Payload call's aggregation
// metrics.
func (e *Emitter) AggregationComplete(m AggregationMetrics, mtu int) {
	e.Emit(Record{Event: EventAggregationComplete, Count: m.Packets, Bytes: m.TotalPayloadBytes, MTU: mtu})
}

// Discontinuity reports a reassembled access unit flagged discontinuous,
// naming the Kind that triggered it where one is known.
func (e *Emitter) Discontinuity(reason Kind, timestamp uint32) {
	e.Emit(Record{Event: EventDiscontinuity, Reason: reason, Timestamp: &timestamp})
}

// FragmentTimeout reports an in-flight fragment accumulator dropped by a
// reorder-buffer force-flush or Tick timeout.
func (e *Emitter) FragmentTimeout(timestamp uint32, bytes int) {
	e.Emit(Record{Event: EventFragmentTimeout, Timestamp: &timestamp, Bytes: bytes})
}

// LayerFiltered reports one OBU dropped by the per-layer output gate (C5).
func (e *Emitter) LayerFiltered(seqNum uint16, temporalID, spatialID uint8) {
	e.Emit(Record{Event: EventLayerFiltered, SeqNum: &seqNum, TemporalID: &temporalID, SpatialID: &spatialID})
}

// OBUValidationError reports a packet dropped at OBU-parse time.
func (e *Emitter) OBUValidationError(reason Kind, seqNum uint16) {
	e.Emit(Record{Event: EventOBUValidationError, Reason: reason, SeqNum: &seqNum})
}

// SequenceGap reports a sequence-tracker gap larger than tolerated.
func (e *Emitter) SequenceGap(seqNum uint16, gap int) {
	e.Emit(Record{Event: EventSequenceGap, SeqNum: &seqNum, Count: gap})
}

// ReorderDrop reports a packet the reorder buffer discarded (duplicate,
// stale, or evicted by force-flush).
func (e *Emitter) ReorderDrop(reason Kind, seqNum uint16) {
	e.Emit(Record{Event: EventReorderDrop, Reason: reason, SeqNum: &seqNum})
}
