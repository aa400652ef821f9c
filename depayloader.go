// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"time"

	"github.com/beamcaster/av1rtp/obu"
)

const (
	defaultMaxReorderBuffer = 10
	defaultMaxSeqGap        = 5
	defaultReorderTimeout   = 500 * time.Millisecond
	defaultFragmentTimeout  = time.Second
)

// DepayloaderConfig configures a Depayloader, per spec.md §3/§6.
type DepayloaderConfig struct {
	HeaderMode      HeaderMode // HeaderModeAuto probes the first packet and locks in
	MaxReorderBuffer int
	MaxSeqGap        uint32
	ReorderTimeout   time.Duration
	FragmentTimeout  time.Duration

	RequireSequenceHeader bool

	// MaxTemporalID/MaxSpatialID, when non-nil, drop any packet whose IDS
	// byte names a layer above the gate (C5's per-layer output mode).
	MaxTemporalID *uint8
	MaxSpatialID  *uint8

	// MaxAccessUnitSize/MaxOBUsPerAccessUnit bound one assembled access
	// unit, mirroring gortsplib's rtpav1 decoder ceilings. Zero means
	// unbounded.
	MaxAccessUnitSize    int
	MaxOBUsPerAccessUnit int

	// Telemetry, when non-nil, receives the events of spec.md §7 as the
	// depayloader runs. Nil disables emission entirely.
	Telemetry *Emitter
}

// AccessUnit is one reassembled access unit (C12's output).
type AccessUnit struct {
	OBUs          []obu.OBU
	Timestamp     uint32
	Discontinuity bool
}

// decodedPacket is the per-packet result of aggregation-header decoding
// (C3/C5/C4), ready to sit in the reorder buffer (C11) until its access
// unit's run is complete.
type decodedPacket struct {
	prefixedElements [][]byte // complete OBUs, safe to parse immediately
	lastElement      []byte
	hasLastElement   bool
	isFragment       bool // lastElement participates in the W-bit SM
	w                uint8

	ids      *LayerID
	largeGap bool
}

// Depayloader reassembles AV1 access units from a stream of RTP payloads
// (C12).
type Depayloader struct {
	cfg DepayloaderConfig

	mode   HeaderMode
	probed bool

	seq          *SequenceTracker
	reorder      *ReorderBuffer[decodedPacket]
	cachedSS     *ScalabilityStructure
	haveSeqHdr   bool
}

// NewDepayloader returns a Depayloader applying spec.md §6's defaults for
// any zero-valued field.
func NewDepayloader(cfg DepayloaderConfig) *Depayloader {
	if cfg.MaxReorderBuffer == 0 {
		cfg.MaxReorderBuffer = defaultMaxReorderBuffer
	}
	if cfg.MaxSeqGap == 0 {
		cfg.MaxSeqGap = defaultMaxSeqGap
	}
	if cfg.ReorderTimeout == 0 {
		cfg.ReorderTimeout = defaultReorderTimeout
	}
	if cfg.FragmentTimeout == 0 {
		cfg.FragmentTimeout = defaultFragmentTimeout
	}

	return &Depayloader{
		cfg:  cfg,
		mode: cfg.HeaderMode,
		seq:  NewSequenceTracker(),
		reorder: NewReorderBuffer[decodedPacket](ReorderConfig{
			MaxBuffer: cfg.MaxReorderBuffer,
			MaxSeqGap: cfg.MaxSeqGap,
			Timeout:   cfg.ReorderTimeout,
		}),
	}
}

// Depayload feeds one RTP payload into the depayloader. It returns a
// non-nil AccessUnit once the packet completes (or force-flushes) its
// access unit's reorder run; otherwise it returns (nil, nil) while the run
// is still incomplete. A non-nil error means the packet itself was
// rejected (duplicate, out of order, or malformed) and was not buffered.
func (d *Depayloader) Depayload(payload []byte, seqNum uint16, timestamp uint32, marker bool, now time.Time) (*AccessUnit, error) {
	gapSize, largeGap, err := d.seq.Accept(seqNum)
	if err != nil {
		if ae, ok := err.(*Error); ok {
			d.cfg.Telemetry.ReorderDrop(ae.Kind, seqNum)
		}
		return nil, err
	}
	if largeGap {
		d.cfg.Telemetry.SequenceGap(seqNum, int(gapSize))
	}

	if !d.probed && d.mode == HeaderModeAuto {
		d.mode = probeHeaderMode(payload)
		d.probed = true
	}

	dp, err := d.decodePacket(payload)
	if err != nil {
		if ae, ok := err.(*Error); ok {
			d.cfg.Telemetry.OBUValidationError(ae.Kind, seqNum)
		}
		return nil, err
	}
	dp.largeGap = largeGap

	run, ok := d.reorder.Insert(timestamp, seqNum, dp, marker, now)
	if !ok {
		return nil, nil
	}

	return d.assembleAccessUnit(run), nil
}

// Tick drives the reorder buffer's timeout cleanup, returning one
// AccessUnit (always flagged Discontinuity) per timed-out RTP timestamp.
func (d *Depayloader) Tick(now time.Time) []*AccessUnit {
	flushed := d.reorder.Tick(now)
	aus := make([]*AccessUnit, 0, len(flushed))
	for i := range flushed {
		aus = append(aus, d.assembleAccessUnit(&flushed[i]))
	}
	return aus
}

// probeHeaderMode guesses draft vs spec from a stream's first packet: spec
// mode is locked in iff the byte parses as a spec-mode header without
// tripping the reserved bit I, since draft mode has no reserved bit to
// disambiguate against.
func probeHeaderMode(payload []byte) HeaderMode {
	if len(payload) == 0 {
		return HeaderModeDraft
	}
	if _, err := ParseSpecAggregationHeader(payload[0]); err == nil {
		return HeaderModeSpec
	}
	return HeaderModeDraft
}

func (d *Depayloader) decodePacket(payload []byte) (decodedPacket, error) {
	if d.mode == HeaderModeDraft {
		return d.decodeDraftPacket(payload)
	}
	return d.decodeSpecPacket(payload)
}

func (d *Depayloader) decodeDraftPacket(payload []byte) (decodedPacket, error) {
	if len(payload) < 1 {
		return decodedPacket{}, errShortPacket
	}
	h := ParseDraftAggregationHeader(payload[0])
	body := payload[1:]

	if h.Fragment {
		w := uint8(2)
		switch {
		case h.Start:
			w = 1
		case h.End:
			w = 3
		}
		return decodedPacket{lastElement: body, hasLastElement: true, isFragment: true, w: w}, nil
	}

	return decodeAggregatedElements(body)
}

func (d *Depayloader) decodeSpecPacket(payload []byte) (decodedPacket, error) {
	if len(payload) < 1 {
		return decodedPacket{}, errShortPacket
	}
	h, err := ParseSpecAggregationHeader(payload[0])
	if err != nil {
		return decodedPacket{}, err
	}
	body := payload[1:]

	var ids *LayerID
	if h.M {
		if len(body) < 1 {
			return decodedPacket{}, &Error{Kind: KindMissingIDSByte, Err: errMissingIDSByte}
		}
		parsed, err := ParseLayerID(body[0])
		if err != nil {
			return decodedPacket{}, err
		}
		if err := parsed.ValidateAgainstSS(d.cachedSS); err != nil {
			return decodedPacket{}, err
		}
		ids = &parsed
		body = body[1:]
	}

	// On a W=2/W=3 packet Z is the continuation flag buildSpecPayload sets on
	// later fragments; only a W=0/W=1 packet (the first packet of an access
	// unit) can carry a stamped scalability structure.
	if h.Z && h.W <= 1 {
		ss, n, err := UnmarshalSS(body)
		if err != nil {
			return decodedPacket{}, &Error{Kind: KindZSetWithoutSS, Err: errZSetWithoutSS}
		}
		sscopy := ss
		d.cachedSS = &sscopy
		body = body[n:]
	}

	var dp decodedPacket
	if h.W == 0 {
		var err error
		dp, err = decodeAggregatedElements(body)
		if err != nil {
			return decodedPacket{}, err
		}
	} else {
		// Fragment packets (W=1 start, 2 middle, 3 end) carry only the
		// fragment bytes, with no length-prefixed elements before them.
		dp = decodedPacket{lastElement: body, hasLastElement: true, isFragment: true, w: h.W}
	}

	dp.ids = ids
	return dp, nil
}

// decodeAggregatedElements decodes a non-fragmented (draft OBUCount, or
// spec W=0) body: every element is explicitly length-prefixed, so the
// element count (if any) is purely informational — boundaries come
// entirely from the LEB128 prefixes.
func decodeAggregatedElements(body []byte) (decodedPacket, error) {
	var prefixed [][]byte
	pos := 0
	for pos < len(body) {
		size, n, err := obu.DecodeULEB128(body[pos:])
		if err != nil {
			return decodedPacket{}, err
		}
		pos += n
		if pos+int(size) > len(body) {
			return decodedPacket{}, obu.ErrIncompleteOBU
		}
		prefixed = append(prefixed, body[pos:pos+int(size)])
		pos += int(size)
	}
	return decodedPacket{prefixedElements: prefixed}, nil
}

// decodeElements parses (w-1) length-prefixed elements from the front of
// body and returns the remaining bytes as the unprefixed trailing element.
func decodeElements(body []byte, w uint8) (prefixed [][]byte, tail []byte, hasTail bool, err error) {
	pos := 0
	for i := 0; i < int(w)-1; i++ {
		size, n, decErr := obu.DecodeULEB128(body[pos:])
		if decErr != nil {
			return nil, nil, false, decErr
		}
		pos += n
		if pos+int(size) > len(body) {
			return nil, nil, false, obu.ErrIncompleteOBU
		}
		prefixed = append(prefixed, body[pos:pos+int(size)])
		pos += int(size)
	}
	return prefixed, body[pos:], true, nil
}

func parseRawOBU(raw []byte) (obu.OBU, bool) {
	h, n, err := obu.ParseHeader(raw)
	if err != nil {
		return obu.OBU{}, false
	}
	return obu.OBU{Header: h, Payload: raw[n:]}, true
}

// assembleAccessUnit runs the W-bit state machine (C6) over one ordered
// reorder run, reconstructing fragmented OBUs and passing standalone ones
// through, then applies the layer filter and access-unit ceilings.
func (d *Depayloader) assembleAccessUnit(run *AssembledRun[decodedPacket]) *AccessUnit {
	wsm := NewWStateMachine()
	var obus []obu.OBU
	var fragBuf []byte
	var fragIDS *LayerID
	discontinuity := run.Discontinuity

	emit := func(raw []byte, ids *LayerID) {
		if !d.passesLayerFilter(ids) {
			if ids != nil {
				d.cfg.Telemetry.LayerFiltered(0, ids.TemporalID, ids.SpatialID)
			}
			return
		}
		if o, ok := parseRawOBU(raw); ok {
			obus = append(obus, o)
		} else {
			discontinuity = true
		}
	}

	for _, dp := range run.Values {
		if dp.largeGap {
			discontinuity = true
		}

		for _, raw := range dp.prefixedElements {
			emit(raw, dp.ids)
		}

		if !dp.hasLastElement {
			continue
		}

		if !dp.isFragment {
			emit(dp.lastElement, dp.ids)
			continue
		}

		if err := wsm.Advance(dp.w); err != nil {
			discontinuity = true
			fragBuf, fragIDS = nil, nil
			wsm.Reset()
			continue
		}

		if dp.w == 1 {
			fragIDS = dp.ids
		}
		fragBuf = append(fragBuf, dp.lastElement...)

		if dp.w == 3 {
			emit(fragBuf, fragIDS)
			fragBuf, fragIDS = nil, nil
		}
	}

	if len(fragBuf) > 0 {
		discontinuity = true
	}

	if d.cfg.MaxOBUsPerAccessUnit > 0 && len(obus) > d.cfg.MaxOBUsPerAccessUnit {
		obus = obus[:d.cfg.MaxOBUsPerAccessUnit]
		discontinuity = true
	}
	if d.cfg.MaxAccessUnitSize > 0 {
		total := 0
		for i, o := range obus {
			total += len(o.Raw())
			if total > d.cfg.MaxAccessUnitSize {
				obus = obus[:i]
				discontinuity = true
				break
			}
		}
	}

	if d.hasSequenceHeader(obus) {
		d.haveSeqHdr = true
	}
	if d.cfg.RequireSequenceHeader && !d.haveSeqHdr {
		d.cfg.Telemetry.Discontinuity("", run.Timestamp)
		return &AccessUnit{Timestamp: run.Timestamp, Discontinuity: true}
	}

	if discontinuity {
		d.cfg.Telemetry.Discontinuity("", run.Timestamp)
	}

	return &AccessUnit{OBUs: obus, Timestamp: run.Timestamp, Discontinuity: discontinuity}
}

func (d *Depayloader) hasSequenceHeader(obus []obu.OBU) bool {
	for _, o := range obus {
		if o.Header.Type == obu.TypeSequenceHeader {
			return true
		}
	}
	return false
}

func (d *Depayloader) passesLayerFilter(ids *LayerID) bool {
	if ids == nil {
		return true
	}
	if d.cfg.MaxTemporalID != nil && ids.TemporalID > *d.cfg.MaxTemporalID {
		return false
	}
	if d.cfg.MaxSpatialID != nil && ids.SpatialID > *d.cfg.MaxSpatialID {
		return false
	}
	return true
}
