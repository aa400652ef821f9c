// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import "github.com/beamcaster/av1rtp/obu"

const (
	minMTU = 64
	maxMTU = 9000

	// defaultMTU mirrors spec.md §6's payloader default.
	defaultMTU = 1200

	// clockRate is fixed for this codec, per spec.md §3/§6.
	clockRate = 90000

	draftHeaderOverhead = 1
	specHeaderOverhead  = 1 // plus an optional IDS byte and SS, added per packet
)

// PayloaderConfig configures a Payloader, per spec.md §3/§6.
type PayloaderConfig struct {
	MTU         int
	PayloadType uint8
	HeaderMode  HeaderMode // HeaderModeAuto is not valid for a Payloader
	Validate    bool

	// Scalability is stamped onto the first packet of every access unit
	// when HeaderMode is HeaderModeSpec. Nil disables SS emission.
	Scalability *ScalabilityStructure

	// Telemetry, when non-nil, receives an aggregation.complete event per
	// Payload call.
	Telemetry *Emitter
}

// PayloadRecord is one ⟨payload bytes, marker flag⟩ output of a Payloader,
// per spec.md §4.10. The payloader never sets a sequence number or RTP
// timestamp; that is the enclosing transport's job.
type PayloadRecord struct {
	Data   []byte
	Marker bool
}

// Payloader fragments AV1 access units into RTP payloads (C10).
type Payloader struct {
	cfg PayloaderConfig
	mtu int
}

// NewPayloader validates cfg and returns a Payloader with its MTU clamped
// to [64, 9000].
func NewPayloader(cfg PayloaderConfig) (*Payloader, error) {
	if cfg.HeaderMode == HeaderModeAuto {
		return nil, errInvalidHeaderMode
	}
	if cfg.MTU == 0 {
		cfg.MTU = defaultMTU
	}

	p := &Payloader{cfg: cfg}
	p.mtu = clampMTU(cfg.MTU)
	return p, nil
}

func clampMTU(mtu int) int {
	if mtu < minMTU {
		return minMTU
	}
	if mtu > maxMTU {
		return maxMTU
	}
	return mtu
}

// HandleMTUUpdate applies a bounded runtime MTU change (C15). It affects
// only access units fragmented after this call returns.
func (p *Payloader) HandleMTUUpdate(newMTU int) {
	p.mtu = clampMTU(newMTU)
}

func (p *Payloader) headerOverhead() int {
	if p.cfg.HeaderMode == HeaderModeDraft {
		return draftHeaderOverhead
	}
	return specHeaderOverhead
}

func (p *Payloader) maxPayload() int {
	n := p.mtu - p.headerOverhead()
	if n < 1 {
		n = 1
	}
	return n
}

// splitAU splits accessUnit into OBUs. With Validate set it uses the
// strict parser and falls back to naive single-blob fragmentation (one
// opaque "OBU" spanning the whole buffer) on any parse error, per
// spec.md §4.10/§7's propagation policy: the payloader never raises to
// its caller.
func (p *Payloader) splitAU(accessUnit []byte) []obu.OBU {
	if !p.cfg.Validate {
		if obus, err := obu.SplitTolerant(accessUnit); err == nil {
			return obus
		}
		return []obu.OBU{{Header: obu.Header{Type: obu.TypeFrame}, Payload: accessUnit}}
	}

	obus, err := obu.Split(accessUnit)
	if err != nil {
		return []obu.OBU{{Header: obu.Header{Type: obu.TypeFrame}, Payload: accessUnit}}
	}
	return obus
}

func containsSequenceHeader(obus []obu.OBU) bool {
	for _, o := range obus {
		if o.Header.Type == obu.TypeSequenceHeader {
			return true
		}
	}
	return false
}

// Payload fragments accessUnit into an ordered sequence of payload
// records with markers, per spec.md §4.10.
func (p *Payloader) Payload(accessUnit []byte) []PayloadRecord {
	obus := p.splitAU(accessUnit)
	if len(obus) == 0 {
		return nil
	}

	tus := DetectTemporalUnits(obus)
	planned, metrics := PlanPackets(obus, p.maxPayload())
	p.cfg.Telemetry.AggregationComplete(metrics, p.mtu)

	hasSeqHdr := containsSequenceHeader(obus)

	records := make([]PayloadRecord, 0, len(planned))
	for i, pkt := range planned {
		marker := pkt.OBUIndexEnd == len(obus)
		if !marker {
			marker = endsTemporalUnit(pkt.OBUIndexEnd, tus)
		}
		// A fragment packet only carries the marker on its final fragment.
		if pkt.IsFragment && !pkt.FragEnd {
			marker = false
		}

		firstPacketOfAU := i == 0
		data := p.buildPayload(pkt, firstPacketOfAU && hasSeqHdr, firstPacketOfAU)
		records = append(records, PayloadRecord{Data: data, Marker: marker})
	}

	return records
}

func endsTemporalUnit(obuIndexEnd int, tus []TemporalUnit) bool {
	for _, tu := range tus {
		if tu.End == obuIndexEnd {
			return true
		}
	}
	return false
}

// buildPayload prepends the aggregation header to pkt's bytes. nFlag is
// stamped (spec mode only) when the packet covers the first byte of the AU
// and the AU carries a sequence_header OBU; the configured scalability
// structure, if any, is attached to the first packet of the AU in spec
// mode regardless of nFlag.
func (p *Payloader) buildPayload(pkt PlannedPacket, nFlag, firstPacketOfAU bool) []byte {
	if p.cfg.HeaderMode == HeaderModeDraft {
		return p.buildDraftPayload(pkt)
	}
	return p.buildSpecPayload(pkt, nFlag, firstPacketOfAU)
}

func (p *Payloader) buildDraftPayload(pkt PlannedPacket) []byte {
	var body []byte
	h := DraftAggregationHeader{}

	if pkt.IsFragment {
		h.Start = pkt.FragStart
		h.End = pkt.FragEnd
		h.Fragment = true
		h.OBUCount = 1
		body = pkt.FragmentData
	} else {
		h.OBUCount = uint8(len(pkt.OBUs))
		if h.OBUCount > 31 {
			h.OBUCount = 0
		}
		body = concatElements(rawOBUs(pkt.OBUs))
	}

	out := make([]byte, 0, 1+len(body))
	out = append(out, h.Marshal())
	return append(out, body...)
}

func (p *Payloader) buildSpecPayload(pkt PlannedPacket, nFlag, firstPacketOfAU bool) []byte {
	var body []byte
	h := SpecAggregationHeader{N: nFlag}

	if pkt.IsFragment {
		h.Z = !pkt.FragStart
		h.Y = !pkt.FragEnd
		switch {
		case pkt.FragStart:
			h.W = 1 // C6: idle -> in_fragment
		case pkt.FragEnd:
			h.W = 3 // C6: in_fragment -> idle
		default:
			h.W = 2 // C6: in_fragment -> in_fragment
		}
		body = pkt.FragmentData
	} else {
		// W=0 always: eliding the last element's prefix (W∈{1,2,3}) is only
		// legal inside an active fragmentation run (C6); a self-contained
		// aggregated packet has no such run to join.
		h.C = len(pkt.OBUs) > 1
		body = concatElements(rawOBUs(pkt.OBUs))
	}

	out := make([]byte, 0, 2+len(body))
	out = append(out, h.Marshal())

	if firstPacketOfAU && p.cfg.Scalability != nil {
		ssBytes, err := MarshalSS(*p.cfg.Scalability)
		if err == nil {
			h2 := h
			h2.Z = true
			out[0] = h2.Marshal()
			out = append(out, ssBytes...)
		}
	}

	return append(out, body...)
}

func rawOBUs(obus []obu.OBU) [][]byte {
	raw := make([][]byte, len(obus))
	for i, o := range obus {
		raw[i] = o.Raw()
	}
	return raw
}

// concatElements concatenates elems into one packet body, length-prefixing
// every element — the W=0 encoding, matching packetSize's accounting in
// planner.go.
func concatElements(elems [][]byte) []byte {
	var out []byte
	for _, e := range elems {
		out = obu.AppendULEB128(out, uint64(len(e)))
		out = append(out, e...)
	}
	return out
}

// Analyze returns the aggregation metrics for accessUnit without producing
// any payload records, per spec.md §4.10's pure analyze() entry point.
func (p *Payloader) Analyze(accessUnit []byte) AggregationMetrics {
	obus := p.splitAU(accessUnit)
	_, metrics := PlanPackets(obus, p.maxPayload())
	return metrics
}
