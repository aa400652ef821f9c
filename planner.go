// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import "github.com/beamcaster/av1rtp/obu"

// MaxOBUsPerPacket is the aggregation-count ceiling of spec.md §4.9.
const MaxOBUsPerPacket = 31

// PlannedPacket is one output bin of PlanPackets: either a run of whole
// OBUs to aggregate, or one fragment of a single OBU too large to fit in
// max_payload on its own.
type PlannedPacket struct {
	// OBUs holds the whole OBUs aggregated into this packet. Empty when
	// IsFragment is true.
	OBUs []obu.OBU

	IsFragment   bool
	FragmentData []byte // this fragment's raw bytes, set when IsFragment
	FragStart    bool   // this is the first fragment of its OBU
	FragEnd      bool   // this is the last fragment of its OBU

	// OBUIndexStart/OBUIndexEnd is the [start, end) range, over the input
	// obus slice, this packet covers — one index for a fragment packet,
	// len(OBUs) indices for an aggregated packet. The payloader uses this
	// to decide marker placement without re-deriving it from byte spans.
	OBUIndexStart, OBUIndexEnd int
}

// AggregationMetrics summarizes one PlanPackets call, per spec.md §4.9's
// per-access-unit metrics record.
type AggregationMetrics struct {
	TotalOBUs            int
	Packets              int
	AggregatedPackets    int // packets carrying more than one whole OBU
	FragmentedPackets    int // packets that are a fragment of a large OBU
	SingleOBUPackets     int // packets carrying exactly one whole, unfragmented OBU
	AverageOBUsPerPacket float64
	AggregationRatio     float64 // AggregatedPackets / Packets
	PayloadEfficiency    float64 // TotalPayloadBytes / (Packets * maxPayload)
	TotalPayloadBytes    int
	TotalPacketBytes     int
}

// packetSize returns the payload-byte cost of aggregating elems into one
// packet: every element explicitly length-prefixed (W=0). The W-value
// elision C3 describes (last element unprefixed, running to end of
// payload) is reserved for an actual in-progress fragmentation sequence
// (C6); a self-contained packet of whole OBUs with no continuation always
// uses W=0, since a lone W∈{1,2,3} packet with no matching fragment run is
// illegal under the W-bit state machine's transition table.
func packetSize(elems [][]byte) int {
	total := 0
	for _, e := range elems {
		total += obu.SizeULEB128(uint64(len(e))) + len(e)
	}
	return total
}

// PlanPackets bin-packs obus into packets bounded by maxPayload bytes and
// MaxOBUsPerPacket elements, per spec.md §4.9. Fragments of different OBUs
// never share a packet; an OBU whose raw form exceeds maxPayload is split
// into maxPayload-sized fragments that form their own packets.
func PlanPackets(obus []obu.OBU, maxPayload int) ([]PlannedPacket, AggregationMetrics) {
	var packets []PlannedPacket
	var bin []obu.OBU
	var binRaw [][]byte
	binStart := 0

	flush := func(upTo int) {
		if len(bin) == 0 {
			return
		}
		packets = append(packets, PlannedPacket{OBUs: bin, OBUIndexStart: binStart, OBUIndexEnd: upTo})
		bin = nil
		binRaw = nil
	}

	for i, o := range obus {
		raw := o.Raw()

		if len(raw) > maxPayload {
			flush(i)
			packets = append(packets, fragmentOBU(raw, maxPayload, i)...)
			binStart = i + 1
			continue
		}

		candidateRaw := append(append([][]byte{}, binRaw...), raw)
		if len(bin) > 0 && (len(candidateRaw) > MaxOBUsPerPacket || packetSize(candidateRaw) > maxPayload) {
			flush(i)
			candidateRaw = [][]byte{raw}
			binStart = i
		}

		bin = append(bin, o)
		binRaw = candidateRaw
	}
	flush(len(obus))

	return packets, computeMetrics(obus, packets, maxPayload)
}

// fragmentOBU splits one oversized OBU's raw bytes into maxPayload-sized
// packets, the first with FragStart set and the last with FragEnd set. All
// fragments share the same OBUIndexStart/End = [obuIndex, obuIndex+1), the
// single source OBU's index.
func fragmentOBU(raw []byte, maxPayload, obuIndex int) []PlannedPacket {
	var frags []PlannedPacket
	for off := 0; off < len(raw); off += maxPayload {
		end := off + maxPayload
		if end > len(raw) {
			end = len(raw)
		}
		frags = append(frags, PlannedPacket{
			IsFragment:    true,
			FragmentData:  raw[off:end],
			FragStart:     off == 0,
			FragEnd:       end == len(raw),
			OBUIndexStart: obuIndex,
			OBUIndexEnd:   obuIndex + 1,
		})
	}
	return frags
}

func computeMetrics(obus []obu.OBU, packets []PlannedPacket, maxPayload int) AggregationMetrics {
	m := AggregationMetrics{
		TotalOBUs: len(obus),
		Packets:   len(packets),
	}

	for _, p := range packets {
		if p.IsFragment {
			m.FragmentedPackets++
			m.TotalPayloadBytes += len(p.FragmentData)
			continue
		}
		if len(p.OBUs) == 1 {
			m.SingleOBUPackets++
		} else {
			m.AggregatedPackets++
		}
		raw := make([][]byte, len(p.OBUs))
		for i, o := range p.OBUs {
			raw[i] = o.Raw()
		}
		m.TotalPayloadBytes += packetSize(raw)
	}

	m.TotalPacketBytes = m.TotalPayloadBytes
	if m.Packets > 0 {
		m.AverageOBUsPerPacket = float64(m.TotalOBUs) / float64(m.Packets)
		m.AggregationRatio = float64(m.AggregatedPackets) / float64(m.Packets)
	}
	if m.Packets > 0 && maxPayload > 0 {
		m.PayloadEfficiency = float64(m.TotalPayloadBytes) / float64(m.Packets*maxPayload)
	}

	return m
}
