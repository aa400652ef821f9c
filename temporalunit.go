// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import "github.com/beamcaster/av1rtp/obu"

// TemporalUnit is an OBU-index range [Start, End) within an access unit's
// OBU list, covering one display time, per spec.md §3/§4.8.
type TemporalUnit struct {
	Start, End int
	FrameCount int
}

// DetectTemporalUnits scans obus (already split by the OBU parser) and
// returns the temporal-unit boundaries used only to decide RTP marker
// placement (C8). A new TU begins at a temporal_delimiter OBU or, absent
// one, at the first frame_header/frame/tile_group OBU whose minimally
// parsed frame header indicates KEY_FRAME, SWITCH_FRAME or
// INTRA_ONLY_FRAME with show_frame=1.
func DetectTemporalUnits(obus []obu.OBU) []TemporalUnit {
	if len(obus) == 0 {
		return nil
	}

	var units []TemporalUnit
	cur := TemporalUnit{Start: 0}
	curHasDelimiter := obus[0].Header.Type == obu.TypeTemporalDelimiter

	for i, o := range obus {
		isDelimiter := o.Header.Type == obu.TypeTemporalDelimiter

		hints, hintsOK := obu.FrameHeaderHints{}, false
		switch o.Header.Type {
		case obu.TypeFrameHeader, obu.TypeFrame, obu.TypeTileGroup:
			hints, hintsOK = obu.ParseFrameHeaderHints(o.Payload)
		}

		// The frame-header heuristic is only the fallback for streams that
		// never use temporal_delimiter OBUs: once the current TU has been
		// opened by a delimiter, a key/switch/intra-only frame inside it
		// does not itself start a new TU.
		startsNewTU := isDelimiter || (!curHasDelimiter && obu.IsTemporalUnitStart(o.Header.Type, hints, hintsOK))

		if startsNewTU && i > cur.Start {
			cur.End = i
			units = append(units, cur)
			cur = TemporalUnit{Start: i}
			curHasDelimiter = false
		}

		if isDelimiter {
			curHasDelimiter = true
		}

		if o.Header.Type == obu.TypeFrameHeader || o.Header.Type == obu.TypeFrame {
			cur.FrameCount++
		}
	}

	cur.End = len(obus)
	units = append(units, cur)

	return units
}
