// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"testing"

	"github.com/beamcaster/av1rtp/obu"
	"github.com/stretchr/testify/assert"
)

func TestDetectTemporalUnits_Empty(t *testing.T) {
	assert.Nil(t, DetectTemporalUnits(nil))
}

func TestDetectTemporalUnits_SingleDelimitedTU(t *testing.T) {
	obus := []obu.OBU{
		{Header: obu.Header{Type: obu.TypeTemporalDelimiter}},
		{Header: obu.Header{Type: obu.TypeSequenceHeader}},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
	}

	units := DetectTemporalUnits(obus)
	assert.Len(t, units, 1)
	assert.Equal(t, TemporalUnit{Start: 0, End: 3, FrameCount: 1}, units[0])
}

func TestDetectTemporalUnits_TwoDelimitedTUs(t *testing.T) {
	obus := []obu.OBU{
		{Header: obu.Header{Type: obu.TypeTemporalDelimiter}},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
		{Header: obu.Header{Type: obu.TypeTemporalDelimiter}},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
	}

	units := DetectTemporalUnits(obus)
	assert.Len(t, units, 2)
	assert.Equal(t, 0, units[0].Start)
	assert.Equal(t, 2, units[0].End)
	assert.Equal(t, 2, units[1].Start)
	assert.Equal(t, 4, units[1].End)
}

func TestDetectTemporalUnits_NoDelimiterFallsBackToFrameHeuristic(t *testing.T) {
	// Without delimiters, each shown key frame starts its own TU; a leading
	// sequence_header with no preceding frame forms its own leftover unit.
	obus := []obu.OBU{
		{Header: obu.Header{Type: obu.TypeSequenceHeader}},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
	}

	units := DetectTemporalUnits(obus)
	assert.Len(t, units, 3)
	assert.Equal(t, TemporalUnit{Start: 0, End: 1, FrameCount: 0}, units[0])
	assert.Equal(t, TemporalUnit{Start: 1, End: 2, FrameCount: 1}, units[1])
	assert.Equal(t, TemporalUnit{Start: 2, End: 3, FrameCount: 1}, units[2])
}

func TestDetectTemporalUnits_NonShownFrameDoesNotSplit(t *testing.T) {
	// show_frame=0 inter frame shouldn't start a new TU.
	obus := []obu.OBU{
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: shownKeyFramePayload()},
		{Header: obu.Header{Type: obu.TypeFrame}, Payload: unshownInterFramePayload()},
	}

	units := DetectTemporalUnits(obus)
	assert.Len(t, units, 1)
	assert.EqualValues(t, 2, units[0].FrameCount)
}

func TestDetectTemporalUnits_StandaloneKeyframeTileGroupStartsTU(t *testing.T) {
	// A stream using tile_group OBUs directly (no frame_header/frame OBU)
	// still opens a new TU at a standalone keyframe-bearing tile_group.
	obus := []obu.OBU{
		{Header: obu.Header{Type: obu.TypeTileGroup}, Payload: shownKeyFramePayload()},
		{Header: obu.Header{Type: obu.TypeTileGroup}, Payload: shownKeyFramePayload()},
	}

	units := DetectTemporalUnits(obus)
	assert.Len(t, units, 2)
	assert.Equal(t, 0, units[0].Start)
	assert.Equal(t, 1, units[0].End)
	assert.Equal(t, 1, units[1].Start)
	assert.Equal(t, 2, units[1].End)
}

// shownKeyFramePayload builds the minimal leading bits for a shown key frame:
// show_existing_frame=0, frame_type=00 (KEY), show_frame=1.
func shownKeyFramePayload() []byte {
	return []byte{0b0001_0000}
}

// unshownInterFramePayload: show_existing_frame=0, frame_type=01 (INTER),
// show_frame=0, showable_frame=0, error_resilient_mode=0.
func unshownInterFramePayload() []byte {
	return []byte{0b0010_0000}
}
