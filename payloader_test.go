// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"testing"

	"github.com/beamcaster/av1rtp/obu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obuBytes(t *testing.T, typ obu.Type, bodyLen int) []byte {
	t.Helper()
	h := obu.Header{Type: typ, HasSizeField: true}
	body := make([]byte, bodyLen)
	for i := range body {
		body[i] = byte(i)
	}
	out := h.Marshal()
	out = obu.AppendULEB128(out, uint64(len(body)))
	return append(out, body...)
}

func TestPayloader_FiveSmallOBUsAggregateIntoOnePacket(t *testing.T) {
	var au []byte
	for i := 0; i < 5; i++ {
		au = append(au, obuBytes(t, obu.TypeFrame, 10)...)
	}

	p, err := NewPayloader(PayloaderConfig{MTU: 1200, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)

	records := p.Payload(au)
	require.Len(t, records, 1)
	assert.True(t, records[0].Marker)

	metrics := p.Analyze(au)
	assert.EqualValues(t, 1.0, metrics.AggregationRatio)
	assert.EqualValues(t, 1, metrics.AggregatedPackets)
}

func TestPayloader_LargeOBUFragments(t *testing.T) {
	au := obuBytes(t, obu.TypeFrame, 5000)

	p, err := NewPayloader(PayloaderConfig{MTU: 1200, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)

	records := p.Payload(au)
	require.GreaterOrEqual(t, len(records), 5)

	first := ParseDraftAggregationHeader(records[0].Data[0])
	assert.True(t, first.Start)
	assert.False(t, first.End)
	assert.True(t, first.Fragment)

	for _, r := range records[1 : len(records)-1] {
		h := ParseDraftAggregationHeader(r.Data[0])
		assert.False(t, h.Start)
		assert.False(t, h.End)
		assert.True(t, h.Fragment)
	}

	last := ParseDraftAggregationHeader(records[len(records)-1].Data[0])
	assert.False(t, last.Start)
	assert.True(t, last.End)
	assert.True(t, records[len(records)-1].Marker)

	for _, r := range records[:len(records)-1] {
		assert.False(t, r.Marker)
	}

	var rebuilt []byte
	for _, r := range records {
		rebuilt = append(rebuilt, r.Data[1:]...)
	}
	obus, err := obu.Split(au)
	require.NoError(t, err)
	assert.Equal(t, obus[0].Raw(), rebuilt)
}

func TestPayloader_OBUExactlyAtMaxPayload(t *testing.T) {
	p, err := NewPayloader(PayloaderConfig{MTU: 1201, HeaderMode: HeaderModeSpec})
	require.NoError(t, err)

	// Raw form (1 header byte, since HasSizeField is stripped by Raw) needs
	// to equal maxPayload = mtu - 1 = 1200.
	bodyLen := p.maxPayload() - 1 // 1-byte OBU header, no size field on the wire
	au := obuBytes(t, obu.TypeFrame, bodyLen)

	obus, err := obu.Split(au)
	require.NoError(t, err)
	require.Len(t, obus, 1)
	require.Equal(t, p.maxPayload(), len(obus[0].Raw()))

	records := p.Payload(au)
	require.Len(t, records, 1)
	assert.True(t, records[0].Marker)

	h, err := ParseSpecAggregationHeader(records[0].Data[0])
	require.NoError(t, err)
	assert.EqualValues(t, 0, h.W)
}

func TestPayloader_OBUOneByteOverMaxPayload(t *testing.T) {
	p, err := NewPayloader(PayloaderConfig{MTU: 1201, HeaderMode: HeaderModeSpec})
	require.NoError(t, err)

	bodyLen := p.maxPayload() // one byte larger than maxPayload once header is added
	au := obuBytes(t, obu.TypeFrame, bodyLen)

	records := p.Payload(au)
	require.Len(t, records, 2)

	h0, err := ParseSpecAggregationHeader(records[0].Data[0])
	require.NoError(t, err)
	assert.True(t, h0.Y)
	assert.False(t, records[0].Marker)

	h1, err := ParseSpecAggregationHeader(records[1].Data[0])
	require.NoError(t, err)
	assert.True(t, h1.Z)
	assert.True(t, records[1].Marker)
}

func TestPayloader_MTU64FragmentsStayUnderLimit(t *testing.T) {
	p, err := NewPayloader(PayloaderConfig{MTU: 64, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)

	au := obuBytes(t, obu.TypeFrame, 1000)
	records := p.Payload(au)

	for _, r := range records {
		assert.LessOrEqual(t, len(r.Data), 64)
	}

	var rebuilt []byte
	for _, r := range records {
		rebuilt = append(rebuilt, r.Data[1:]...)
	}
	obus, err := obu.Split(au)
	require.NoError(t, err)
	assert.Equal(t, obus[0].Raw(), rebuilt)
}

func TestPayloader_MTUClamped(t *testing.T) {
	p, err := NewPayloader(PayloaderConfig{MTU: 1, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)
	assert.Equal(t, minMTU, p.mtu)

	p2, err := NewPayloader(PayloaderConfig{MTU: 100000, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)
	assert.Equal(t, maxMTU, p2.mtu)
}

func TestPayloader_HandleMTUUpdate(t *testing.T) {
	p, err := NewPayloader(PayloaderConfig{MTU: 1200, HeaderMode: HeaderModeDraft})
	require.NoError(t, err)

	p.HandleMTUUpdate(500)
	assert.Equal(t, 500, p.mtu)

	p.HandleMTUUpdate(0)
	assert.Equal(t, minMTU, p.mtu)
}

func TestPayloader_RejectsAutoHeaderMode(t *testing.T) {
	_, err := NewPayloader(PayloaderConfig{MTU: 1200, HeaderMode: HeaderModeAuto})
	assert.Error(t, err)
}

func TestPayloader_NFlagOnNewSequenceHeader(t *testing.T) {
	var au []byte
	au = append(au, obuBytes(t, obu.TypeSequenceHeader, 4)...)
	au = append(au, obuBytes(t, obu.TypeFrame, 10)...)

	p, err := NewPayloader(PayloaderConfig{MTU: 1200, HeaderMode: HeaderModeSpec})
	require.NoError(t, err)

	records := p.Payload(au)
	require.Len(t, records, 1)
	h, err := ParseSpecAggregationHeader(records[0].Data[0])
	require.NoError(t, err)
	assert.True(t, h.N)
}
