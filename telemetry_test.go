// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/beamcaster/av1rtp/obu"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_EmitWritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(zerolog.New(&buf))

	seq := uint16(42)
	e.Emit(Record{Event: EventSequenceGap, Count: 3, SeqNum: &seq})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, string(EventSequenceGap), decoded["event"])
	assert.EqualValues(t, 3, decoded["count"])
	assert.EqualValues(t, 42, decoded["seq_num"])
}

func TestEmitter_NilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.AggregationComplete(AggregationMetrics{}, 1200)
		e.Discontinuity(KindForceFlush, 9000)
		e.LayerFiltered(1, 2, 3)
	})
}

func TestEmitter_AggregationComplete(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(zerolog.New(&buf))
	e.AggregationComplete(AggregationMetrics{Packets: 4, TotalPayloadBytes: 900}, 1200)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, string(EventAggregationComplete), decoded["event"])
	assert.EqualValues(t, 4, decoded["count"])
	assert.EqualValues(t, 900, decoded["bytes"])
	assert.EqualValues(t, 1200, decoded["mtu"])
}

func TestDepayloader_EmitsReorderDropTelemetry(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(zerolog.New(&buf))

	d := NewDepayloader(DepayloaderConfig{HeaderMode: HeaderModeSpec, Telemetry: emitter})

	pkt := specElement(t, obu.TypeFrame, 10)
	sh := SpecAggregationHeader{}
	data := append([]byte{sh.Marshal()}, pkt...)

	now := time.Unix(0, 0)
	_, err := d.Depayload(data, 900, 20000, true, now)
	require.NoError(t, err)

	// Force the sequence tracker to reject a duplicate, which should emit
	// a reorder.drop event.
	_, err = d.Depayload(data, 900, 20000, true, now)
	require.Error(t, err)

	assert.Contains(t, buf.String(), string(EventReorderDrop))
}
