// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// av1rtp-bridge demonstrates payloading an AV1 access unit, sending it as
// RTP over a UDP loopback socket, and depayloading it back on the receive
// side. A real application would drive Payload/Depayload from an encoder
// and a jitter buffer instead of a single file and a fixed sleep.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/beamcaster/av1rtp"
)

// RFC 8285 one-byte extension IDs used on this bridge's outgoing packets.
const (
	absSendTimeExtensionID = 1
	transportCCExtensionID = 2
)

// Config is read from the environment with the AV1RTP_ prefix, e.g.
// AV1RTP_MTU=1200, AV1RTP_PAYLOAD_TYPE=98.
type Config struct {
	InputFile   string `envconfig:"INPUT_FILE" default:"output.obu"`
	MTU         int    `envconfig:"MTU" default:"1200"`
	PayloadType uint8  `envconfig:"PAYLOAD_TYPE" default:"98"`
	HeaderMode  string `envconfig:"HEADER_MODE" default:"spec"` // "spec" or "draft"
	SSRC        uint32 `envconfig:"SSRC" default:"0x1234ABCD"`
}

func headerMode(s string) av1rtp.HeaderMode {
	if s == "draft" {
		return av1rtp.HeaderModeDraft
	}
	return av1rtp.HeaderModeSpec
}

func receiveLoop(conn *net.UDPConn, log zerolog.Logger) {
	emitter := av1rtp.NewEmitter(log)
	depayloader := av1rtp.NewDepayloader(av1rtp.DepayloaderConfig{
		HeaderMode: av1rtp.HeaderModeAuto,
		Telemetry:  emitter,
	})

	buf := make([]byte, 65535)
	var pkt av1rtp.Packet

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Error().Err(err).Msg("udp read failed")
			return
		}

		if err := pkt.Unmarshal(buf[:n]); err != nil {
			log.Error().Err(err).Msg("rtp unmarshal failed")
			continue
		}

		// GetExtension returns only the data bytes after the RFC 8285 id/len
		// byte (Header owns that byte); Unmarshal expects it back on the
		// front, so reconstruct it here before parsing.
		if ext := pkt.GetExtension(absSendTimeExtensionID); ext != nil {
			var sendTime av1rtp.AbsSendTimeExtension
			raw := append([]byte{absSendTimeExtensionID << 4}, ext...)
			if err := sendTime.Unmarshal(raw); err == nil {
				log.Debug().Time("estimated_send_time", sendTime.Estimate(time.Now())).Msg("abs-send-time")
			}
		}
		if ext := pkt.GetExtension(transportCCExtensionID); ext != nil {
			var tcc av1rtp.TransportCCExtension
			raw := append([]byte{transportCCExtensionID << 4}, ext...)
			if err := tcc.Unmarshal(raw); err == nil {
				log.Debug().Uint16("transport_seq", tcc.TransportSequence).Msg("transport-cc")
			}
		}

		au, err := depayloader.Depayload(pkt.Payload, pkt.SequenceNumber, pkt.Timestamp, pkt.Marker, time.Now())
		if err != nil {
			log.Warn().Err(err).Uint16("seq_num", pkt.SequenceNumber).Msg("packet rejected")
			continue
		}
		if au != nil {
			fmt.Printf("access unit from %s: %d OBUs, ts=%d, discontinuity=%v\n",
				remoteAddr, len(au.OBUs), au.Timestamp, au.Discontinuity)
		}

		for _, flushed := range depayloader.Tick(time.Now()) {
			fmt.Printf("flushed stale access unit: %d OBUs, ts=%d\n", len(flushed.OBUs), flushed.Timestamp)
		}
	}
}

func listen() (*net.UDPConn, int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0, IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		return nil, 0, err
	}
	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, 0, fmt.Errorf("unexpected local addr type %T", conn.LocalAddr())
	}
	return conn, udpAddr.Port, nil
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var cfg Config
	if err := envconfig.Process("AV1RTP", &cfg); err != nil {
		logger.Fatal().Err(err).Msg("reading configuration")
	}

	accessUnit, err := os.ReadFile(cfg.InputFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.InputFile).Msg("reading input access unit")
	}

	recvConn, recvPort, err := listen()
	if err != nil {
		logger.Fatal().Err(err).Msg("starting receiver")
	}
	go receiveLoop(recvConn, logger)

	sendConn, err := net.DialUDP("udp", nil, &net.UDPAddr{Port: recvPort, IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		logger.Fatal().Err(err).Msg("dialing receiver")
	}

	emitter := av1rtp.NewEmitter(logger)
	payloader, err := av1rtp.NewPayloader(av1rtp.PayloaderConfig{
		MTU:         cfg.MTU,
		PayloadType: cfg.PayloadType,
		HeaderMode:  headerMode(cfg.HeaderMode),
		Telemetry:   emitter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("constructing payloader")
	}

	sequencer := av1rtp.NewRandomSequencer()
	records := payloader.Payload(accessUnit)

	timestamp := uint32(0)
	var transportSeq uint16
	for _, rec := range records {
		pkt := av1rtp.Packet{
			Header: av1rtp.Header{
				Version:        2,
				Marker:         rec.Marker,
				PayloadType:    cfg.PayloadType,
				SequenceNumber: sequencer.NextSequenceNumber(),
				Timestamp:      timestamp,
				SSRC:           cfg.SSRC,
			},
			Payload: rec.Data,
		}

		sendTime := av1rtp.AbsSendTimeExtension{ID: absSendTimeExtensionID, Timestamp: uint64(av1rtp.TimeToAbsSendTime(time.Now()))}
		if b, err := sendTime.Marshal(); err == nil {
			if err := pkt.SetExtension(absSendTimeExtensionID, b[1:]); err != nil {
				logger.Warn().Err(err).Msg("setting abs-send-time extension")
			}
		}

		tcc := av1rtp.TransportCCExtension{ID: transportCCExtensionID, TransportSequence: transportSeq}
		transportSeq++
		if b, err := tcc.Marshal(); err == nil {
			if err := pkt.SetExtension(transportCCExtensionID, b[1:]); err != nil {
				logger.Warn().Err(err).Msg("setting transport-cc extension")
			}
		}

		marshaled, err := pkt.Marshal()
		if err != nil {
			logger.Fatal().Err(err).Msg("marshaling rtp packet")
		}
		if _, err := sendConn.Write(marshaled); err != nil {
			logger.Fatal().Err(err).Msg("writing to socket")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Give the receive goroutine time to drain the socket and log results.
	time.Sleep(200 * time.Millisecond)
}
