// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/relabs-tech/headtrack/internal/orientation"
)

// RecordSize is the length of an encoded tracking record.
const RecordSize = 17

// EncodeRecord packs s into the tracking record the wireless peer expects:
// W, X, Y, Z as little-endian float32, then 1 if the sample is for calibration.
func EncodeRecord(s orientation.Sample, calibration bool) []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(s.W)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(s.X)))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(s.Y)))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(s.Z)))
	if calibration {
		buf[16] = 1
	}
	return buf
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(b []byte) (orientation.Sample, bool, error) {
	if len(b) != RecordSize {
		return orientation.Sample{}, false, fmt.Errorf("record: %d bytes, expected %d", len(b), RecordSize)
	}
	f := func(off int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:])))
	}
	return orientation.Sample{W: f(0), X: f(4), Y: f(8), Z: f(12)}, b[16] != 0, nil
}

// Sender is satisfied by *link.Link.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Link sends encoded records over the wireless link.
type Link struct {
	sender Sender
}

func NewLink(sender Sender) *Link {
	return &Link{sender: sender}
}

func (t *Link) Send(ctx context.Context, s orientation.Sample, calibration bool) error {
	return t.sender.Send(ctx, EncodeRecord(s, calibration))
}
