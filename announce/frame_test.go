// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package announce

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMAC = [6]byte{0x02, 0x00, 0x00, 0xA1, 0xB2, 0xC3}

// onesSum folds b into a 16-bit ones' complement sum.
func onesSum(sum uint32, b []byte) uint32 {
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	return sum
}

// resumIPv4 rewrites the IPv4 header checksum of an Ethernet frame after a
// header field was changed.
func resumIPv4(f []byte) {
	f[24], f[25] = 0, 0
	binary.BigEndian.PutUint16(f[24:26], ^uint16(onesSum(0, f[14:34])))
}

func TestFrameBuilder_Layout(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuilder(testMAC, [4]byte{192, 168, 1, 50})
	frame, err := fb.Build(Card(testReader, [4]byte{0x11, 0x22, 0x33, 0x44}))
	require.NoError(t, err)
	require.Len(t, frame, FrameSize)

	eth := frame[:14]
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, eth[0:6])
	assert.Equal(t, testMAC[:], eth[6:12])
	assert.Equal(t, []byte{0x08, 0x00}, eth[12:14])

	ip := frame[14:34]
	assert.Equal(t, byte(0x45), ip[0])
	assert.Equal(t, uint16(36), binary.BigEndian.Uint16(ip[2:4]))
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(ip[4:6]))
	assert.Equal(t, uint16(0x4000), binary.BigEndian.Uint16(ip[6:8]), "don't fragment")
	assert.Equal(t, byte(64), ip[8])
	assert.Equal(t, byte(17), ip[9])
	assert.Equal(t, []byte{192, 168, 1, 50}, ip[12:16])
	assert.Equal(t, []byte{255, 255, 255, 255}, ip[16:20])
	assert.Equal(t, uint32(0xFFFF), onesSum(0, ip), "header checksum verifies")

	u := frame[34:42]
	assert.Equal(t, uint16(DefaultPort), binary.BigEndian.Uint16(u[0:2]))
	assert.Equal(t, uint16(DefaultPort), binary.BigEndian.Uint16(u[2:4]))
	assert.Equal(t, uint16(16), binary.BigEndian.Uint16(u[4:6]))
	assert.Zero(t, binary.BigEndian.Uint16(u[6:8]), "no UDP checksum by default")

	assert.Equal(t, []byte{0xA1, 0xB2, 0xC3, 0x01, 0x11, 0x22, 0x33, 0x44}, frame[42:])
}

func TestFrameBuilder_IDIncrements(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuilder(testMAC, [4]byte{})
	a, err := fb.Build(Alive(testReader))
	require.NoError(t, err)
	b, err := fb.Build(Alive(testReader))
	require.NoError(t, err)

	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(a[18:20]))
	assert.Equal(t, uint16(2), binary.BigEndian.Uint16(b[18:20]))
	assert.NotEqual(t, a[24:26], b[24:26], "checksum follows the ID")
	assert.Equal(t, uint32(0xFFFF), onesSum(0, b[14:34]))
}

func TestFrameBuilder_UDPChecksum(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuilder(testMAC, [4]byte{10, 0, 0, 7})
	fb.Checksum = true
	frame, err := fb.Build(Card(testReader, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	require.NoError(t, err)

	udpSeg := frame[34:]
	require.NotZero(t, binary.BigEndian.Uint16(udpSeg[6:8]))

	var pseudo []byte
	pseudo = append(pseudo, frame[26:34]...)
	pseudo = append(pseudo, 0, 17, 0, byte(len(udpSeg)))
	sum := onesSum(0, pseudo)
	sum = onesSum(sum, udpSeg)
	assert.Equal(t, uint32(0xFFFF), sum)
}

func TestFrameBuilder_Append(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuilder(testMAC, [4]byte{})
	prefix := []byte{0xAA}
	out, err := fb.AppendFrame(prefix, Alive(testReader))
	require.NoError(t, err)
	assert.Len(t, out, 1+FrameSize)
	assert.Equal(t, byte(0xAA), out[0])
}

func TestDecode(t *testing.T) {
	t.Parallel()

	fb := NewFrameBuilder(testMAC, [4]byte{192, 168, 1, 50})
	msg := Card(testReader, [4]byte{0x11, 0x22, 0x33, 0x44})
	frame, err := fb.Build(msg)
	require.NoError(t, err)

	// The controller pads short frames; Decode must ignore the padding.
	padded := append(append([]byte(nil), frame...), make([]byte, 60-len(frame))...)
	got, err := Decode(padded, DefaultPort)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	tests := []struct {
		mutate func(f []byte)
		name   string
		port   uint16
	}{
		{name: "arp", port: DefaultPort, mutate: func(f []byte) { f[12], f[13] = 0x08, 0x06 }},
		{name: "tcp", port: DefaultPort, mutate: func(f []byte) { f[23] = 6 }},
		{name: "bad ip checksum", port: DefaultPort, mutate: func(f []byte) { f[24] ^= 0xFF }},
		{name: "other port", port: 9999, mutate: func([]byte) {}},
		{name: "truncated", port: DefaultPort, mutate: func(f []byte) { f[16], f[17] = 0x05, 0xDC }},
		{name: "total shorter than header", port: DefaultPort, mutate: func(f []byte) {
			f[16], f[17] = 0x00, 0x0A
			resumIPv4(f)
		}},
		{name: "total shorter than udp header", port: DefaultPort, mutate: func(f []byte) {
			f[16], f[17] = 0x00, 0x18
			resumIPv4(f)
		}},
		{name: "header longer than frame", port: DefaultPort, mutate: func(f []byte) {
			f[14] = 0x4F
			resumIPv4(f)
		}},
		{name: "header longer than total", port: DefaultPort, mutate: func(f []byte) {
			f[14] = 0x4A
			resumIPv4(f)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := append([]byte(nil), frame...)
			tt.mutate(f)
			var err error
			require.NotPanics(t, func() { _, err = Decode(f, tt.port) })
			assert.ErrorIs(t, err, ErrNotAnnouncement)
		})
	}

	_, err = Decode(make([]byte, 10), DefaultPort)
	assert.ErrorIs(t, err, ErrNotAnnouncement)
}
