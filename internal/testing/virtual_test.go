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

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRCA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want []byte
	}{
		{name: "read block 4", data: []byte{0x30, 0x04}, want: []byte{0x30, 0x04, 0x26, 0xEE}},
		{name: "halt", data: []byte{0x50, 0x00}, want: []byte{0x50, 0x00, 0x57, 0xCD}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AppendCRCA(append([]byte(nil), tt.data...))
			assert.Equal(t, tt.want, got)
			assert.True(t, checkCRCA(got))
		})
	}
	assert.False(t, checkCRCA([]byte{0x30, 0x04, 0x26, 0xEF}))
	assert.False(t, checkCRCA([]byte{0x30}))
}

func TestVirtualCard_States(t *testing.T) {
	t.Parallel()

	card := NewVirtualCard([4]byte{1, 2, 3, 4})
	assert.Equal(t, CardIdle, card.State())

	resp, bits := card.Respond([]byte{0x26}, 7)
	assert.Equal(t, []byte{0x04, 0x00}, resp)
	assert.Equal(t, 16, bits)
	assert.Equal(t, CardReady, card.State())

	resp, bits = card.Respond([]byte{0x93, 0x20}, 0)
	assert.Equal(t, []byte{1, 2, 3, 4, 4}, resp)
	assert.Equal(t, 40, bits)

	resp, bits = card.Respond(AppendCRCA([]byte{0x93, 0x70, 1, 2, 3, 4, 4}), 0)
	assert.Equal(t, AppendCRCA([]byte{0x08}), resp)
	assert.Equal(t, 24, bits)
	assert.Equal(t, CardActive, card.State())

	// Reads need authentication.
	resp, bits = card.Respond(AppendCRCA([]byte{0x30, 1}), 0)
	assert.Equal(t, []byte{cardNAK}, resp)
	assert.Equal(t, 4, bits)

	require.True(t, card.Authenticate(0x60, 1, DefaultKey, [4]byte{1, 2, 3, 4}))
	resp, bits = card.Respond(AppendCRCA([]byte{0x30, 0}), 0)
	assert.Equal(t, 144, bits)
	assert.Equal(t, []byte{1, 2, 3, 4, 4, 0x08}, resp[:6])

	resp, _ = card.Respond(AppendCRCA([]byte{0x50, 0x00}), 0)
	assert.Nil(t, resp)
	assert.Equal(t, CardHalted, card.State())

	resp, _ = card.Respond([]byte{0x26}, 7)
	assert.Nil(t, resp, "halted card ignores REQA")
	resp, _ = card.Respond([]byte{0x52}, 7)
	assert.NotNil(t, resp, "WUPA wakes it")
}

func TestVirtualCard_TrailerHidesKeyA(t *testing.T) {
	t.Parallel()

	card := NewVirtualCard([4]byte{9, 9, 9, 9})
	trailer := [16]byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xFF, 0x07, 0x80, 0x69, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	card.SetBlock(7, trailer)
	card.Respond([]byte{0x52}, 7)
	require.True(t, card.Authenticate(0x61, 7, DefaultKey, card.UID()))

	resp, bits := card.Respond(AppendCRCA([]byte{0x30, 7}), 0)
	require.Equal(t, 144, bits)
	assert.Equal(t, make([]byte, 6), resp[:6])
	assert.Equal(t, trailer[6:], resp[6:16])
}

func TestVirtualCard_SetKeys(t *testing.T) {
	t.Parallel()

	card := NewVirtualCard([4]byte{1, 1, 1, 1})
	key := [6]byte{1, 2, 3, 4, 5, 6}
	card.SetKeys(2, key, DefaultKey)
	card.Respond([]byte{0x26}, 7)

	assert.False(t, card.Authenticate(0x60, 8, DefaultKey, card.UID()))
	assert.True(t, card.Authenticate(0x60, 8, key, card.UID()))
	assert.False(t, card.Authenticate(0x60, 8, key, [4]byte{}), "wrong uid")
}

func TestVirtualMFRC522_FIFO(t *testing.T) {
	t.Parallel()

	v := NewVirtualMFRC522()
	require.NoError(t, v.Tx([]byte{rcFIFODataReg << 1, 1, 2, 3}, nil))

	r := make([]byte, 2)
	require.NoError(t, v.Tx([]byte{0x80 | rcFIFOLevelReg<<1, 0}, r))
	assert.Equal(t, byte(3), r[1])

	r = make([]byte, 4)
	w := []byte{0x80 | rcFIFODataReg<<1, 0x80 | rcFIFODataReg<<1, 0x80 | rcFIFODataReg<<1, 0}
	require.NoError(t, v.Tx(w, r))
	assert.Equal(t, []byte{0, 1, 2, 3}, r)

	require.NoError(t, v.Tx([]byte{rcFIFODataReg << 1, 9}, nil))
	require.NoError(t, v.Tx([]byte{rcFIFOLevelReg << 1, 0x80}, nil))
	r = make([]byte, 2)
	require.NoError(t, v.Tx([]byte{0x80 | rcFIFOLevelReg<<1, 0}, r))
	assert.Zero(t, r[1], "flushed")
}

func TestVirtualMFRC522_IrqSetClear(t *testing.T) {
	t.Parallel()

	v := NewVirtualMFRC522()
	require.NoError(t, v.Tx([]byte{rcCommIrqReg << 1, 0x80 | 0x31}, nil))
	assert.Equal(t, byte(0x31), v.Register(rcCommIrqReg))
	require.NoError(t, v.Tx([]byte{rcCommIrqReg << 1, 0x11}, nil))
	assert.Equal(t, byte(0x20), v.Register(rcCommIrqReg))
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(NewVirtualMFRC522())
	r := make([]byte, 2)
	require.NoError(t, rec.Tx([]byte{0x80 | rcVersionReg<<1, 0}, r))
	require.NoError(t, rec.Tx([]byte{rcModeReg << 1, 0x3D}, nil))
	require.NoError(t, rec.Tx([]byte{rcModeReg << 1, 0x3F}, nil))

	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, 2, rec.Count(rcModeReg<<1))
	assert.Equal(t, 1, rec.Count(rcModeReg<<1, 0x3F))
	assert.Equal(t, byte(DefaultRC522Version), rec.Transactions()[0].In[1])
	assert.Len(t, rec.Since(1), 2)
	assert.Nil(t, rec.Since(5))

	rec.Reset()
	assert.Zero(t, rec.Len())
}

func TestFaultyBus(t *testing.T) {
	t.Parallel()

	bus := NewFaultyBus(NewVirtualENC28J60(), FaultConfig{FailAfter: 2, Seed: 1})
	require.NoError(t, bus.Tx([]byte{0x1F, 0}, make([]byte, 2)))
	require.NoError(t, bus.Tx([]byte{0x1F, 0}, make([]byte, 2)))
	assert.ErrorIs(t, bus.Tx([]byte{0x1F, 0}, make([]byte, 2)), ErrInjectedFault)
	assert.Equal(t, 1, bus.Failures())

	bus.Heal()
	assert.NoError(t, bus.Tx([]byte{0x1F, 0}, make([]byte, 2)))
}

func TestVirtualENC28J60_InjectRequiresReceive(t *testing.T) {
	t.Parallel()

	v := NewVirtualENC28J60()
	assert.ErrorIs(t, v.InjectFrame(make([]byte, 60), true), ErrReceiveDisabled)

	// BFS ECON1 RXEN
	require.NoError(t, v.Tx([]byte{0x80 | encECON1, encRXEN}, nil))
	require.NoError(t, v.InjectFrame(make([]byte, 60), true))
	assert.Equal(t, byte(1), v.Register(encEPKTCNT))
}
