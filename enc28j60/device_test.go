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

package enc28j60

import (
	"testing"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	virt "github.com/ZaparooProject/go-accessnode/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMAC = [6]byte{0x02, 0x00, 0x00, 0xA1, 0xB2, 0xC3}

func newTestDevice(t *testing.T, opts ...Option) (*Device, *virt.VirtualENC28J60, *virt.Recorder) {
	t.Helper()
	chip := virt.NewVirtualENC28J60()
	rec := virt.NewRecorder(chip)
	dev, err := New(rec, opts...)
	require.NoError(t, err)
	require.NoError(t, dev.Init(testMAC))
	rec.Reset()
	return dev, chip, rec
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "defaults"},
		{name: "poll budget", opts: []Option{WithPollBudget(10), WithMIIPollBudget(5)}},
		{name: "zero poll budget", opts: []Option{WithPollBudget(0)}, wantErr: true},
		{name: "negative mii budget", opts: []Option{WithMIIPollBudget(-1)}, wantErr: true},
		{name: "max frame 1518", opts: []Option{WithMaxFrame(1518)}},
		{name: "max frame too large", opts: []Option{WithMaxFrame(2000)}, wantErr: true},
		{name: "reset delay", opts: []Option{WithResetDelay(time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(virt.NewVirtualENC28J60(), tt.opts...)
			if tt.wantErr {
				assert.ErrorIs(t, err, accessnode.ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := New(nil)
	assert.ErrorIs(t, err, accessnode.ErrInvalidParameter)
}

func TestInit_ProgramsController(t *testing.T) {
	t.Parallel()

	chip := virt.NewVirtualENC28J60()
	dev, err := New(chip)
	require.NoError(t, err)
	require.False(t, dev.Ready())
	require.NoError(t, dev.Init(testMAC))

	assert.True(t, dev.Ready())
	assert.Equal(t, testMAC, dev.MAC())
	assert.Equal(t, 1, chip.SoftResets())
	assert.Equal(t, time.Second, chip.TotalDelay())

	assert.Equal(t, uint16(RXStart), chip.Register16(byte(ERXSTL)))
	assert.Equal(t, uint16(RXStart), chip.Register16(byte(ERXRDPTL)))
	assert.Equal(t, uint16(RXEnd), chip.Register16(byte(ERXNDL)))
	assert.Equal(t, uint16(MaxFrame), chip.Register16(byte(MAMXFLL)))

	assert.Equal(t, byte(0x0D), chip.Register(byte(MACON1)))
	assert.Equal(t, byte(0x00), chip.Register(byte(MACON2)))
	assert.Equal(t, byte(0x33), chip.Register(byte(MACON3)))
	assert.Equal(t, byte(0x15), chip.Register(byte(MABBIPG)))
	assert.Equal(t, byte(0x12), chip.Register(byte(MAIPGL)))
	assert.Equal(t, byte(0x0C), chip.Register(byte(MAIPGH)))

	macRegs := []Register{MAADR1, MAADR2, MAADR3, MAADR4, MAADR5, MAADR6}
	for i, reg := range macRegs {
		assert.Equal(t, testMAC[i], chip.Register(byte(reg)), "MAADR%d", i+1)
	}

	assert.Equal(t, uint16(0x0100), chip.PHY(PHCON1))
	assert.Equal(t, uint16(0x0100), chip.PHY(PHCON2))
	assert.Equal(t, uint16(0x0276), chip.PHY(PHLCON))
	assert.NotZero(t, chip.Register(byte(ECON1))&econ1RxEn)
}

func TestInit_BusFailure(t *testing.T) {
	t.Parallel()

	bus := virt.NewFaultyBus(virt.NewVirtualENC28J60(), virt.FaultConfig{FailAfter: 5})
	dev, err := New(bus)
	require.NoError(t, err)

	err = dev.Init(testMAC)
	require.ErrorIs(t, err, virt.ErrInjectedFault)
	assert.True(t, accessnode.IsRetryable(err))
	assert.False(t, dev.Ready())
}

func TestBankSelect_SameBankNoSwitch(t *testing.T) {
	t.Parallel()

	dev, _, rec := newTestDevice(t)
	bankClear := []byte{opBitClear | ECON1.Addr(), econ1BankSel}

	_, err := dev.ReadRegister(EPKTCNT)
	require.NoError(t, err)
	switches := rec.Count(bankClear...)

	mark := rec.Len()
	for range 5 {
		_, err := dev.ReadRegister(EPKTCNT)
		require.NoError(t, err)
		_, err = dev.ReadRegister(ERXFCON)
		require.NoError(t, err)
	}
	assert.Len(t, rec.Since(mark), 10, "same bank accesses must not switch banks")
	assert.Equal(t, switches, rec.Count(bankClear...))

	// Common registers never switch either.
	_, err = dev.ReadRegister(EIR)
	require.NoError(t, err)
	assert.Equal(t, switches, rec.Count(bankClear...))

	// A different bank costs exactly one clear and one set.
	mark = rec.Len()
	_, err = dev.ReadRegister(ERXSTL)
	require.NoError(t, err)
	txs := rec.Since(mark)
	require.Len(t, txs, 3)
	assert.Equal(t, bankClear, txs[0].Out)
	assert.Equal(t, []byte{opBitSet | ECON1.Addr(), 0x00}, txs[1].Out)
}

func TestRegisterEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reg    Register
		addr   byte
		bank   byte
		mac    bool
		common bool
	}{
		{name: "ERXRDPTL", reg: ERXRDPTL, addr: 0x0C, bank: 0},
		{name: "EPKTCNT", reg: EPKTCNT, addr: 0x19, bank: 1},
		{name: "MACON3", reg: MACON3, addr: 0x02, bank: 2, mac: true},
		{name: "MISTAT", reg: MISTAT, addr: 0x0A, bank: 3, mac: true},
		{name: "EREVID", reg: EREVID, addr: 0x12, bank: 3},
		{name: "ECON1", reg: ECON1, addr: 0x1F, bank: 0, common: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.addr, tt.reg.Addr())
			assert.Equal(t, tt.bank, tt.reg.Bank())
			assert.Equal(t, tt.mac, tt.reg.IsMACMII())
			assert.Equal(t, tt.common, tt.reg.IsCommon())
		})
	}
}

func TestWrite16_LowThenHigh(t *testing.T) {
	t.Parallel()

	dev, chip, rec := newTestDevice(t)
	_, err := dev.ReadRegister(ERXSTL)
	require.NoError(t, err)

	mark := rec.Len()
	require.NoError(t, dev.write16(ETXSTL, 0x1A2B))
	txs := rec.Since(mark)
	require.Len(t, txs, 2)
	assert.Equal(t, []byte{opWriteCtrl | 0x04, 0x2B}, txs[0].Out)
	assert.Equal(t, []byte{opWriteCtrl | 0x05, 0x1A}, txs[1].Out)
	assert.Equal(t, uint16(0x1A2B), chip.Register16(byte(ETXSTL)))

	got, err := dev.read16(ETXSTL)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1A2B), got)
}

func TestMACRegisterReadUsesDummyByte(t *testing.T) {
	t.Parallel()

	dev, _, rec := newTestDevice(t)
	mark := rec.Len()
	v, err := dev.ReadRegister(MACON3)
	require.NoError(t, err)
	assert.Equal(t, byte(0x33), v)

	txs := rec.Since(mark)
	last := txs[len(txs)-1]
	assert.Len(t, last.Out, 3)
}

func TestMACRegisterBitsUseReadModifyWrite(t *testing.T) {
	t.Parallel()

	dev, chip, rec := newTestDevice(t)
	require.NoError(t, dev.clearBits(MACON3, macon3FulDpx))
	assert.Equal(t, byte(0x32), chip.Register(byte(MACON3)))
	require.NoError(t, dev.setBits(MACON3, macon3FulDpx))
	assert.Equal(t, byte(0x33), chip.Register(byte(MACON3)))

	// No BFS or BFC opcode may target a MAC register address.
	for _, tx := range rec.Transactions() {
		op := tx.Out[0] & 0xE0
		if op == opBitSet || op == opBitClear {
			assert.Equal(t, ECON1.Addr(), tx.Out[0]&addrMask)
		}
	}
}

func TestRevisionAndProbe(t *testing.T) {
	t.Parallel()

	chip := virt.NewVirtualENC28J60()
	rev, ok := Probe(chip)
	assert.True(t, ok)
	assert.Equal(t, byte(virt.DefaultENCRevision), rev)

	dev, err := New(chip)
	require.NoError(t, err)
	rev, err = dev.Revision()
	require.NoError(t, err)
	assert.Equal(t, byte(virt.DefaultENCRevision), rev)

	chip.SetRegister(byte(EREVID), 0xFF)
	_, ok = Probe(chip)
	assert.False(t, ok)

	chip.SetRegister(byte(EREVID), 0x00)
	_, ok = Probe(chip)
	assert.False(t, ok)

	_, ok = Probe(virt.NewFaultyBus(chip, virt.FaultConfig{FailRate: 1}))
	assert.False(t, ok)
}

func TestIdentify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rev     byte
		wantErr bool
	}{
		{name: "B7", rev: 0x06},
		{name: "unknown revision", rev: 0x09},
		{name: "floating bus", rev: 0xFF, wantErr: true},
		{name: "nothing", rev: 0x00, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chip := virt.NewVirtualENC28J60()
			chip.SetRegister(byte(EREVID), tt.rev)
			dev, err := New(chip)
			require.NoError(t, err)

			rev, err := dev.Identify()
			assert.Equal(t, tt.rev, rev)
			if tt.wantErr {
				assert.ErrorIs(t, err, accessnode.ErrUnexpectedChip)
				assert.False(t, accessnode.IsRetryable(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
