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
	"bytes"
	"fmt"
)

// CardState is the ISO/IEC 14443-3 state of a VirtualCard.
type CardState int

const (
	CardIdle CardState = iota
	CardReady
	CardActive
	CardHalted
)

func (s CardState) String() string {
	switch s {
	case CardIdle:
		return "IDLE"
	case CardReady:
		return "READY"
	case CardActive:
		return "ACTIVE"
	case CardHalted:
		return "HALT"
	default:
		return fmt.Sprintf("CardState(%d)", int(s))
	}
}

const (
	cardBlocks     = 64
	cardSectors    = 16
	cardBlockSize  = 16
	cardACK        = 0x0A
	cardNAK        = 0x04
	cardNoWrite    = -1
	cardNoAuth     = -1
	cardTrailerLen = 6
)

// DefaultKey is the transport key MIFARE Classic cards ship with.
var DefaultKey = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// CardFaults makes a VirtualCard misbehave.
type CardFaults struct {
	// CorruptBCC flips the check byte sent during anticollision.
	CorruptBCC bool
	// ForceBCC sends BCC as the check byte instead of the computed one.
	ForceBCC bool
	BCC      byte
	// ATQABits, when non-zero, overrides the ATQA length in bits.
	ATQABits int
	// NAKWriteAddress refuses the first phase of every write.
	NAKWriteAddress bool
	// NAKWriteData refuses the data phase of every write.
	NAKWriteData bool
	// Silent stops the card answering anything.
	Silent bool
}

// VirtualCard is a MIFARE Classic 1K card as seen from the RF field. It is
// driven by VirtualMFRC522.
type VirtualCard struct {
	Faults     CardFaults
	blocks     [cardBlocks][cardBlockSize]byte
	keysA      [cardSectors][6]byte
	keysB      [cardSectors][6]byte
	uid        [4]byte
	atqa       [2]byte
	state      CardState
	authSector int
	pending    int
	sak        byte
}

// NewVirtualCard returns a blank card with uid. Every sector uses
// DefaultKey for both keys and block 0 carries the UID and BCC.
func NewVirtualCard(uid [4]byte) *VirtualCard {
	c := &VirtualCard{
		uid:        uid,
		atqa:       [2]byte{0x04, 0x00},
		sak:        0x08,
		authSector: cardNoAuth,
		pending:    cardNoWrite,
	}
	for i := range c.keysA {
		c.keysA[i] = DefaultKey
		c.keysB[i] = DefaultKey
	}
	copy(c.blocks[0][:], uid[:])
	c.blocks[0][4] = uid[0] ^ uid[1] ^ uid[2] ^ uid[3]
	c.blocks[0][5] = c.sak
	return c
}

// UID returns the card's UID.
func (c *VirtualCard) UID() [4]byte { return c.uid }

// State returns the card's protocol state.
func (c *VirtualCard) State() CardState { return c.state }

// Block returns the stored contents of block addr.
func (c *VirtualCard) Block(addr int) [cardBlockSize]byte { return c.blocks[addr] }

// SetBlock stores data in block addr, bypassing authentication.
func (c *VirtualCard) SetBlock(addr int, data [cardBlockSize]byte) { c.blocks[addr] = data }

// SetKeys replaces the keys of sector.
func (c *VirtualCard) SetKeys(sector int, keyA, keyB [6]byte) {
	c.keysA[sector] = keyA
	c.keysB[sector] = keyB
}

// Reset returns the card to IDLE as if it had left the field.
func (c *VirtualCard) Reset() {
	c.state = CardIdle
	c.authSector = cardNoAuth
	c.pending = cardNoWrite
}

// Respond handles one frame received from the reader. txLastBits is the
// number of valid bits in the last byte, 0 meaning all 8. A nil response
// means the card stays silent.
func (c *VirtualCard) Respond(frame []byte, txLastBits int) (resp []byte, bits int) {
	if c.Faults.Silent || len(frame) == 0 {
		return nil, 0
	}

	if txLastBits == 7 && len(frame) == 1 {
		return c.request(frame[0])
	}

	if c.pending != cardNoWrite {
		return c.writeData(frame)
	}

	switch {
	case len(frame) == 2 && frame[0] == 0x93 && frame[1] == 0x20:
		return c.anticollision()
	case len(frame) == 9 && frame[0] == 0x93 && frame[1] == 0x70:
		return c.selectCard(frame)
	case len(frame) == 4 && frame[0] == 0x30:
		return c.read(frame)
	case len(frame) == 4 && frame[0] == 0xA0:
		return c.writeAddress(frame)
	case len(frame) == 4 && frame[0] == 0x50 && frame[1] == 0x00:
		if checkCRCA(frame) {
			c.state = CardHalted
			c.authSector = cardNoAuth
		}
		return nil, 0
	}
	return nil, 0
}

func (c *VirtualCard) request(cmd byte) ([]byte, int) {
	switch {
	case cmd == 0x26 && c.state == CardHalted:
		return nil, 0
	case cmd != 0x26 && cmd != 0x52:
		return nil, 0
	}
	c.state = CardReady
	c.authSector = cardNoAuth
	bits := 16
	if c.Faults.ATQABits != 0 {
		bits = c.Faults.ATQABits
	}
	return []byte{c.atqa[0], c.atqa[1]}, bits
}

func (c *VirtualCard) anticollision() ([]byte, int) {
	if c.state != CardReady {
		return nil, 0
	}
	bcc := c.uid[0] ^ c.uid[1] ^ c.uid[2] ^ c.uid[3]
	if c.Faults.ForceBCC {
		bcc = c.Faults.BCC
	}
	if c.Faults.CorruptBCC {
		bcc ^= 0xFF
	}
	return []byte{c.uid[0], c.uid[1], c.uid[2], c.uid[3], bcc}, 40
}

func (c *VirtualCard) selectCard(frame []byte) ([]byte, int) {
	if c.state != CardReady || !checkCRCA(frame) || !bytes.Equal(frame[2:6], c.uid[:]) {
		return nil, 0
	}
	c.state = CardActive
	return AppendCRCA([]byte{c.sak}), 24
}

// Authenticate is called by the reader model for MFAuthent.
func (c *VirtualCard) Authenticate(mode, block byte, key [6]byte, uid [4]byte) bool {
	if c.Faults.Silent || (c.state != CardReady && c.state != CardActive) {
		return false
	}
	if uid != c.uid || int(block) >= cardBlocks {
		return false
	}
	sector := int(block) / 4
	var want [6]byte
	switch mode {
	case 0x60:
		want = c.keysA[sector]
	case 0x61:
		want = c.keysB[sector]
	default:
		return false
	}
	if key != want {
		c.authSector = cardNoAuth
		return false
	}
	c.authSector = sector
	c.state = CardActive
	return true
}

func (c *VirtualCard) authorized(addr byte) bool {
	return c.authSector != cardNoAuth && int(addr) < cardBlocks && int(addr)/4 == c.authSector
}

func (c *VirtualCard) read(frame []byte) ([]byte, int) {
	if c.state != CardActive || !checkCRCA(frame) {
		return nil, 0
	}
	addr := frame[1]
	if !c.authorized(addr) {
		return []byte{cardNAK}, 4
	}
	block := c.blocks[addr]
	if int(addr)%4 == 3 {
		// Key A never reads back.
		clear(block[:cardTrailerLen])
	}
	return AppendCRCA(block[:]), 144
}

func (c *VirtualCard) writeAddress(frame []byte) ([]byte, int) {
	if c.state != CardActive || !checkCRCA(frame) {
		return nil, 0
	}
	addr := frame[1]
	if c.Faults.NAKWriteAddress || !c.authorized(addr) || addr == 0 {
		return []byte{cardNAK}, 4
	}
	c.pending = int(addr)
	return []byte{cardACK}, 4
}

func (c *VirtualCard) writeData(frame []byte) ([]byte, int) {
	addr := c.pending
	c.pending = cardNoWrite
	if len(frame) != cardBlockSize+2 || !checkCRCA(frame) || c.Faults.NAKWriteData {
		return []byte{cardNAK}, 4
	}
	copy(c.blocks[addr][:], frame[:cardBlockSize])
	return []byte{cardACK}, 4
}
