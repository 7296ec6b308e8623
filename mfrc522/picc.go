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

package mfrc522

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-accessnode"
)

// Request sends mode, normally REQA (PICCReqIdle) or WUPA (PICCReqAll), as
// a 7-bit short frame and returns the card's ATQA. Only a 16-bit answer is
// accepted: an empty field is reported as ErrNoAnswer wrapping ErrNoTag,
// which StatusOf maps to StatusError.
func (d *Device) Request(mode byte) (uint16, error) {
	const op = "request"
	d.session.reset()

	if err := d.write(BitFramingReg, 0x07); err != nil {
		return 0, err
	}
	var in [2]byte
	_, bits, err := d.execute(op, CmdTransceive, []byte{mode}, in[:])
	if errors.Is(err, ErrNoTag) {
		return 0, cardErr(op, fmt.Errorf("%w: %w", ErrNoAnswer, ErrNoTag))
	}
	if err != nil {
		return 0, err
	}
	if bits != 16 {
		return 0, bitsErr(op, bits)
	}
	d.session.detected()
	return uint16(in[0])<<8 | uint16(in[1]), nil
}

// AntiCollision runs one cascade level 1 anticollision round and returns
// the UID of the card that answered.
func (d *Device) AntiCollision() ([UIDSize]byte, error) {
	const op = "anticollision"
	var uid [UIDSize]byte
	if err := d.check(op, d.session.state == StateDetected); err != nil {
		return uid, err
	}

	if err := d.write(BitFramingReg, 0x00); err != nil {
		return uid, d.fail(err)
	}
	var in [UIDSize + 1]byte
	n, bits, err := d.execute(op, CmdTransceive, []byte{PICCAntiColl, 0x20}, in[:])
	if err != nil {
		return uid, d.fail(err)
	}
	if n != len(in) || bits != len(in)*8 {
		return uid, d.fail(bitsErr(op, bits))
	}

	var bcc byte
	for _, b := range in[:UIDSize] {
		bcc ^= b
	}
	if bcc != in[UIDSize] {
		return uid, d.fail(cardErr(op,
			fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksum, in[UIDSize], bcc)))
	}

	copy(uid[:], in[:UIDSize])
	d.session.identified(uid)
	return uid, nil
}

// Select selects the card with uid and returns its SAK.
func (d *Device) Select(uid [UIDSize]byte) (byte, error) {
	const op = "select"
	if err := d.check(op, d.session.state == StateDetected && d.session.hasUID); err != nil {
		return 0, err
	}

	frame := make([]byte, 0, 9)
	frame = append(frame, PICCSelect, 0x70)
	frame = append(frame, uid[:]...)
	frame = append(frame, uid[0]^uid[1]^uid[2]^uid[3])
	frame, err := d.appendCRC(frame)
	if err != nil {
		return 0, d.fail(err)
	}

	var in [3]byte
	_, bits, err := d.execute(op, CmdTransceive, frame, in[:])
	if err != nil {
		return 0, d.fail(err)
	}
	if bits != 24 {
		return 0, d.fail(bitsErr(op, bits))
	}
	d.session.state = StateSelected
	d.session.uid = uid
	d.session.hasUID = true
	return in[0], nil
}

// Authenticate runs MIFARE Classic three-pass authentication for block
// with key. mode is PICCAuthKeyA or PICCAuthKeyB. On success the reader
// encrypts all further traffic until StopCrypto or Halt.
func (d *Device) Authenticate(mode, block byte, key [KeySize]byte, uid [UIDSize]byte) error {
	const op = "authenticate"
	if mode != PICCAuthKeyA && mode != PICCAuthKeyB {
		return fmt.Errorf("%w: auth mode 0x%02X", accessnode.ErrInvalidParameter, mode)
	}
	if err := d.check(op, d.session.canAuthenticate()); err != nil {
		return err
	}

	frame := make([]byte, 0, 2+KeySize+UIDSize)
	frame = append(frame, mode, block)
	frame = append(frame, key[:]...)
	frame = append(frame, uid[:]...)
	if _, _, err := d.execute(op, CmdAuthent, frame, nil); err != nil {
		return d.fail(err)
	}

	status, err := d.read(Status2Reg)
	if err != nil {
		return d.fail(err)
	}
	if status&crypto1On == 0 {
		return d.fail(cardErr(op, fmt.Errorf("%w: block %d", ErrAuth, block)))
	}
	d.session.state = StateAuthenticated
	return nil
}

// ReadBlock reads one 16-byte block.
func (d *Device) ReadBlock(addr byte) ([BlockSize]byte, error) {
	const op = "read"
	var data [BlockSize]byte
	if err := d.check(op, d.session.state == StateAuthenticated); err != nil {
		return data, err
	}

	frame, err := d.appendCRC([]byte{PICCRead, addr})
	if err != nil {
		return data, d.fail(err)
	}
	var in [maxResponse]byte
	_, bits, err := d.execute(op, CmdTransceive, frame, in[:])
	if err != nil {
		return data, d.fail(err)
	}
	if bits != maxResponse*8 {
		return data, d.fail(bitsErr(op, bits))
	}
	copy(data[:], in[:BlockSize])
	return data, nil
}

// WriteBlock writes one 16-byte block. The data phase is only sent once
// the card has acknowledged the address.
func (d *Device) WriteBlock(addr byte, data [BlockSize]byte) error {
	const op = "write"
	if err := d.check(op, d.session.state == StateAuthenticated); err != nil {
		return err
	}

	frame, err := d.appendCRC([]byte{PICCWrite, addr})
	if err != nil {
		return d.fail(err)
	}
	if err := d.expectAck(op, frame); err != nil {
		return d.fail(err)
	}

	frame, err = d.appendCRC(append(make([]byte, 0, maxResponse), data[:]...))
	if err != nil {
		return d.fail(err)
	}
	if err := d.expectAck(op, frame); err != nil {
		return d.fail(err)
	}
	return nil
}

// expectAck sends frame and checks for the 4-bit ACK nibble.
func (d *Device) expectAck(op string, frame []byte) error {
	var in [1]byte
	_, bits, err := d.execute(op, CmdTransceive, frame, in[:])
	if err != nil {
		return err
	}
	if bits != 4 || in[0]&0x0F != 0x0A {
		return &CardError{Op: op, Err: fmt.Errorf("%w: 0x%X", ErrNAK, in[0]&0x0F), Bits: bits}
	}
	return nil
}

// Halt puts the card to sleep and ends the session. A halted card does not
// answer, so only bus errors are reported.
func (d *Device) Halt() error {
	const op = "halt"
	authenticated := d.session.state == StateAuthenticated
	d.session.reset()

	frame, err := d.appendCRC([]byte{PICCHalt, 0x00})
	if errors.Is(err, ErrCRCTimeout) {
		accessnode.Debugf("mfrc522: halt: %v, sending precomputed frame", err)
		frame, err = haltFrame[:], nil
	}
	if err != nil {
		return err
	}
	var in [1]byte
	if _, _, err := d.execute(op, CmdTransceive, frame, in[:]); err != nil && !isCardError(err) {
		return err
	}
	if authenticated {
		return d.StopCrypto()
	}
	return nil
}

// StopCrypto leaves the encrypted state entered by Authenticate.
func (d *Device) StopCrypto() error {
	if d.session.state == StateAuthenticated {
		d.session.state = StateSelected
	}
	if err := d.clearBits(Status2Reg, crypto1On); err != nil {
		return fmt.Errorf("stop crypto: %w", err)
	}
	return nil
}

// haltFrame is HLTA with its CRC_A.
var haltFrame = [4]byte{PICCHalt, 0x00, 0x57, 0xCD}

func isCardError(err error) bool {
	var ce *CardError
	return errors.As(err, &ce)
}
