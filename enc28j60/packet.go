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
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-accessnode"
)

// RecvStatus tells an empty ring apart from a frame the MAC flagged bad.
type RecvStatus int

const (
	// RecvEmpty means no frame was waiting.
	RecvEmpty RecvStatus = iota
	// RecvOK means a good frame was copied out, possibly truncated.
	RecvOK
	// RecvDiscarded means a frame was consumed but not copied because its
	// receive status was not ok.
	RecvDiscarded
)

func (s RecvStatus) String() string {
	switch s {
	case RecvEmpty:
		return "empty"
	case RecvOK:
		return "ok"
	case RecvDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("RecvStatus(%d)", int(s))
	}
}

const (
	recordHeaderLen = 6
	frameCRCLen     = 4
	controlByte     = 0x00
)

// Transmit queues frame for sending. A previous frame still marked in
// flight is waited on first; if the controller flagged a transmit error
// the transmit logic is reset once per observation, as the silicon
// errata requires.
func (d *Device) Transmit(frame []byte) error {
	switch {
	case len(frame) == 0:
		return fmt.Errorf("%w: empty frame", accessnode.ErrInvalidParameter)
	case len(frame) > d.maxFrame:
		return fmt.Errorf("%w: %d byte frame, max %d", accessnode.ErrDataTooLarge, len(frame), d.maxFrame)
	}

	if err := d.waitTransmitIdle(); err != nil {
		return err
	}
	if err := d.write16(EWRPTL, TXStart); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if err := d.writeBuffer([]byte{controlByte}); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if err := d.writeBuffer(frame); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if err := d.write16(ETXSTL, TXStart); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if err := d.write16(ETXNDL, uint16(TXStart+len(frame))); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if err := d.setBits(ECON1, econ1TxRts); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	return nil
}

// Send is Transmit.
func (d *Device) Send(frame []byte) error {
	return d.Transmit(frame)
}

func (d *Device) waitTransmitIdle() error {
	for range d.txBudget {
		econ1, err := d.read(ECON1)
		if err != nil {
			return fmt.Errorf("transmit wait: %w", err)
		}
		if econ1&econ1TxRts == 0 {
			return nil
		}
		eir, err := d.read(EIR)
		if err != nil {
			return fmt.Errorf("transmit wait: %w", err)
		}
		if eir&eirTxErIF == 0 {
			continue
		}
		accessnode.Debugln("enc28j60: transmit error flagged, resetting transmit logic")
		if err := d.setBits(ECON1, econ1TxRst); err != nil {
			return fmt.Errorf("transmit reset: %w", err)
		}
		if err := d.clearBits(ECON1, econ1TxRst); err != nil {
			return fmt.Errorf("transmit reset: %w", err)
		}
	}
	return accessnode.NewPollBudgetError("transmit in flight", d.txBudget)
}

// Receive takes the next frame out of the receive ring and copies at most
// len(buf) bytes of it, without the trailing CRC, into buf. The record is
// released whether or not it was copied.
func (d *Device) Receive(buf []byte) (int, RecvStatus, error) {
	count, err := d.read(EPKTCNT)
	if err != nil {
		return 0, RecvEmpty, fmt.Errorf("receive: %w", err)
	}
	if count == 0 {
		return 0, RecvEmpty, nil
	}

	if err := d.write16(ERDPTL, d.nextPacket); err != nil {
		return 0, RecvEmpty, fmt.Errorf("receive: %w", err)
	}
	var hdr [recordHeaderLen]byte
	if err := d.readBuffer(hdr[:]); err != nil {
		return 0, RecvEmpty, fmt.Errorf("receive header: %w", err)
	}
	next := binary.LittleEndian.Uint16(hdr[0:2])
	byteCount := int(binary.LittleEndian.Uint16(hdr[2:4]))
	status := binary.LittleEndian.Uint16(hdr[4:6])

	n, st := 0, RecvDiscarded
	if status&rxStatusOK != 0 && byteCount >= frameCRCLen {
		n = min(byteCount-frameCRCLen, len(buf))
		st = RecvOK
		if err := d.readBuffer(buf[:n]); err != nil {
			return 0, RecvEmpty, fmt.Errorf("receive frame: %w", err)
		}
	} else {
		accessnode.Debugf("enc28j60: discarding frame, status 0x%04X count %d", status, byteCount)
	}

	if err := d.releaseRecord(next); err != nil {
		return 0, RecvEmpty, fmt.Errorf("receive release: %w", err)
	}
	return n, st, nil
}

// releaseRecord hands the ring space up to next back to the controller.
// ERXRDPT must never be left even, so it trails next by one.
func (d *Device) releaseRecord(next uint16) error {
	if err := d.write16(ERXRDPTL, (next-1)&bufferMask); err != nil {
		return err
	}
	d.nextPacket = next
	return d.setBits(ECON2, econ2PktDec)
}
