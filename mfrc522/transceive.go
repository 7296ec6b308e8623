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
	"fmt"

	"github.com/ZaparooProject/go-accessnode"
)

// irqMasks returns the interrupt enable mask and the completion mask for
// cmd.
func irqMasks(cmd Command) (irqEn, wait byte) {
	switch cmd {
	case CmdAuthent:
		return irqErr | irqIdle, irqIdle
	case CmdTransceive:
		return 0x77, irqRx | irqIdle
	default:
		return 0x00, 0x00
	}
}

// Execute runs cmd with out loaded into the FIFO and waits for it to
// finish. For Transceive the card's answer is copied into in, up to
// len(in) bytes, and n and bits report its length. The reader is put back
// to Idle before Execute returns, whatever the outcome.
func (d *Device) Execute(cmd Command, out, in []byte) (n, bits int, err error) {
	return d.execute(cmd.String(), cmd, out, in)
}

// execute is Execute with op naming the card operation in returned errors.
func (d *Device) execute(op string, cmd Command, out, in []byte) (n, bits int, err error) {
	irqEn, wait := irqMasks(cmd)

	if err := d.prepare(irqEn); err != nil {
		return 0, 0, err
	}
	defer func() {
		if idleErr := d.write(CommandReg, byte(CmdIdle)); idleErr != nil && err == nil {
			err = idleErr
		}
	}()

	if err := d.writeFIFO(out); err != nil {
		return 0, 0, err
	}
	if err := d.write(CommandReg, byte(cmd)); err != nil {
		return 0, 0, err
	}
	if cmd == CmdTransceive {
		if err := d.setBits(BitFramingReg, startSend); err != nil {
			return 0, 0, err
		}
	}

	irq, done, err := d.waitIrq(wait)
	if err != nil {
		return 0, 0, err
	}
	if err := d.clearBits(BitFramingReg, startSend); err != nil {
		return 0, 0, err
	}
	if !done {
		accessnode.Debugf("mfrc522: %s: %v gave no interrupt after %d polls", op, cmd, d.pollBudget)
		return 0, 0, cardErr(op,
			fmt.Errorf("%w: %w", ErrTimeout, accessnode.NewPollBudgetError("CommIrqReg", d.pollBudget)))
	}

	errReg, err := d.read(ErrorReg)
	if err != nil {
		return 0, 0, err
	}
	if errReg&errMask != 0 {
		return 0, 0, cardErr(op, errorFromReg(errReg))
	}

	var result error
	if irq&irqEn&irqTimer != 0 {
		result = ErrNoTag
	}
	if cmd == CmdTransceive {
		n, bits, err = d.readResponse(in)
		if err != nil {
			return 0, 0, err
		}
	}
	if result != nil {
		return n, bits, cardErr(op, result)
	}
	return n, bits, nil
}

// prepare enables the interrupts for the next command, clears pending
// ones, flushes the FIFO and stops whatever the reader was doing.
func (d *Device) prepare(irqEn byte) error {
	if err := d.write(CommIEnReg, irqEn|0x80); err != nil {
		return err
	}
	if err := d.clearBits(CommIrqReg, irqSet1); err != nil {
		return err
	}
	if err := d.setBits(FIFOLevelReg, fifoFlush); err != nil {
		return err
	}
	return d.write(CommandReg, byte(CmdIdle))
}

// waitIrq polls CommIrqReg until the timer fires or any bit of wait is set.
// done is false when the poll budget ran out first.
func (d *Device) waitIrq(wait byte) (irq byte, done bool, err error) {
	for range d.pollBudget {
		irq, err = d.read(CommIrqReg)
		if err != nil {
			return 0, false, err
		}
		if irq&irqTimer != 0 || irq&wait != 0 {
			return irq, true, nil
		}
	}
	return irq, false, nil
}

// readResponse drains the FIFO after a Transceive.
func (d *Device) readResponse(in []byte) (n, bits int, err error) {
	level, err := d.read(FIFOLevelReg)
	if err != nil {
		return 0, 0, err
	}
	ctrl, err := d.read(ControlReg)
	if err != nil {
		return 0, 0, err
	}
	n = int(level & 0x7F)
	last := int(ctrl & lastBits)
	switch {
	case n == 0:
		bits = 0
	case last != 0:
		bits = (n-1)*8 + last
	default:
		bits = n * 8
	}

	count := min(max(n, 1), maxResponse, len(in))
	if err := d.readFIFO(in[:count]); err != nil {
		return 0, 0, err
	}
	return n, bits, nil
}

// errorFromReg maps the first set ErrorReg bit onto its sentinel.
func errorFromReg(v byte) error {
	switch {
	case v&errBufferOvfl != 0:
		return ErrBufferOverflow
	case v&errColl != 0:
		return ErrCollision
	case v&errCRC != 0:
		return ErrCRC
	default:
		return ErrProtocol
	}
}
