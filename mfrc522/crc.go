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

import "fmt"

// CalculateCRC runs data through the reader's CRC_A coprocessor.
func (d *Device) CalculateCRC(data []byte) (uint16, error) {
	// With bit 7 clear, the bits written to DivIrqReg are cleared.
	if err := d.write(DivIrqReg, divIrqCRC); err != nil {
		return 0, err
	}
	if err := d.setBits(FIFOLevelReg, fifoFlush); err != nil {
		return 0, err
	}
	if err := d.writeFIFO(data); err != nil {
		return 0, err
	}
	if err := d.write(CommandReg, byte(CmdCalcCRC)); err != nil {
		return 0, err
	}

	done := false
	for range d.crcBudget {
		v, err := d.read(DivIrqReg)
		if err != nil {
			return 0, err
		}
		if v&divIrqCRC != 0 {
			done = true
			break
		}
	}
	if !done {
		return 0, fmt.Errorf("crc over %d bytes: %w", len(data), ErrCRCTimeout)
	}

	lo, err := d.read(CRCResultRegL)
	if err != nil {
		return 0, err
	}
	hi, err := d.read(CRCResultRegH)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// appendCRC appends the CRC of frame, low byte first.
func (d *Device) appendCRC(frame []byte) ([]byte, error) {
	crc, err := d.CalculateCRC(frame)
	if err != nil {
		return nil, err
	}
	return append(frame, byte(crc), byte(crc>>8)), nil
}
