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
	"fmt"

	"github.com/ZaparooProject/go-accessnode"
)

// ReadPHY reads a PHY register through the MII.
func (d *Device) ReadPHY(addr byte) (uint16, error) {
	if err := d.write(MIREGADR, addr); err != nil {
		return 0, fmt.Errorf("phy read 0x%02X: %w", addr, err)
	}
	if err := d.setBits(MICMD, micmdMIIRd); err != nil {
		return 0, fmt.Errorf("phy read 0x%02X: %w", addr, err)
	}
	if err := d.waitMII(); err != nil {
		return 0, fmt.Errorf("phy read 0x%02X: %w", addr, err)
	}
	if err := d.clearBits(MICMD, micmdMIIRd); err != nil {
		return 0, fmt.Errorf("phy read 0x%02X: %w", addr, err)
	}
	v, err := d.read16(MIRDL)
	if err != nil {
		return 0, fmt.Errorf("phy read 0x%02X: %w", addr, err)
	}
	return v, nil
}

// WritePHY writes a PHY register through the MII. Writing MIWRH starts
// the transfer.
func (d *Device) WritePHY(addr byte, v uint16) error {
	if err := d.write(MIREGADR, addr); err != nil {
		return fmt.Errorf("phy write 0x%02X: %w", addr, err)
	}
	if err := d.write16(MIWRL, v); err != nil {
		return fmt.Errorf("phy write 0x%02X: %w", addr, err)
	}
	if err := d.waitMII(); err != nil {
		return fmt.Errorf("phy write 0x%02X: %w", addr, err)
	}
	return nil
}

func (d *Device) waitMII() error {
	for range d.miiBudget {
		st, err := d.read(MISTAT)
		if err != nil {
			return err
		}
		if st&mistatBusy == 0 {
			return nil
		}
	}
	return accessnode.NewPollBudgetError("mii busy", d.miiBudget)
}

// PHYID returns PHID1 in the high half and PHID2 in the low half.
func (d *Device) PHYID() (uint32, error) {
	id1, err := d.ReadPHY(PHID1)
	if err != nil {
		return 0, err
	}
	id2, err := d.ReadPHY(PHID2)
	if err != nil {
		return 0, err
	}
	return uint32(id1)<<16 | uint32(id2), nil
}

// LinkUp reports PHSTAT2.LSTAT.
func (d *Device) LinkUp() (bool, error) {
	st, err := d.ReadPHY(PHSTAT2)
	if err != nil {
		return false, err
	}
	return st&phstat2LStat != 0, nil
}
