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

// Package accessnode holds the pieces shared by the go-accessnode chip
// drivers: the serial bus contract, the error taxonomy with wire traces,
// debug logging and the retry helper.
//
// The drivers themselves live in subpackages:
//
//   - enc28j60: Microchip ENC28J60 Ethernet controller
//   - mfrc522: NXP MFRC522 ISO14443-A contactless reader
//
// Both talk to their chip through a Bus. The periph.io implementation is
// in transport/spi:
//
//	bus, err := spi.New("/dev/spidev0.0")
//	if err != nil {
//		return err
//	}
//	defer bus.Close()
//
//	reader, err := mfrc522.New(bus)
//	if err != nil {
//		return err
//	}
//	if err := reader.Init(ctx); err != nil {
//		return err
//	}
//
//	_, err = reader.Request(mfrc522.PICCReqIdle)
//	switch {
//	case err == nil:
//		uid, err := reader.AntiCollision()
//		...
//	case errors.Is(err, mfrc522.ErrNoTag):
//		// nothing in the field; StatusOf(err) is StatusError
//	}
//
// Drivers are single-owner: a Device must not be used from more than one
// goroutine at a time. enc28j60.Interface adds the locking needed when a
// receive loop and a sender share one Ethernet controller.
package accessnode
