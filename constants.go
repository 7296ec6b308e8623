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

package accessnode

import "time"

// Connection retry constants used when bringing a chip up.
const (
	// DefaultConnectionRetries is the number of Init attempts.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the first pause between attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff caps the pause between attempts.
	ConnectionMaxBackoff = 2 * time.Second
	// ConnectionBackoffMultiplier grows the pause after each failure.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random fraction added to each pause.
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout bounds the whole connect sequence.
	ConnectionRetryTimeout = 15 * time.Second
)

// Busy-wait budgets. Each counts register polls, not time, so the real
// bound scales with the SPI clock.
const (
	// ReaderCommandPolls bounds the wait for a reader command to finish.
	ReaderCommandPolls = 2000
	// ReaderCRCPolls bounds the wait for the reader CRC coprocessor.
	ReaderCRCPolls = 255
	// PHYBusyPolls bounds the wait on the Ethernet MII busy flag.
	PHYBusyPolls = 1000
	// TransmitPolls bounds the wait for an in-flight Ethernet frame.
	TransmitPolls = 10000
)

// Chip settle times.
const (
	// EthernetResetDelay follows the Ethernet controller soft reset.
	EthernetResetDelay = time.Second
	// ReaderResetDelay follows reader reset pin and soft reset changes.
	ReaderResetDelay = 100 * time.Millisecond
)

// DefaultSPISpeed is the bus clock used when none is configured.
const DefaultSPISpeed = 4_000_000
