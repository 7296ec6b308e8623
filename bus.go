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

// Bus is the serial peripheral bus a chip driver talks through.
//
// A single Tx call is one chip-select bracket: select is asserted, len(w)
// bytes are clocked out while the same number of bytes are clocked into r,
// and select is released before Tx returns, on every path. r may be nil
// when the caller does not care about the bytes shifted in; otherwise it
// must have the same length as w.
type Bus interface {
	// Tx performs one full-duplex transaction with the chip.
	Tx(w, r []byte) error

	// Delay blocks for d. Drivers use it for reset and settle times so
	// tests can run against virtual hardware without sleeping.
	Delay(d time.Duration)
}

// Closer is implemented by buses that own an underlying port.
type Closer interface {
	Close() error
}
