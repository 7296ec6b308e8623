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

package polling

import "time"

// CardState tracks what the scanner last reported and when its timers
// last fired.
type CardState struct {
	LastReport time.Time
	LastAlive  time.Time
	LastClear  time.Time
	LastCycle  time.Time
	LastUID    [4]byte
	Present    bool
}

// Seen records uid and reports whether it differs from the last reported
// card.
func (cs *CardState) Seen(uid [4]byte, now time.Time) bool {
	if cs.Present && cs.LastUID == uid {
		return false
	}
	cs.LastUID = uid
	cs.Present = true
	cs.LastReport = now
	return true
}

// Forget drops the last reported card.
func (cs *CardState) Forget() {
	cs.Present = false
	cs.LastUID = [4]byte{}
}

// Reset starts both interval timers at now.
func (cs *CardState) Reset(now time.Time) {
	cs.Forget()
	cs.LastAlive = now
	cs.LastClear = now
	cs.LastCycle = now
	cs.LastReport = time.Time{}
}

// AliveDue reports whether an alive message is due at now.
func (cs *CardState) AliveDue(now time.Time, interval time.Duration) bool {
	return interval > 0 && now.Sub(cs.LastAlive) >= interval
}

// ClearDue reports whether the last UID should be forgotten at now.
func (cs *CardState) ClearDue(now time.Time, interval time.Duration) bool {
	return interval > 0 && now.Sub(cs.LastClear) >= interval
}
