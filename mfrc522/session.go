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

// State is the card session state held by a Device.
type State int

const (
	StateIdle State = iota
	StateDetected
	StateSelected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetected:
		return "detected"
	case StateSelected:
		return "selected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type session struct {
	state  State
	uid    [UIDSize]byte
	hasUID bool
}

func (s *session) reset() {
	*s = session{}
}

func (s *session) detected() {
	s.state = StateDetected
	s.hasUID = false
	s.uid = [UIDSize]byte{}
}

func (s *session) identified(uid [UIDSize]byte) {
	s.state = StateDetected
	s.uid = uid
	s.hasUID = true
}

// canAuthenticate allows re-authentication against another sector of a
// card that is already authenticated.
func (s *session) canAuthenticate() bool {
	switch s.state {
	case StateDetected:
		return s.hasUID
	case StateSelected, StateAuthenticated:
		return true
	default:
		return false
	}
}

// check returns a *SessionError for op when ok is false.
func (d *Device) check(op string, ok bool) error {
	if ok {
		return nil
	}
	return &SessionError{Op: op, State: d.session.state}
}

// fail drops the session after a failed card operation and passes err
// through.
func (d *Device) fail(err error) error {
	d.session.reset()
	return err
}

// State returns the current session state.
func (d *Device) State() State {
	return d.session.state
}

// UID returns the UID recorded by the last successful AntiCollision.
func (d *Device) UID() (uid [UIDSize]byte, ok bool) {
	return d.session.uid, d.session.hasUID
}
