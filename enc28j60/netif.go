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
	"errors"

	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// Stats counts frames seen through an Interface.
type Stats struct {
	RxFrames    uint64
	RxDiscarded uint64
	TxFrames    uint64
	TxErrors    uint64
}

// Interface serializes access to a Device so one goroutine can drain the
// receive ring while others send.
type Interface struct {
	dev    *Device
	rcvEth func(pkt []byte) error
	rxBuf  []byte
	stats  Stats
	mu     syncutil.Mutex
}

// NewInterface wraps an initialized Device.
func NewInterface(dev *Device) *Interface {
	return &Interface{
		dev:   dev,
		rxBuf: make([]byte, dev.maxFrame),
	}
}

// MTU returns the largest frame SendEth accepts.
func (i *Interface) MTU() int { return i.dev.maxFrame }

// HardwareAddr6 returns the MAC address set by Init.
func (i *Interface) HardwareAddr6() ([6]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.dev.ready {
		return [6]byte{}, errors.New("hardware address not set, device not initialized")
	}
	return i.dev.mac, nil
}

// RecvEthHandle sets the handler for received frames. With a nil handler
// frames are still drained but dropped. The slice passed to handler is
// reused after it returns.
func (i *Interface) RecvEthHandle(handler func(pkt []byte) error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rcvEth = handler
}

// SendEth transmits one Ethernet frame.
func (i *Interface) SendEth(pkt []byte) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.dev.Transmit(pkt); err != nil {
		i.stats.TxErrors++
		return err
	}
	i.stats.TxFrames++
	return nil
}

// PollOne takes at most one frame out of the receive ring. It returns true
// when a frame was consumed, good or not.
func (i *Interface) PollOne() (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	n, st, err := i.dev.Receive(i.rxBuf)
	if err != nil {
		return false, err
	}
	switch st {
	case RecvEmpty:
		return false, nil
	case RecvDiscarded:
		i.stats.RxDiscarded++
		return true, nil
	}
	i.stats.RxFrames++
	if i.rcvEth != nil {
		return true, i.rcvEth(i.rxBuf[:n])
	}
	return true, nil
}

// LinkUp reports the PHY link state.
func (i *Interface) LinkUp() (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dev.LinkUp()
}

// Stats returns a snapshot of the frame counters.
func (i *Interface) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}
