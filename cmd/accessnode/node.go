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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/announce"
)

// frameSender is the part of enc28j60.Interface the node sends through.
type frameSender interface {
	SendEth(pkt []byte) error
}

// frameReceiver is the part of enc28j60.Interface the receive loop drains.
type frameReceiver interface {
	PollOne() (bool, error)
	LinkUp() (bool, error)
}

// announcer turns scanner events into broadcast frames.
type announcer struct {
	eth     frameSender
	builder *announce.FrameBuilder
	reader  announce.ReaderID
	buf     []byte
}

func newAnnouncer(eth frameSender, mac [6]byte, ip [4]byte, port uint16) *announcer {
	b := announce.NewFrameBuilder(mac, ip)
	b.DstPort = port
	b.SrcPort = port
	return &announcer{
		eth:     eth,
		builder: b,
		reader:  announce.ReaderIDFromMAC(mac),
		buf:     make([]byte, 0, announce.FrameSize),
	}
}

func (a *announcer) send(m announce.Message) error {
	frame, err := a.builder.AppendFrame(a.buf[:0], m)
	if err != nil {
		return err
	}
	a.buf = frame
	if err := a.eth.SendEth(frame); err != nil {
		return fmt.Errorf("send %s: %w", m, err)
	}
	accessnode.Debugf("sent %s", m)
	return nil
}

// Card announces a newly detected UID.
func (a *announcer) Card(uid [4]byte) error {
	return a.send(announce.Card(a.reader, uid))
}

// Alive announces that the node is running.
func (a *announcer) Alive() error {
	return a.send(announce.Alive(a.reader))
}

const (
	receiveIdle      = 5 * time.Millisecond
	linkCheckPeriod  = time.Second
	maxReceiveErrors = 10
)

// receiveLoop drains the Ethernet receive ring until ctx ends. Consecutive
// bus failures beyond maxReceiveErrors stop the loop.
func receiveLoop(ctx context.Context, eth frameReceiver) error {
	idle := time.NewTicker(receiveIdle)
	defer idle.Stop()

	var (
		failures  int
		lastCheck time.Time
		linkUp    bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if time.Since(lastCheck) >= linkCheckPeriod {
			lastCheck = time.Now()
			if up, err := eth.LinkUp(); err == nil && up != linkUp {
				linkUp = up
				accessnode.Debugf("ethernet link up: %v", up)
			}
		}

		consumed, err := eth.PollOne()
		switch {
		case err != nil && accessnode.IsFatal(err):
			return fmt.Errorf("ethernet receive: %w", err)
		case err != nil:
			failures++
			accessnode.Debugf("ethernet receive failed (%d/%d): %v", failures, maxReceiveErrors, err)
			if failures >= maxReceiveErrors {
				return fmt.Errorf("ethernet receive: %w", err)
			}
		default:
			failures = 0
		}
		if consumed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		}
	}
}

// peerHandler logs announcements broadcast by other nodes on the segment.
func peerHandler(self announce.ReaderID, port uint16) func(pkt []byte) error {
	return func(pkt []byte) error {
		m, err := announce.Decode(pkt, port)
		if err != nil || m.Reader == self {
			return nil
		}
		accessnode.Debugf("peer: %s", m)
		return nil
	}
}
