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

package detection

import (
	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/enc28j60"
	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
	"github.com/ZaparooProject/go-accessnode/mfrc522"
)

// Prober recognizes one kind of chip on an open bus.
type Prober interface {
	// Chip returns the chip name reported in DeviceInfo.
	Chip() string
	// Name returns the part name for a revision Probe returned.
	Name(rev byte) string
	// Probe reads the chip's identity register.
	Probe(bus accessnode.Bus) (rev byte, confidence Confidence, ok bool)
}

var (
	registry   []Prober
	registryMu syncutil.RWMutex
)

// RegisterProber adds a prober. Probers run in registration order and the
// first match wins.
func RegisterProber(p Prober) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, p)
}

func getProbers(chips []string) []Prober {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if len(chips) == 0 {
		return append([]Prober(nil), registry...)
	}
	var filtered []Prober
	for _, p := range registry {
		for _, c := range chips {
			if p.Chip() == c {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered
}

// The MFRC522 goes first: its version register read is a plain register
// access, while an ENC28J60 probe of a foreign chip can read back anything.
func init() {
	RegisterProber(mfrc522Prober{})
	RegisterProber(enc28j60Prober{})
}

type mfrc522Prober struct{}

func (mfrc522Prober) Chip() string { return ChipMFRC522 }

func (mfrc522Prober) Name(rev byte) string { return mfrc522.VersionName(rev) }

func (mfrc522Prober) Probe(bus accessnode.Bus) (byte, Confidence, bool) {
	v, ok := mfrc522.Probe(bus)
	return v, High, ok
}

// Silicon revisions Microchip has shipped.
var encRevisions = map[byte]string{
	0x02: "ENC28J60 B1",
	0x04: "ENC28J60 B4",
	0x05: "ENC28J60 B5",
	0x06: "ENC28J60 B7",
}

type enc28j60Prober struct{}

func (enc28j60Prober) Chip() string { return ChipENC28J60 }

func (enc28j60Prober) Name(rev byte) string {
	if name, ok := encRevisions[rev]; ok {
		return name
	}
	return "ENC28J60"
}

func (enc28j60Prober) Probe(bus accessnode.Bus) (byte, Confidence, bool) {
	rev, ok := enc28j60.Probe(bus)
	if !ok {
		return rev, Low, false
	}
	if _, known := encRevisions[rev]; known {
		return rev, High, true
	}
	return rev, Medium, true
}
