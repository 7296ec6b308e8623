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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	virt "github.com/ZaparooProject/go-accessnode/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatingBus is an empty chip select: MISO is pulled high.
type floatingBus struct{}

func (floatingBus) Tx(_, r []byte) error {
	for i := range r {
		r[i] = 0xFF
	}
	return nil
}

func (floatingBus) Delay(time.Duration) {}

type testPort struct {
	accessnode.Bus
	closed bool
}

func (p *testPort) Close() error {
	p.closed = true
	return nil
}

// fakePorts opens buses from a fixed table and remembers what it opened.
type fakePorts struct {
	buses  map[string]accessnode.Bus
	opened map[string]*testPort
	block  chan struct{}
	mu     sync.Mutex
}

func newFakePorts(buses map[string]accessnode.Bus) *fakePorts {
	return &fakePorts{buses: buses, opened: make(map[string]*testPort)}
}

func (f *fakePorts) open(path string) (BusCloser, error) {
	if f.block != nil {
		<-f.block
	}
	bus, ok := f.buses[path]
	if !ok {
		return nil, accessnode.ErrDeviceNotFound
	}
	port := &testPort{Bus: bus}
	f.mu.Lock()
	f.opened[path] = port
	f.mu.Unlock()
	return port, nil
}

func (f *fakePorts) paths() []string {
	var paths []string
	for p := range f.buses {
		paths = append(paths, p)
	}
	return paths
}

func testOptions(f *fakePorts) *Options {
	return &Options{Open: f.open, Paths: f.paths(), Timeout: time.Second}
}

func TestConfidence_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "low", Low.String())
	assert.Equal(t, "medium", Medium.String())
	assert.Equal(t, "high", High.String())
	assert.Equal(t, "unknown", Confidence(99).String())
}

func TestDeviceInfo_String(t *testing.T) {
	t.Parallel()

	d := DeviceInfo{
		Chip:       ChipMFRC522,
		Path:       "SPI0.1",
		Name:       "MFRC522 v2.0",
		Revision:   0x92,
		Confidence: High,
	}
	assert.Equal(t, "mfrc522 (MFRC522 v2.0, rev 0x92) at SPI0.1 (confidence: high)", d.String())
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.True(t, opts.EnableCache)
	assert.Equal(t, 30*time.Second, opts.CacheTTL)
	assert.Empty(t, opts.Paths)
}

func TestDetectAll_FindsBothChips(t *testing.T) {
	t.Parallel()

	ports := newFakePorts(map[string]accessnode.Bus{
		"SPI0.0": virt.NewVirtualENC28J60(),
		"SPI0.1": virt.NewVirtualMFRC522(),
		"SPI1.0": floatingBus{},
	})

	devices, err := DetectAll(context.Background(), testOptions(ports))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, DeviceInfo{
		Chip:       ChipENC28J60,
		Path:       "SPI0.0",
		Name:       "ENC28J60 B7",
		Revision:   virt.DefaultENCRevision,
		Confidence: High,
	}, devices[0])
	assert.Equal(t, DeviceInfo{
		Chip:       ChipMFRC522,
		Path:       "SPI0.1",
		Name:       "MFRC522 v2.0",
		Revision:   virt.DefaultRC522Version,
		Confidence: High,
	}, devices[1])

	for path, port := range ports.opened {
		assert.True(t, port.closed, "%s left open", path)
	}
}

func TestDetectAll_UnknownENCRevision(t *testing.T) {
	t.Parallel()

	enc := virt.NewVirtualENC28J60()
	enc.SetRegister(0x72, 0x07)
	ports := newFakePorts(map[string]accessnode.Bus{"SPI0.0": enc})

	devices, err := DetectAll(context.Background(), testOptions(ports))
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, Medium, devices[0].Confidence)
	assert.Equal(t, "ENC28J60", devices[0].Name)
}

func TestDetectAll_Filters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chips     []string
		ignore    []string
		wantChips []string
	}{
		{name: "all", wantChips: []string{ChipENC28J60, ChipMFRC522}},
		{name: "reader only", chips: []string{ChipMFRC522}, wantChips: []string{ChipMFRC522}},
		{name: "ignored path", ignore: []string{"spi0.0"}, wantChips: []string{ChipMFRC522}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ports := newFakePorts(map[string]accessnode.Bus{
				"SPI0.0": virt.NewVirtualENC28J60(),
				"SPI0.1": virt.NewVirtualMFRC522(),
			})
			opts := testOptions(ports)
			opts.Chips = tt.chips
			opts.IgnorePaths = tt.ignore

			devices, err := DetectAll(context.Background(), opts)
			require.NoError(t, err)
			var chips []string
			for _, d := range devices {
				chips = append(chips, d.Chip)
			}
			assert.Equal(t, tt.wantChips, chips)
		})
	}
}

func TestDetectAll_IgnoredPathsNotOpened(t *testing.T) {
	t.Parallel()

	ports := newFakePorts(map[string]accessnode.Bus{
		"/dev/spidev0.0": virt.NewVirtualENC28J60(),
	})
	opts := testOptions(ports)
	opts.IgnorePaths = []string{"/dev/spidev0.0"}

	_, err := DetectAll(context.Background(), opts)
	require.ErrorIs(t, err, ErrNoDevicesFound)
	assert.Empty(t, ports.opened)
}

func TestDetectAll_NothingFound(t *testing.T) {
	t.Parallel()

	ports := newFakePorts(map[string]accessnode.Bus{"SPI2.0": floatingBus{}})
	_, err := DetectAll(context.Background(), testOptions(ports))
	assert.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestDetectAll_OpenErrors(t *testing.T) {
	t.Parallel()

	ports := newFakePorts(map[string]accessnode.Bus{"SPI0.1": virt.NewVirtualMFRC522()})
	opts := testOptions(ports)
	opts.Paths = []string{"SPI9.9"}

	_, err := DetectAll(context.Background(), opts)
	require.ErrorIs(t, err, accessnode.ErrDeviceNotFound)
	assert.ErrorContains(t, err, "SPI9.9")

	// A failing port does not hide a working one.
	opts.Paths = []string{"SPI9.9", "SPI0.1"}
	devices, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDetectAll_Timeout(t *testing.T) {
	t.Parallel()

	ports := newFakePorts(map[string]accessnode.Bus{"SPI0.0": virt.NewVirtualENC28J60()})
	ports.block = make(chan struct{})
	defer close(ports.block)
	opts := testOptions(ports)
	opts.Timeout = 10 * time.Millisecond

	_, err := DetectAll(context.Background(), opts)
	assert.ErrorIs(t, err, ErrDetectionTimeout)
}

func TestDetectAll_NoProbers(t *testing.T) {
	t.Parallel()

	opts := &Options{Chips: []string{"w5500"}, Paths: []string{"SPI0.0"}}
	_, err := DetectAll(context.Background(), opts)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoDevicesFound))
}

// Cache tests share the package-level cache and do not run in parallel.
func TestDetectAll_Cache(t *testing.T) {
	clearCache()
	defer clearCache()

	ports := newFakePorts(map[string]accessnode.Bus{"cache-test": virt.NewVirtualMFRC522()})
	opts := testOptions(ports)
	opts.EnableCache = true
	opts.CacheTTL = time.Minute

	first, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, first, 1)

	ports.buses["cache-test"] = floatingBus{}
	ports.opened = make(map[string]*testPort)
	second, err := DetectAll(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Empty(t, ports.opened, "cached port was probed again")

	ClearDetectionCache()
	_, err = DetectAll(context.Background(), opts)
	assert.ErrorIs(t, err, ErrNoDevicesFound)
	_, found := getCached("cache-test", time.Minute)
	assert.False(t, found)
}

func TestCache_Expiry(t *testing.T) {
	clearCache()
	defer clearCache()

	setCached("expiry-test", &DeviceInfo{Chip: ChipENC28J60, Path: "expiry-test"})
	cached, found := getCached("expiry-test", time.Minute)
	require.True(t, found)
	assert.Equal(t, ChipENC28J60, cached.Chip)

	cached.Chip = "changed"
	again, _ := getCached("expiry-test", time.Minute)
	assert.Equal(t, ChipENC28J60, again.Chip)

	_, found = getCached("expiry-test", 0)
	assert.False(t, found)
}
