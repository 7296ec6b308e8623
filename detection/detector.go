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

// Package detection finds the ENC28J60 and MFRC522 chips attached to the
// host's SPI ports.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/transport/spi"
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - something answered but the identity is a guess
	Low Confidence = iota
	// Medium confidence - the chip answered with a plausible but unlisted revision
	Medium
	// High confidence - revision matches a known part
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Chip names reported in DeviceInfo.
const (
	ChipENC28J60 = "enc28j60"
	ChipMFRC522  = "mfrc522"
)

// DeviceInfo represents a detected chip
type DeviceInfo struct {
	// Chip is ChipENC28J60 or ChipMFRC522
	Chip string
	// SPI port name or spidev path
	Path string
	// Human-readable part name
	Name string
	// EREVID or VersionReg as read from the chip
	Revision byte
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s (%s, rev 0x%02X) at %s (confidence: %s)",
		d.Chip, d.Name, d.Revision, d.Path, d.Confidence)
}

// BusCloser is an opened port.
type BusCloser interface {
	accessnode.Bus
	accessnode.Closer
}

// OpenFunc opens the port at path for probing.
type OpenFunc func(path string) (BusCloser, error)

// Options configures the detection behavior
type Options struct {
	// Open opens a port. Nil uses the SPI transport.
	Open OpenFunc
	// Ports to probe. Empty probes every port ListPorts finds.
	Paths []string
	// Device paths to explicitly ignore (e.g., ["/dev/spidev0.0"])
	IgnorePaths []string
	// Chips to look for (empty = all registered probers)
	Chips []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for detection
	Timeout time.Duration
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Timeout:     5 * time.Second,
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no known chip answered on any port
	ErrNoDevicesFound = errors.New("no devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

type detectionResult struct {
	err    error
	device *DeviceInfo
}

// DetectAll probes every port in parallel and returns the chips found,
// sorted by path.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	probers := getProbers(opts.Chips)
	if len(probers) == 0 {
		return nil, errors.New("no probers available for specified chips")
	}

	paths := opts.Paths
	if len(paths) == 0 {
		paths = ListPorts()
	}
	var todo []string
	for _, p := range dedupe(paths) {
		if !IsPathIgnored(p, opts.IgnorePaths) {
			todo = append(todo, p)
		}
	}
	if len(todo) == 0 {
		return nil, ErrNoDevicesFound
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(todo))
	for _, path := range todo {
		go func(path string) {
			results <- probePath(path, probers, opts)
		}(path)
	}
	return collectDetectionResults(ctx, results, len(todo))
}

// probePath opens one port and runs each prober against it until one
// recognizes the chip.
func probePath(path string, probers []Prober, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, found := getCached(path, opts.CacheTTL); found {
			return detectionResult{device: cached}
		}
	}

	open := opts.Open
	if open == nil {
		open = openSPI
	}
	bus, err := open(path)
	if err != nil {
		return detectionResult{err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer func() { _ = bus.Close() }()

	for _, p := range probers {
		rev, confidence, ok := p.Probe(bus)
		if !ok {
			continue
		}
		device := &DeviceInfo{
			Chip:       p.Chip(),
			Path:       path,
			Name:       p.Name(rev),
			Revision:   rev,
			Confidence: confidence,
		}
		accessnode.Debugf("detection: %s", device)
		if opts.EnableCache {
			setCached(path, device)
		}
		return detectionResult{device: device}
	}

	if opts.EnableCache {
		clearCacheForPath(path)
	}
	return detectionResult{}
}

func collectDetectionResults(
	ctx context.Context,
	results chan detectionResult,
	numPaths int,
) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	var errs []error

	for range numPaths {
		select {
		case res := <-results:
			switch {
			case res.err != nil:
				errs = append(errs, res.err)
			case res.device != nil:
				devices = append(devices, *res.device)
			}
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(devices) > 0 {
		sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
		return devices, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoDevicesFound
}

func openSPI(path string) (BusCloser, error) {
	t, err := spi.New(path)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var unique []string
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	return unique
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}
