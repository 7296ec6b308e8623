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
	"time"

	"github.com/ZaparooProject/go-accessnode/internal/syncutil"
)

// cacheEntry holds the chip last found on one port.
type cacheEntry struct {
	timestamp time.Time
	device    DeviceInfo
}

type detectionCache struct {
	entries map[string]cacheEntry
	mu      syncutil.RWMutex
}

var cache = &detectionCache{
	entries: make(map[string]cacheEntry),
}

// getCached returns a copy of the cached device for path if it has not
// expired.
func getCached(path string, ttl time.Duration) (*DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	entry, exists := cache.entries[path]
	if !exists || time.Since(entry.timestamp) > ttl {
		return nil, false
	}
	device := entry.device
	return &device, true
}

func setCached(path string, device *DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.entries[path] = cacheEntry{
		device:    *device,
		timestamp: time.Now(),
	}
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.entries = make(map[string]cacheEntry)
}

// clearCacheForPath drops a stale entry once nothing answers on path, so
// callers do not keep connecting to a removed chip until the TTL runs out.
func clearCacheForPath(path string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	delete(cache.entries, path)
}
