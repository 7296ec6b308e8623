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
	"os"
	"path/filepath"
	"strings"

	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// EnvPorts lists extra ports to probe, comma separated.
const EnvPorts = "ACCESSNODE_SPI_PORTS"

// ListPorts gathers candidate ports from the environment, the periph SPI
// registry and /dev/spidev* nodes, without duplicates.
func ListPorts() []string {
	var ports []string

	if env := os.Getenv(EnvPorts); env != "" {
		for _, p := range strings.Split(env, ",") {
			ports = append(ports, strings.TrimSpace(p))
		}
	}

	if _, err := host.Init(); err == nil {
		for _, ref := range spireg.All() {
			ports = append(ports, ref.Name)
		}
	}

	// spireg names ports "SPI0.0"; the spidev nodes are only added when the
	// registry came back empty so the same chip select is not probed twice.
	if len(ports) == 0 {
		if matches, err := filepath.Glob("/dev/spidev*"); err == nil {
			ports = append(ports, matches...)
		}
	}

	return dedupe(ports)
}

// IsPathIgnored checks if a device path should be ignored.
// Supports exact path matching and normalized path comparison.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

// normalizedPath cleans path and folds case so "SPI0.1" matches "spi0.1".
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
