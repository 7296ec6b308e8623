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

//go:build linux

package spi

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// checkDeviceNode fails early with the errno when a spidev node exists but
// is not accessible, which spireg otherwise reports as "no such port".
func checkDeviceNode(portName string) error {
	if !strings.HasPrefix(portName, "/dev/") {
		return nil
	}
	if err := unix.Access(portName, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("spidev %s: %w", portName, err)
	}
	return nil
}
