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

// SleepRecoveryConfig configures recovery after the host was suspended or
// the loop stalled for much longer than one poll interval.
type SleepRecoveryConfig struct {
	// Enabled enables stall detection and recovery attempts
	Enabled bool

	// TimeDiscontinuityThreshold is the minimum elapsed time beyond the expected
	// poll interval that indicates a stall. Default: 2 seconds
	TimeDiscontinuityThreshold time.Duration

	// MaxRecoveryAttempts is the number of recovery attempts before
	// treating as a fatal error. Default: 3
	MaxRecoveryAttempts int

	// RecoveryBackoff is the delay between recovery attempts
	RecoveryBackoff time.Duration
}

// DefaultSleepRecoveryConfig returns sensible defaults for sleep recovery
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		Enabled:                    true,
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxRecoveryAttempts:        3,
		RecoveryBackoff:            500 * time.Millisecond,
	}
}

// DetectSleep checks if the elapsed time since last poll indicates a stall.
// Returns true if elapsed time exceeds (pollInterval + TimeDiscontinuityThreshold).
func (cfg SleepRecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	if !cfg.Enabled {
		return false
	}
	expectedMax := pollInterval + cfg.TimeDiscontinuityThreshold
	return elapsed > expectedMax
}

// Config holds scanner configuration options
type Config struct {
	// PollInterval is the pause between two card cycles. Zero polls as
	// fast as the bus allows.
	PollInterval time.Duration
	// AliveInterval is how often OnAlive runs
	AliveInterval time.Duration
	// ClearInterval is how often the last reported UID is forgotten, so a
	// card left on the reader is reported again
	ClearInterval time.Duration
	// MaxBusErrors is how many consecutive cycles may fail on the bus
	// before the scanner recovers the reader or gives up
	MaxBusErrors int
	// SelectAndHalt selects and halts each card after reading its UID
	SelectAndHalt bool
	// SleepRecovery configures recovery after stalls
	SleepRecovery SleepRecoveryConfig
}

// DefaultConfig returns the default scanner configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  50 * time.Millisecond,
		AliveInterval: 10 * time.Second,
		ClearInterval: 3 * time.Second,
		MaxBusErrors:  5,
		SleepRecovery: DefaultSleepRecoveryConfig(),
	}
}
