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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.AliveInterval)
	assert.Equal(t, 3*time.Second, cfg.ClearInterval)
	assert.Equal(t, 5, cfg.MaxBusErrors)
	assert.False(t, cfg.SelectAndHalt)
	assert.True(t, cfg.SleepRecovery.Enabled)
}

func TestSleepRecoveryConfig_DetectSleep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enabled bool
		elapsed time.Duration
		want    bool
	}{
		{name: "normal cycle", enabled: true, elapsed: 60 * time.Millisecond},
		{name: "at threshold", enabled: true, elapsed: 2050 * time.Millisecond},
		{name: "stalled", enabled: true, elapsed: 3 * time.Second, want: true},
		{name: "disabled", elapsed: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultSleepRecoveryConfig()
			cfg.Enabled = tt.enabled
			assert.Equal(t, tt.want, cfg.DetectSleep(tt.elapsed, 50*time.Millisecond))
		})
	}
}

func TestCardState(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var cs CardState
	cs.Reset(start)

	uid := [4]byte{1, 2, 3, 4}
	assert.True(t, cs.Seen(uid, start))
	assert.False(t, cs.Seen(uid, start.Add(time.Second)))
	assert.Equal(t, start, cs.LastReport)

	assert.False(t, cs.AliveDue(start.Add(9*time.Second), 10*time.Second))
	assert.True(t, cs.AliveDue(start.Add(10*time.Second), 10*time.Second))
	assert.False(t, cs.ClearDue(start.Add(time.Hour), 0))

	cs.Forget()
	assert.True(t, cs.Seen(uid, start.Add(2*time.Second)))
}
