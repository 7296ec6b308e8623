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

//nolint:paralleltest // Tests share the package-level session log
package accessnode

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanupSessionLog resets session log state between tests.
func cleanupSessionLog(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		debugMu.Lock()
		defer debugMu.Unlock()
		if sessionLogFile != nil {
			_ = sessionLogFile.Close()
		}
		sessionLogFile = nil
		sessionLogPath = ""
		sessionLogWriter = nil
	})
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	cleanupSessionLog(t)
	dir := t.TempDir()

	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = os.Stat(path)
	require.NoError(t, err, "log file should exist")

	matched, err := regexp.MatchString(`^accessnode_\d{8}_\d{6}\.log$`, filepath.Base(path))
	require.NoError(t, err)
	assert.True(t, matched, "unexpected log name %s", path)
}

func TestSessionLog_HeaderLinesAndFooter(t *testing.T) {
	cleanupSessionLog(t)
	withDebugState(t)
	SetDebugEnabled(false)

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	Debugf("link up: %v", true)
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)
	text := string(content)

	for _, want := range []string{
		"=== accessnode debug session ===",
		"Started:",
		"PID:",
		"Platform:",
		"Command Line:",
		"DEBUG: link up: true",
		"=== Session ended ===",
	} {
		assert.Contains(t, text, want)
	}
}

func TestCloseSessionLog_NothingOpen(t *testing.T) {
	cleanupSessionLog(t)

	assert.NoError(t, CloseSessionLog())
	assert.NoError(t, CloseSessionLog())
}

func TestGetSessionLogPath(t *testing.T) {
	cleanupSessionLog(t)

	assert.Empty(t, GetSessionLogPath())

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, GetSessionLogPath())

	require.NoError(t, CloseSessionLog())
	assert.Empty(t, GetSessionLogPath())
}

func TestInitSessionLog_MissingDirectory(t *testing.T) {
	cleanupSessionLog(t)

	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
	assert.Empty(t, GetSessionLogPath())
}
