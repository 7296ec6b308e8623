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

package accessnode

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Debug output goes to stdout when enabled, to the session log whenever one
// is open, and to an optional extra writer such as a serial console.
var (
	debugEnabled = false
	debugMu      sync.Mutex
	debugExtra   io.Writer
	debugConsole io.Writer = os.Stdout
)

func init() {
	if os.Getenv("ACCESSNODE_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf logs a formatted debug line.
func Debugf(format string, args ...any) {
	emitDebug(fmt.Sprintf(format, args...))
}

// Debugln logs its operands separated by spaces.
func Debugln(args ...any) {
	msg := fmt.Sprintln(args...)
	emitDebug(msg[:len(msg)-1])
}

func emitDebug(message string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	stamped := time.Now().Format("15:04:05.000") + " DEBUG: " + message + "\n"
	if sessionLogWriter != nil {
		_, _ = io.WriteString(sessionLogWriter, stamped)
	}
	if debugExtra != nil {
		_, _ = io.WriteString(debugExtra, stamped)
	}
	if debugEnabled {
		_, _ = io.WriteString(debugConsole, "DEBUG: "+message+"\n")
	}
}

// SetDebugEnabled turns console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugMu.Lock()
	debugEnabled = enabled
	debugMu.Unlock()
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	debugMu.Lock()
	defer debugMu.Unlock()
	return debugEnabled
}

// SetDebugWriter mirrors every debug line to w regardless of the console
// setting. Pass nil to detach.
func SetDebugWriter(w io.Writer) {
	debugMu.Lock()
	debugExtra = w
	debugMu.Unlock()
}
