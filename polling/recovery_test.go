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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRecoverer_Defaults(t *testing.T) {
	t.Parallel()

	r := NewDefaultRecoverer(&scriptedReader{}, nil, 0, 0)
	assert.Equal(t, 3, r.maxAttempts)
	assert.Equal(t, 500*time.Millisecond, r.backoff)
}

func TestDefaultRecoverer(t *testing.T) {
	t.Parallel()

	errInit := errors.New("init failed")
	errReopen := errors.New("reopen failed")

	tests := []struct {
		name       string
		initErr    error
		reopenErr  error
		withReopen bool
		wantErr    error
		wantInits  int
		wantReopen int
		wantClosed bool
		wantSwap   bool
	}{
		{
			name:      "re-init succeeds",
			wantInits: 1,
		},
		{
			name:      "re-init fails without reopen",
			initErr:   errInit,
			wantErr:   errInit,
			wantInits: 2,
		},
		{
			name:       "reopen after failed init",
			initErr:    errInit,
			withReopen: true,
			wantInits:  1,
			wantReopen: 1,
			wantClosed: true,
			wantSwap:   true,
		},
		{
			name:       "everything fails",
			initErr:    errInit,
			reopenErr:  errReopen,
			withReopen: true,
			wantErr:    errReopen,
			wantInits:  2,
			wantReopen: 2,
			wantClosed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader := &scriptedReader{initErr: tt.initErr}
			fresh := &scriptedReader{}
			reopens := 0
			var reopen ReopenFunc
			if tt.withReopen {
				reopen = func(context.Context) (CardReader, error) {
					reopens++
					if tt.reopenErr != nil {
						return nil, tt.reopenErr
					}
					return fresh, nil
				}
			}

			r := NewDefaultRecoverer(reader, reopen, time.Millisecond, 2)
			err := r.AttemptRecovery(context.Background())

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantInits, reader.inits)
			assert.Equal(t, tt.wantReopen, reopens)
			assert.Equal(t, tt.wantClosed, reader.closed)
			if tt.wantSwap {
				assert.Same(t, fresh, r.Reader())
			} else {
				assert.Same(t, reader, r.Reader())
			}
		})
	}
}

func TestDefaultRecoverer_NothingToTry(t *testing.T) {
	t.Parallel()

	type plain struct{ CardReader }
	r := NewDefaultRecoverer(plain{&scriptedReader{}}, nil, time.Millisecond, 1)
	err := r.AttemptRecovery(context.Background())
	assert.ErrorIs(t, err, accessnode.ErrDeviceNotReady)
}

func TestDefaultRecoverer_CancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{initErr: errors.New("init failed")}
	r := NewDefaultRecoverer(reader, nil, time.Hour, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.AttemptRecovery(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, reader.inits)
}
