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

// Command listener prints the announcements access nodes broadcast.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-accessnode/announce"
)

var (
	flagAddr    string
	flagVerbose bool
)

func init() {
	flag.StringVar(&flagAddr, "addr", fmt.Sprintf(":%d", announce.DefaultPort), "UDP address to listen on")
	flag.BoolVar(&flagVerbose, "v", false, "Print every datagram in hex")
}

// printMessage writes one line per datagram, as "<reader> Alive",
// "<reader> Card ID: <uid>" or "<reader> Unknown type: <n>".
func printMessage(w io.Writer, pkt []byte, verbose bool) {
	if verbose {
		_, _ = fmt.Fprintf(w, "Received %d bytes: %s\n", len(pkt), hex.EncodeToString(pkt))
	}
	m, err := announce.Parse(pkt)
	switch {
	case errors.Is(err, announce.ErrUnknownKind):
		_, _ = fmt.Fprintf(w, "%s Unknown type: %d\n", m.Reader, byte(m.Kind))
	case err != nil:
		_, _ = fmt.Fprintf(w, "Malformed datagram: %v\n", err)
	default:
		_, _ = fmt.Fprintln(w, m)
	}
}

func listen(ctx context.Context, addr string, w io.Writer, verbose bool) error {
	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	_, _ = fmt.Fprintf(w, "UDP server started on %s\n", conn.LocalAddr())

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		printMessage(w, buf[:n], verbose)
	}
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := listen(ctx, flagAddr, os.Stdout, flagVerbose); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
