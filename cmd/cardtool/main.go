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

// Command cardtool reads or writes one block of a MIFARE Classic card
// through an MFRC522, or lists the chips found on the SPI ports.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/detection"
	"github.com/ZaparooProject/go-accessnode/mfrc522"
	"github.com/ZaparooProject/go-accessnode/transport/spi"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type config struct {
	rfidPort  string
	rfidReset string
	data      *[mfrc522.BlockSize]byte
	timeout   time.Duration
	key       [mfrc522.KeySize]byte
	block     byte
	keyB      bool
	detect    bool
	force     bool
	debug     bool
}

// Package-level flag variables
var (
	flagRFIDPort  string
	flagRFIDReset string
	flagBlock     uint
	flagKey       string
	flagKeyB      bool
	flagWrite     string
	flagDetect    bool
	flagForce     bool
	flagTimeout   time.Duration
	flagDebug     bool
)

func init() {
	flag.StringVar(&flagRFIDPort, "rfid", "SPI0.1", "SPI port of the MFRC522")
	flag.StringVar(&flagRFIDReset, "rfid-reset", "", "GPIO driving the MFRC522 NRSTPD pin")
	flag.UintVar(&flagBlock, "block", 4, "Block to read or write (0-63)")
	flag.StringVar(&flagKey, "key", "FFFFFFFFFFFF", "Sector key as 12 hex digits")
	flag.BoolVar(&flagKeyB, "keyb", false, "Authenticate with key B instead of key A")
	flag.StringVar(&flagWrite, "write", "", "Block data to write as 32 hex digits")
	flag.BoolVar(&flagDetect, "detect", false, "List the chips found on the SPI ports and exit")
	flag.BoolVar(&flagForce, "force", false, "Allow writing block 0 and sector trailers")
	flag.DurationVar(&flagTimeout, "timeout", 30*time.Second, "How long to wait for a card")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() (*config, error) {
	cfg := &config{
		rfidPort:  flagRFIDPort,
		rfidReset: flagRFIDReset,
		timeout:   flagTimeout,
		keyB:      flagKeyB,
		detect:    flagDetect,
		force:     flagForce,
		debug:     flagDebug,
	}

	if flagBlock > 63 {
		return nil, fmt.Errorf("block %d out of range", flagBlock)
	}
	cfg.block = byte(flagBlock)

	key, err := parseHex(flagKey, mfrc522.KeySize)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	copy(cfg.key[:], key)

	if flagWrite != "" {
		data, err := parseHex(flagWrite, mfrc522.BlockSize)
		if err != nil {
			return nil, fmt.Errorf("invalid block data: %w", err)
		}
		cfg.data = new([mfrc522.BlockSize]byte)
		copy(cfg.data[:], data)
		if err := checkWritable(cfg.block, cfg.force); err != nil {
			return nil, err
		}
	}

	if cfg.debug {
		accessnode.SetDebugEnabled(true)
	}
	return cfg, nil
}

// parseHex decodes exactly n bytes, ignoring spaces and colons.
func parseHex(s string, n int) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("want %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// checkWritable refuses the manufacturer block and sector trailers, where
// a bad write bricks the card or locks a sector.
func checkWritable(block byte, force bool) error {
	if force {
		return nil
	}
	switch {
	case block == 0:
		return errors.New("block 0 holds the manufacturer data, use -force to write it")
	case block%4 == 3:
		return fmt.Errorf("block %d is a sector trailer, use -force to write it", block)
	}
	return nil
}

// waitForCard polls until a card answers or ctx ends. It wakes halted
// cards too, so a card left on the reader is found again.
func waitForCard(ctx context.Context, dev *mfrc522.Device, interval time.Duration) ([mfrc522.UIDSize]byte, byte, error) {
	for {
		uid, sak, err := selectCard(dev)
		switch {
		case err == nil:
			return uid, sak, nil
		case errors.As(err, new(*accessnode.TransportError)):
			return uid, 0, err
		}

		select {
		case <-ctx.Done():
			return uid, 0, fmt.Errorf("no card: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func selectCard(dev *mfrc522.Device) ([mfrc522.UIDSize]byte, byte, error) {
	if _, err := dev.Request(mfrc522.PICCReqAll); err != nil {
		return [mfrc522.UIDSize]byte{}, 0, err
	}
	uid, err := dev.AntiCollision()
	if err != nil {
		return uid, 0, err
	}
	sak, err := dev.Select(uid)
	return uid, sak, err
}

// runCard reads cfg.block and, when cfg.data is set, writes it and reads
// it back.
func runCard(ctx context.Context, dev *mfrc522.Device, cfg *config, w io.Writer) error {
	waitCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	_, _ = fmt.Fprintln(w, "Waiting for a card...")
	uid, sak, err := waitForCard(waitCtx, dev, 50*time.Millisecond)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Card UID: % X (SAK 0x%02X)\n", uid[:], sak)
	defer func() {
		if err := dev.Halt(); err != nil {
			accessnode.Debugf("halt: %v", err)
		}
	}()

	mode, keyName := byte(mfrc522.PICCAuthKeyA), "A"
	if cfg.keyB {
		mode, keyName = mfrc522.PICCAuthKeyB, "B"
	}
	if err := dev.Authenticate(mode, cfg.block, cfg.key, uid); err != nil {
		return fmt.Errorf("authenticate block %d with key %s: %w", cfg.block, keyName, err)
	}

	data, err := dev.ReadBlock(cfg.block)
	if err != nil {
		return fmt.Errorf("read block %d: %w", cfg.block, err)
	}
	_, _ = fmt.Fprintf(w, "Block %d: % X\n", cfg.block, data[:])

	if cfg.data == nil {
		return nil
	}
	if err := dev.WriteBlock(cfg.block, *cfg.data); err != nil {
		return fmt.Errorf("write block %d: %w", cfg.block, err)
	}
	data, err = dev.ReadBlock(cfg.block)
	if err != nil {
		return fmt.Errorf("read back block %d: %w", cfg.block, err)
	}
	if data != *cfg.data {
		return fmt.Errorf("block %d reads back % X after write", cfg.block, data[:])
	}
	_, _ = fmt.Fprintf(w, "Wrote block %d: % X\n", cfg.block, data[:])
	return nil
}

func runDetect(ctx context.Context, w io.Writer, opts *detection.Options) error {
	devices, err := detection.DetectAll(ctx, opts)
	if err != nil {
		return err
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(w, d)
	}
	return nil
}

func openReader(ctx context.Context, cfg *config) (*mfrc522.Device, func(), error) {
	var dev *mfrc522.Device
	var bus *spi.Transport
	err := accessnode.RetryWithConfig(ctx, accessnode.DefaultRetryConfig(), func() error {
		t, err := spi.New(cfg.rfidPort)
		if err != nil {
			return err
		}
		var opts []mfrc522.Option
		if cfg.rfidReset != "" {
			pin := gpioreg.ByName(cfg.rfidReset)
			if pin == nil {
				_ = t.Close()
				return fmt.Errorf("unknown GPIO %q", cfg.rfidReset)
			}
			opts = append(opts, mfrc522.WithResetPin(pin))
		}
		d, err := mfrc522.New(t, opts...)
		if err == nil {
			err = d.Init(ctx)
		}
		if err == nil {
			_, err = d.Identify()
		}
		if err != nil {
			_ = t.Close()
			return err
		}
		dev, bus = d, t
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize MFRC522 on %s: %w", cfg.rfidPort, err)
	}
	return dev, func() { _ = bus.Close() }, nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.detect {
		opts := detection.DefaultOptions()
		opts.EnableCache = false
		return runDetect(ctx, os.Stdout, &opts)
	}

	dev, closeFn, err := openReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return runCard(ctx, dev, cfg, os.Stdout)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
