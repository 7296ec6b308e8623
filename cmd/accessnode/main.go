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

// Command accessnode runs an access-control node: it polls an MFRC522
// card reader and broadcasts every new card UID, plus a periodic alive
// message, as UDP datagrams through an ENC28J60 Ethernet controller.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/go-accessnode"
	"github.com/ZaparooProject/go-accessnode/announce"
	"github.com/ZaparooProject/go-accessnode/enc28j60"
	"github.com/ZaparooProject/go-accessnode/mfrc522"
	"github.com/ZaparooProject/go-accessnode/polling"
	"github.com/ZaparooProject/go-accessnode/transport/spi"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

const defaultMAC = "02:ac:ce:55:00:01"

type config struct {
	ethPort     string
	rfidPort    string
	rfidReset   string
	console     string
	logDir      string
	mac         [6]byte
	ip          [4]byte
	speed       physic.Frequency
	port        uint16
	consoleBaud int
	debug       bool
	selectHalt  bool
}

// Package-level flag variables
var (
	flagEthPort     string
	flagRFIDPort    string
	flagRFIDReset   string
	flagMAC         string
	flagIP          string
	flagPort        uint
	flagSpeed       uint
	flagConsole     string
	flagConsoleBaud int
	flagDebug       bool
	flagLogDir      string
	flagSelect      bool
)

func init() {
	flag.StringVar(&flagEthPort, "eth", "SPI0.0", "SPI port of the ENC28J60")
	flag.StringVar(&flagRFIDPort, "rfid", "SPI0.1", "SPI port of the MFRC522")
	flag.StringVar(&flagRFIDReset, "rfid-reset", "", "GPIO driving the MFRC522 NRSTPD pin (e.g. GPIO25)")
	flag.StringVar(&flagMAC, "mac", defaultMAC, "Ethernet hardware address")
	flag.StringVar(&flagIP, "ip", "0.0.0.0", "IPv4 source address of announcements")
	flag.UintVar(&flagPort, "port", announce.DefaultPort, "UDP port announcements are sent to")
	flag.UintVar(&flagSpeed, "speed", accessnode.DefaultSPISpeed, "SPI clock in Hz")
	flag.StringVar(&flagConsole, "console", "", "Serial port mirroring diagnostics (e.g. /dev/ttyAMA0)")
	flag.IntVar(&flagConsoleBaud, "console-baud", 115200, "Baud rate of the diagnostic console")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.StringVar(&flagLogDir, "log", "", "Directory for a session log file")
	flag.BoolVar(&flagSelect, "select", false, "Select and halt each card after reading its UID")
}

func parseConfig() (*config, error) {
	cfg := &config{
		ethPort:     flagEthPort,
		rfidPort:    flagRFIDPort,
		rfidReset:   flagRFIDReset,
		console:     flagConsole,
		consoleBaud: flagConsoleBaud,
		logDir:      flagLogDir,
		speed:       physic.Frequency(flagSpeed) * physic.Hertz,
		debug:       flagDebug,
		selectHalt:  flagSelect,
	}

	mac, err := parseMAC(flagMAC)
	if err != nil {
		return nil, err
	}
	cfg.mac = mac

	ip, err := parseIPv4(flagIP)
	if err != nil {
		return nil, err
	}
	cfg.ip = ip

	if flagPort == 0 || flagPort > 0xFFFF {
		return nil, fmt.Errorf("invalid UDP port %d", flagPort)
	}
	cfg.port = uint16(flagPort)

	if cfg.debug {
		accessnode.SetDebugEnabled(true)
	}
	return cfg, nil
}

func parseMAC(s string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return mac, fmt.Errorf("invalid MAC address: %w", err)
	}
	if len(hw) != len(mac) {
		return mac, fmt.Errorf("invalid MAC address %q: want 6 bytes, got %d", s, len(hw))
	}
	if hw[0]&0x01 != 0 {
		return mac, fmt.Errorf("invalid MAC address %q: multicast bit set", s)
	}
	copy(mac[:], hw)
	return mac, nil
}

func parseIPv4(s string) ([4]byte, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return [4]byte{}, fmt.Errorf("invalid IP address: %w", err)
	}
	if !addr.Is4() {
		return [4]byte{}, fmt.Errorf("invalid IP address %q: not IPv4", s)
	}
	return addr.As4(), nil
}

// openConsole mirrors debug output to a serial port.
func openConsole(cfg *config) (func(), error) {
	if cfg.console == "" {
		return func() {}, nil
	}
	port, err := serial.Open(cfg.console, &serial.Mode{BaudRate: cfg.consoleBaud})
	if err != nil {
		return nil, fmt.Errorf("failed to open console %s: %w", cfg.console, err)
	}
	accessnode.SetDebugWriter(port)
	return func() {
		accessnode.SetDebugWriter(nil)
		_ = port.Close()
	}, nil
}

func connectEthernet(ctx context.Context, cfg *config) (*enc28j60.Device, *spi.Transport, error) {
	var (
		dev *enc28j60.Device
		bus *spi.Transport
	)
	err := accessnode.RetryWithConfig(ctx, accessnode.DefaultRetryConfig(), func() error {
		t, err := spi.New(cfg.ethPort, spi.WithSpeed(cfg.speed))
		if err != nil {
			return err
		}
		d, err := enc28j60.New(t)
		if err == nil {
			_, err = d.Identify()
		}
		if err == nil {
			err = d.Init(cfg.mac)
		}
		if err != nil {
			_ = t.Close()
			return err
		}
		dev, bus = d, t
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize ENC28J60 on %s: %w", cfg.ethPort, err)
	}

	mac := dev.MAC()
	accessnode.Debugf("MAC = %s", net.HardwareAddr(mac[:]))
	if id, err := dev.PHYID(); err == nil {
		accessnode.Debugf("ID1 = 0x%04X", id>>16)
		accessnode.Debugf("ID2 = 0x%04X", id&0xFFFF)
	}
	if rev, err := dev.Revision(); err == nil {
		accessnode.Debugf("REV = 0x%02X", rev)
	}
	return dev, bus, nil
}

// readerHandle keeps the reader's transport so it can be closed with it.
type readerHandle struct {
	*mfrc522.Device
	bus *spi.Transport
}

func (r *readerHandle) Close() error {
	return r.bus.Close()
}

func connectReader(ctx context.Context, cfg *config) (*readerHandle, error) {
	var opts []mfrc522.Option
	if cfg.rfidReset != "" {
		// The periph host drivers are already loaded by connectEthernet.
		pin := gpioreg.ByName(cfg.rfidReset)
		if pin == nil {
			return nil, fmt.Errorf("unknown GPIO %q", cfg.rfidReset)
		}
		opts = append(opts, mfrc522.WithResetPin(pin))
	}

	var reader *readerHandle
	err := accessnode.RetryWithConfig(ctx, accessnode.DefaultRetryConfig(), func() error {
		t, err := spi.New(cfg.rfidPort, spi.WithSpeed(cfg.speed))
		if err != nil {
			return err
		}
		d, err := mfrc522.New(t, opts...)
		if err == nil {
			err = d.Init(ctx)
		}
		if err == nil {
			// Init releases the reset pin, so the chip can only answer now.
			_, err = d.Identify()
		}
		if err != nil {
			_ = t.Close()
			return err
		}
		reader = &readerHandle{Device: d, bus: t}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MFRC522 on %s: %w", cfg.rfidPort, err)
	}

	if v, err := reader.Version(); err == nil {
		accessnode.Debugf("MFRC522 version 0x%02X (%s)", v, mfrc522.VersionName(v))
	}
	return reader, nil
}

func run(ctx context.Context, cfg *config) error {
	closeConsole, err := openConsole(cfg)
	if err != nil {
		return err
	}
	defer closeConsole()

	if cfg.logDir != "" {
		path, err := accessnode.InitSessionLog(cfg.logDir)
		if err != nil {
			return err
		}
		defer func() { _ = accessnode.CloseSessionLog() }()
		_, _ = fmt.Printf("Session log: %s\n", path)
	}

	dev, ethBus, err := connectEthernet(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ethBus.Close() }()

	reader, err := connectReader(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	eth := enc28j60.NewInterface(dev)
	node := newAnnouncer(eth, cfg.mac, cfg.ip, cfg.port)
	eth.RecvEthHandle(peerHandler(node.reader, cfg.port))

	scanCfg := polling.DefaultConfig()
	scanCfg.SelectAndHalt = cfg.selectHalt
	scanner := polling.NewScanner(reader, scanCfg)
	scanner.OnCard = func(uid [4]byte) error {
		_, _ = fmt.Printf("Card ID: % X\n", uid[:])
		return node.Card(uid)
	}
	scanner.OnAlive = node.Alive

	reopen := func(ctx context.Context) (polling.CardReader, error) {
		r, err := connectReader(ctx, cfg)
		if err != nil {
			return nil, err
		}
		reader = r
		return r, nil
	}
	scanner.SetRecoverer(polling.NewDefaultRecoverer(
		reader, reopen,
		scanCfg.SleepRecovery.RecoveryBackoff,
		scanCfg.SleepRecovery.MaxRecoveryAttempts,
	))

	_, _ = fmt.Printf("Reader %s announcing on UDP port %d\n", node.reader, cfg.port)
	if err := node.Alive(); err != nil {
		accessnode.Debugf("initial alive: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scanner.Run(gctx) })
	g.Go(func() error { return receiveLoop(gctx, eth) })
	err = g.Wait()

	stats, m := eth.Stats(), scanner.Metrics()
	accessnode.Debugf("tx %d frames (%d errors), rx %d frames (%d discarded)",
		stats.TxFrames, stats.TxErrors, stats.RxFrames, stats.RxDiscarded)
	accessnode.Debugf("%d cycles, %d cards, %d alive, %d bus errors, %d recoveries",
		m.Cycles, m.CardsReported, m.AliveSent, m.BusErrors, m.Recoveries)
	return err
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

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
