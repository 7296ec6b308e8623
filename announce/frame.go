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

package announce

import (
	"errors"
	"fmt"

	"github.com/soypat/lneto"
	"github.com/soypat/lneto/ethernet"
	"github.com/soypat/lneto/ipv4"
	"github.com/soypat/lneto/udp"
)

// Header sizes of a broadcast announcement.
const (
	ethHeaderSize  = 14
	ipv4HeaderSize = 20
	udpHeaderSize  = 8

	// FrameSize is the length of a built frame before the controller pads
	// it to the Ethernet minimum.
	FrameSize = ethHeaderSize + ipv4HeaderSize + udpHeaderSize + MessageSize

	defaultTTL = 64
)

// ErrNotAnnouncement is returned by Decode for frames that are not UDP
// datagrams to the announcement port.
var ErrNotAnnouncement = errors.New("announce: not an announcement frame")

// FrameBuilder wraps messages in broadcast Ethernet, IPv4 and UDP headers.
// A zero SrcIP is sent as 0.0.0.0, as a node without an address does.
type FrameBuilder struct {
	SrcMAC   [6]byte
	SrcIP    [4]byte
	SrcPort  uint16
	DstPort  uint16
	TTL      uint8
	Checksum bool
	id       uint16
}

// NewFrameBuilder returns a builder sending from mac and ip to the default
// port.
func NewFrameBuilder(mac [6]byte, ip [4]byte) *FrameBuilder {
	return &FrameBuilder{
		SrcMAC:  mac,
		SrcIP:   ip,
		SrcPort: DefaultPort,
		DstPort: DefaultPort,
		TTL:     defaultTTL,
	}
}

// Build returns a complete frame carrying m. Each call uses the next IPv4
// identification value.
func (fb *FrameBuilder) Build(m Message) ([]byte, error) {
	return fb.AppendFrame(make([]byte, 0, FrameSize), m)
}

// AppendFrame appends the frame carrying m to dst.
func (fb *FrameBuilder) AppendFrame(dst []byte, m Message) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, FrameSize)...)
	buf := dst[start:]

	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return nil, err
	}
	*efrm.DestinationHardwareAddr() = ethernet.BroadcastAddr()
	*efrm.SourceHardwareAddr() = fb.SrcMAC
	efrm.SetEtherType(ethernet.TypeIPv4)

	ifrm, err := ipv4.NewFrame(buf[ethHeaderSize:])
	if err != nil {
		return nil, err
	}
	ttl := fb.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	fb.id++
	ifrm.SetVersionAndIHL(4, ipv4HeaderSize/4)
	ifrm.SetToS(0)
	ifrm.SetTotalLength(ipv4HeaderSize + udpHeaderSize + MessageSize)
	ifrm.SetID(fb.id)
	ifrm.SetFlags(ipv4.FlagDontFragment)
	ifrm.SetTTL(ttl)
	ifrm.SetProtocol(lneto.IPProtoUDP)
	*ifrm.SourceAddr() = fb.SrcIP
	*ifrm.DestinationAddr() = [4]byte{255, 255, 255, 255}
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	ufrm, err := udp.NewFrame(buf[ethHeaderSize+ipv4HeaderSize:])
	if err != nil {
		return nil, err
	}
	ufrm.SetSourcePort(fb.SrcPort)
	ufrm.SetDestinationPort(fb.DstPort)
	ufrm.SetLength(udpHeaderSize + MessageSize)
	ufrm.SetCRC(0)
	if _, err := m.AppendBinary(ufrm.Payload()[:0]); err != nil {
		return nil, err
	}
	if fb.Checksum {
		ufrm.SetCRC(udpChecksum(ifrm, ufrm))
	}
	return dst, nil
}

// udpChecksum computes the RFC 768 checksum over the pseudo header and the
// datagram. Zero means "no checksum" on the wire so it is sent as all ones.
func udpChecksum(ifrm ipv4.Frame, ufrm udp.Frame) uint16 {
	var crc lneto.CRC791
	crc.Write(ifrm.SourceAddr()[:])
	crc.Write(ifrm.DestinationAddr()[:])
	crc.AddUint16(uint16(lneto.IPProtoUDP))
	crc.AddUint16(ufrm.Length())
	crc.Write(ufrm.RawData()[:ufrm.Length()])
	sum := crc.Sum16()
	if sum == 0 {
		return 0xFFFF
	}
	return sum
}

// Decode extracts the message from a received frame. It checks the IPv4
// header checksum and the destination port but not the UDP checksum.
func Decode(frame []byte, port uint16) (Message, error) {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrNotAnnouncement, err)
	}
	if efrm.EtherTypeOrSize() != ethernet.TypeIPv4 {
		return Message{}, fmt.Errorf("%w: ethertype 0x%04X", ErrNotAnnouncement, uint16(efrm.EtherTypeOrSize()))
	}
	ifrm, err := ipv4.NewFrame(frame[ethHeaderSize:])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrNotAnnouncement, err)
	}
	hl, total := ifrm.HeaderLength(), int(ifrm.TotalLength())
	if hl < ipv4HeaderSize || total < hl || total > len(frame)-ethHeaderSize {
		return Message{}, fmt.Errorf("%w: bad IPv4 lengths (header %d, total %d)", ErrNotAnnouncement, hl, total)
	}
	if ifrm.Protocol() != lneto.IPProtoUDP {
		return Message{}, fmt.Errorf("%w: protocol %d", ErrNotAnnouncement, uint8(ifrm.Protocol()))
	}
	if ifrm.CalculateHeaderCRC() != ifrm.CRC() {
		return Message{}, fmt.Errorf("%w: IPv4 header checksum", ErrNotAnnouncement)
	}
	ufrm, err := udp.NewFrame(frame[ethHeaderSize+hl : ethHeaderSize+total])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrNotAnnouncement, err)
	}
	if ufrm.DestinationPort() != port {
		return Message{}, fmt.Errorf("%w: port %d", ErrNotAnnouncement, ufrm.DestinationPort())
	}
	if int(ufrm.Length()) < udpHeaderSize || int(ufrm.Length()) > len(ufrm.RawData()) {
		return Message{}, fmt.Errorf("%w: bad UDP length", ErrNotAnnouncement)
	}
	return Parse(ufrm.Payload())
}
