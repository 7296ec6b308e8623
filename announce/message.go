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

// Package announce encodes the reader's broadcast messages and wraps them
// in Ethernet, IPv4 and UDP headers ready for the Ethernet controller.
//
// Every message is 8 bytes: the three byte reader ID, a type byte and a
// four byte payload. Alive messages carry FF FF FF FF; card messages carry
// the card UID.
package announce

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Kind is the message type byte.
type Kind byte

const (
	KindAlive Kind = 0x00
	KindCard  Kind = 0x01
)

func (k Kind) String() string {
	switch k {
	case KindAlive:
		return "alive"
	case KindCard:
		return "card"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Wire layout.
const (
	MessageSize = 8
	DefaultPort = 12345
)

var (
	ErrMessageSize = errors.New("announce: message must be 8 bytes")
	ErrUnknownKind = errors.New("announce: unknown message type")
)

// alivePayload marks an alive message.
var alivePayload = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// ReaderID identifies a reader on the network.
type ReaderID [3]byte

// ReaderIDFromMAC takes the last three bytes of mac, the part that is unique
// per board.
func ReaderIDFromMAC(mac [6]byte) ReaderID {
	return ReaderID{mac[3], mac[4], mac[5]}
}

func (id ReaderID) String() string {
	return hex.EncodeToString(id[:])
}

// Message is one announcement.
type Message struct {
	Payload [4]byte
	Reader  ReaderID
	Kind    Kind
}

// Alive returns the periodic liveness message for reader.
func Alive(reader ReaderID) Message {
	return Message{Reader: reader, Kind: KindAlive, Payload: alivePayload}
}

// Card returns the message reporting uid.
func Card(reader ReaderID, uid [4]byte) Message {
	return Message{Reader: reader, Kind: KindCard, Payload: uid}
}

// AppendBinary appends the 8-byte wire form of m to b.
func (m Message) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, m.Reader[:]...)
	b = append(b, byte(m.Kind))
	return append(b, m.Payload[:]...), nil
}

// MarshalBinary returns the 8-byte wire form of m.
func (m Message) MarshalBinary() ([]byte, error) {
	return m.AppendBinary(make([]byte, 0, MessageSize))
}

// UnmarshalBinary parses the wire form into m.
func (m *Message) UnmarshalBinary(b []byte) error {
	msg, err := Parse(b)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// Parse decodes an 8-byte message. An alive message whose payload is not
// all ones is rejected the same as an unknown type.
func Parse(b []byte) (Message, error) {
	if len(b) != MessageSize {
		return Message{}, fmt.Errorf("%w: got %d", ErrMessageSize, len(b))
	}
	var m Message
	copy(m.Reader[:], b[0:3])
	m.Kind = Kind(b[3])
	copy(m.Payload[:], b[4:8])
	switch {
	case m.Kind == KindAlive && m.Payload == alivePayload:
	case m.Kind == KindCard:
	default:
		return m, fmt.Errorf("%w: %d", ErrUnknownKind, b[3])
	}
	return m, nil
}

// UID returns the card UID of a card message.
func (m Message) UID() ([4]byte, bool) {
	return m.Payload, m.Kind == KindCard
}

// String formats m the way the listener prints it.
func (m Message) String() string {
	switch m.Kind {
	case KindAlive:
		return m.Reader.String() + " Alive"
	case KindCard:
		return m.Reader.String() + " Card ID: " + hex.EncodeToString(m.Payload[:])
	default:
		return fmt.Sprintf("%s Unknown type: %d", m.Reader, byte(m.Kind))
	}
}
