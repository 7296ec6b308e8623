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

package mfrc522

// Register is a 6-bit MFRC522 register address.
type Register byte

// Page 0: command and status.
const (
	CommandReg    Register = 0x01
	CommIEnReg    Register = 0x02
	DivIEnReg     Register = 0x03
	CommIrqReg    Register = 0x04
	DivIrqReg     Register = 0x05
	ErrorReg      Register = 0x06
	Status1Reg    Register = 0x07
	Status2Reg    Register = 0x08
	FIFODataReg   Register = 0x09
	FIFOLevelReg  Register = 0x0A
	WaterLevelReg Register = 0x0B
	ControlReg    Register = 0x0C
	BitFramingReg Register = 0x0D
	CollReg       Register = 0x0E
)

// Page 1: command configuration.
const (
	ModeReg      Register = 0x11
	TxModeReg    Register = 0x12
	RxModeReg    Register = 0x13
	TxControlReg Register = 0x14
	TxASKReg     Register = 0x15
	TxSelReg     Register = 0x16
	RxSelReg     Register = 0x17
	RxThreshold  Register = 0x18
	DemodReg     Register = 0x19
)

// Page 2: configuration.
const (
	CRCResultRegH Register = 0x21
	CRCResultRegL Register = 0x22
	RFCfgReg      Register = 0x26
	TModeReg      Register = 0x2A
	TPrescalerReg Register = 0x2B
	TReloadRegH   Register = 0x2C
	TReloadRegL   Register = 0x2D
)

// Page 3: test registers.
const (
	VersionReg Register = 0x37
)

// Command is a PCD command written to CommandReg.
type Command byte

const (
	CmdIdle       Command = 0x00
	CmdMem        Command = 0x01
	CmdCalcCRC    Command = 0x03
	CmdTransmit   Command = 0x04
	CmdReceive    Command = 0x08
	CmdTransceive Command = 0x0C
	CmdAuthent    Command = 0x0E
	CmdSoftReset  Command = 0x0F
)

func (c Command) String() string {
	switch c {
	case CmdIdle:
		return "Idle"
	case CmdMem:
		return "Mem"
	case CmdCalcCRC:
		return "CalcCRC"
	case CmdTransmit:
		return "Transmit"
	case CmdReceive:
		return "Receive"
	case CmdTransceive:
		return "Transceive"
	case CmdAuthent:
		return "MFAuthent"
	case CmdSoftReset:
		return "SoftReset"
	default:
		return "Command(0x" + hexByte(byte(c)) + ")"
	}
}

// PICC commands sent to the card.
const (
	PICCReqIdle  = 0x26
	PICCReqAll   = 0x52
	PICCAntiColl = 0x93
	PICCSelect   = 0x93
	PICCAuthKeyA = 0x60
	PICCAuthKeyB = 0x61
	PICCRead     = 0x30
	PICCWrite    = 0xA0
	PICCHalt     = 0x50
)

// Interrupt and status bits.
const (
	irqSet1   = 0x80
	irqTx     = 0x40
	irqRx     = 0x20
	irqIdle   = 0x10
	irqErr    = 0x02
	irqTimer  = 0x01
	divIrqCRC = 0x04
	fifoFlush = 0x80
	startSend = 0x80
	lastBits  = 0x07
	crypto1On = 0x08
	antennaTx = 0x03

	errBufferOvfl = 0x10
	errColl       = 0x08
	errCRC        = 0x04
	errProtocol   = 0x01
	errMask       = errBufferOvfl | errColl | errCRC | errProtocol
)

// Protocol sizes.
const (
	UIDSize   = 4
	BlockSize = 16
	KeySize   = 6

	// maxResponse is the largest frame the card sends: a block plus CRC.
	maxResponse = BlockSize + 2
)

// Known VersionReg values.
var knownVersions = map[byte]string{
	0x88: "FM17522",
	0x90: "MFRC522 v0.0",
	0x91: "MFRC522 v1.0",
	0x92: "MFRC522 v2.0",
	0xB2: "FM17522 clone",
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
