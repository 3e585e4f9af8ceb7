// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ComPacket/Packet/SubPacket framing for session traffic. Every payload
// rides inside the fixed three-level envelope with big-endian length
// fields, padded to 4 bytes at the subpacket and to 512 bytes in the
// buffer handed to the transport.

package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/open-source-firmware/go-tcg-storage/pkg/drive"
)

var (
	ErrTooLargeComPacket = errors.New("encountered a too large ComPacket")
	ErrTooLargePacket    = errors.New("encountered a too large Packet")
)

// CommunicationIntf frames and exchanges session payloads. Session traffic
// always rides on SecurityProtocolTCGManagement; callers pass only the
// session, not a protocol number.
//
// NOTE: This is almost io.ReadWriter, but not quite - I couldn't figure out
// a good interface use that wouldn't result in a lot of extra copying.
type CommunicationIntf interface {
	Send(ses *Session, data []byte) error
	Receive(ses *Session) ([]byte, error)
}

// plainCom is the cleartext framing; secure messaging would be a sibling
// implementation of the same interface.
type plainCom struct {
	d  DriveIntf
	hp HostProperties
	tp TPerProperties
}

type comPacketHeader struct {
	_               uint32
	ComID           uint16
	ComIDExt        uint16
	OutstandingData uint32
	MinTransfer     uint32
	Length          uint32
}
type packetHeader struct {
	TSN             uint32
	HSN             uint32
	SeqNumber       uint32
	_               uint16
	AckType         uint16
	Acknowledgement uint32
	Length          uint32
}
type subPacketHeader struct {
	_      [6]byte
	Kind   uint16
	Length uint32
}

// NewPlainCommunication frames session payloads with the negotiated
// properties and no secure messaging.
func NewPlainCommunication(d DriveIntf, hp HostProperties, tp TPerProperties) *plainCom {
	return &plainCom{d, hp, tp}
}

// Send wraps data in the subpacket/packet/ComPacket envelope and delivers
// it with IF-SEND.
//
// "3.3.10.3 Synchronous Communications Restrictions": methods must not
// span ComPackets, so an oversized payload is an error here rather than
// something to fragment. TODO: implement fragmentation.
func (c *plainCom) Send(ses *Session, data []byte) error {
	seq := uint32(0)
	useSeq := c.tp.SequenceNumbers && c.hp.SequenceNumbers
	if useSeq {
		seq = uint32(ses.SeqLastXmit + 1)
	}

	subpkt := &bytes.Buffer{}
	if err := binary.Write(subpkt, binary.BigEndian, &subPacketHeader{
		Kind:   0, // Data
		Length: uint32(len(data)),
	}); err != nil {
		return err
	}
	subpkt.Write(data)
	if pad := len(data) % 4; pad > 0 {
		subpkt.Write(make([]byte, 4-pad))
	}
	if uint(subpkt.Len()) > c.tp.MaxPacketSize {
		return ErrTooLargePacket
	}

	pkt := &bytes.Buffer{}
	if err := binary.Write(pkt, binary.BigEndian, &packetHeader{
		TSN:       uint32(ses.TSN),
		HSN:       uint32(ses.HSN),
		SeqNumber: seq,
		AckType:   0, /* TODO */
		Length:    uint32(subpkt.Len()),
	}); err != nil {
		return err
	}
	pkt.Write(subpkt.Bytes())

	compkt := &bytes.Buffer{}
	if err := binary.Write(compkt, binary.BigEndian, &comPacketHeader{
		ComID:    uint16(ses.ComID & 0xffff),
		ComIDExt: uint16((ses.ComID & 0xffff0000) >> 16),
		Length:   uint32(pkt.Len()),
	}); err != nil {
		return err
	}
	compkt.Write(pkt.Bytes())
	if uint(compkt.Len()) > c.tp.MaxComPacketSize {
		return ErrTooLargeComPacket
	}

	if useSeq {
		ses.SeqLastXmit++
	}
	// Round up to a 512-byte boundary; several drives reject transfers
	// that are not whole blocks.
	compkt.Write(make([]byte, 512-(compkt.Len()%512)))
	return c.d.IFSend(drive.SecurityProtocolTCGManagement, uint16(ses.ComID), compkt.Bytes())
}

// Receive polls with IF-RECV and strips the envelope, returning the
// subpacket payload (empty when the TPer has nothing ready yet).
func (c *plainCom) Receive(ses *Session) ([]byte, error) {
	buf := make([]byte, c.hp.MaxComPacketSize)
	if err := c.d.IFRecv(drive.SecurityProtocolTCGManagement, uint16(ses.ComID), &buf); err != nil {
		return nil, err
	}
	rdr := bytes.NewBuffer(buf)

	compkthdr := comPacketHeader{}
	if err := binary.Read(rdr, binary.BigEndian, &compkthdr); err != nil {
		return nil, err
	}
	if uint(compkthdr.Length) > c.hp.MaxComPacketSize {
		return nil, ErrTooLargeComPacket
	}
	// TODO: Use OutstandingData/MinTransfer to size a follow-up read
	// instead of re-polling blindly.

	pkthdr := packetHeader{}
	if err := binary.Read(rdr, binary.BigEndian, &pkthdr); err != nil {
		return nil, err
	}
	if uint(pkthdr.Length) > c.hp.MaxPacketSize {
		return nil, ErrTooLargePacket
	}
	// TODO: Handle SeqNumber and AckType

	subpkthdr := subPacketHeader{}
	if err := binary.Read(rdr, binary.BigEndian, &subpkthdr); err != nil {
		return nil, err
	}
	if subpkthdr.Kind != 0 {
		return nil, fmt.Errorf("only data subpackets are implemented")
	}
	return rdr.Bytes()[:subpkthdr.Length], nil
}
