// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package frame implements the over-the-air frame formats of the cognitive-radio MAC: an 802.11-like
// 24-byte header, a fixed-size body per frame kind and a 4-byte frame-check trailer. All fields are
// little-endian.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/crmac/crmac-ns/types"
)

const (
	HeaderSize = 24
	FcsSize    = 4

	BeaconBodySize       = 1
	BulkRequestBodySize  = 5
	BulkResponseBodySize = 2
	BulkAckBodySize      = 10

	// MaxDuration is the largest value of the 15-bit duration fields (us).
	MaxDuration = 0x7fff
)

type FrameType = uint16

const (
	FrameTypeMgt  FrameType = 0
	FrameTypeCtl  FrameType = 1
	FrameTypeData FrameType = 2
)

const (
	SubtypeBeacon           uint16 = 8
	SubtypeDetectionRequest uint16 = 1
	SubtypeBulkRequest      uint16 = 2
	SubtypeBulkResponse     uint16 = 3
	SubtypeBulkAck          uint16 = 4
	SubtypeData             uint16 = 0
)

// Kind is the (type, subtype) combination of a frame known to the MAC.
type Kind int

const (
	KindUnknown Kind = iota
	KindBeacon
	KindDetectionRequest
	KindBulkRequest
	KindBulkResponse
	KindBulkAck
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindBeacon:
		return "Beacon"
	case KindDetectionRequest:
		return "DetReq"
	case KindBulkRequest:
		return "BulkReq"
	case KindBulkResponse:
		return "BulkRsp"
	case KindBulkAck:
		return "BulkAck"
	case KindData:
		return "Data"
	default:
		return "Unknown"
	}
}

// BodySize returns the fixed body size of the frame kind; data frames carry a variable payload instead.
func (k Kind) BodySize() int {
	switch k {
	case KindBeacon:
		return BeaconBodySize
	case KindBulkRequest:
		return BulkRequestBodySize
	case KindBulkResponse:
		return BulkResponseBodySize
	case KindBulkAck:
		return BulkAckBodySize
	default:
		return 0
	}
}

// Size returns the total on-air size of a frame of kind k with the given payload length.
func Size(k Kind, payloadLen int) int {
	if k == KindData {
		return HeaderSize + payloadLen + FcsSize
	}
	return HeaderSize + k.BodySize() + FcsSize
}

type FrameControl uint16

// NewFrameControl creates the frame control field for the given frame kind.
func NewFrameControl(k Kind) FrameControl {
	var tp, st uint16
	switch k {
	case KindBeacon:
		tp, st = FrameTypeMgt, SubtypeBeacon
	case KindDetectionRequest:
		tp, st = FrameTypeCtl, SubtypeDetectionRequest
	case KindBulkRequest:
		tp, st = FrameTypeCtl, SubtypeBulkRequest
	case KindBulkResponse:
		tp, st = FrameTypeCtl, SubtypeBulkResponse
	case KindBulkAck:
		tp, st = FrameTypeCtl, SubtypeBulkAck
	case KindData:
		tp, st = FrameTypeData, SubtypeData
	default:
		return 0
	}
	return FrameControl(tp<<2 | st<<4)
}

func (fc FrameControl) String() string {
	return fmt.Sprintf("0x%04x", uint16(fc))
}

func (fc FrameControl) Type() FrameType {
	return FrameType((fc & 0x000c) >> 2)
}

func (fc FrameControl) Subtype() uint16 {
	return uint16((fc & 0x00f0) >> 4)
}

func (fc FrameControl) ToDs() bool {
	return (fc & 0x0100) != 0
}

func (fc FrameControl) FromDs() bool {
	return (fc & 0x0200) != 0
}

func (fc FrameControl) MoreFragments() bool {
	return (fc & 0x0400) != 0
}

func (fc FrameControl) Retry() bool {
	return (fc & 0x0800) != 0
}

func (fc FrameControl) setFlag(mask FrameControl, v bool) FrameControl {
	if v {
		return fc | mask
	}
	return fc &^ mask
}

func (fc FrameControl) WithToDs(v bool) FrameControl {
	return fc.setFlag(0x0100, v)
}

func (fc FrameControl) WithFromDs(v bool) FrameControl {
	return fc.setFlag(0x0200, v)
}

func (fc FrameControl) WithMoreFragments(v bool) FrameControl {
	return fc.setFlag(0x0400, v)
}

func (fc FrameControl) WithRetry(v bool) FrameControl {
	return fc.setFlag(0x0800, v)
}

// Kind returns the frame kind encoded in the type and subtype fields.
func (fc FrameControl) Kind() Kind {
	switch fc.Type() {
	case FrameTypeMgt:
		if fc.Subtype() == SubtypeBeacon {
			return KindBeacon
		}
	case FrameTypeCtl:
		switch fc.Subtype() {
		case SubtypeDetectionRequest:
			return KindDetectionRequest
		case SubtypeBulkRequest:
			return KindBulkRequest
		case SubtypeBulkResponse:
			return KindBulkResponse
		case SubtypeBulkAck:
			return KindBulkAck
		}
	case FrameTypeData:
		if fc.Subtype() == SubtypeData {
			return KindData
		}
	}
	return KindUnknown
}

// IsMgtOrData returns true for frames whose duration field sets the NAV of overhearing stations.
func (fc FrameControl) IsMgtOrData() bool {
	tp := fc.Type()
	return tp == FrameTypeMgt || tp == FrameTypeData
}

// SequenceControl holds the fragment number (low 4 bits) and the 12-bit sequence number.
type SequenceControl uint16

const SequenceModulo = 4096

func NewSequenceControl(seq uint16, frag uint8) SequenceControl {
	return SequenceControl((seq%SequenceModulo)<<4 | uint16(frag&0x0f))
}

func (sc SequenceControl) Sequence() uint16 {
	return uint16(sc) >> 4
}

func (sc SequenceControl) Fragment() uint8 {
	return uint8(sc & 0x0f)
}

func (sc SequenceControl) String() string {
	return fmt.Sprintf("%d/%d", sc.Sequence(), sc.Fragment())
}

// SequenceDistance returns (seq - start) modulo the sequence space.
func SequenceDistance(start, seq uint16) uint16 {
	return (seq + SequenceModulo - start%SequenceModulo) % SequenceModulo
}

// Header is the common MAC header. Addr1 is the receiver, Addr2 the transmitter and Addr3 the
// originating station.
type Header struct {
	FrameControl FrameControl
	Duration     uint16
	Addr1        types.Address
	Addr2        types.Address
	Addr3        types.Address
	SeqCtrl      SequenceControl
}

func (h *Header) Kind() Kind {
	return h.FrameControl.Kind()
}

func (h *Header) SetDuration(d uint64) {
	if d > MaxDuration {
		d = MaxDuration
	}
	h.Duration = uint16(d)
}

func (h *Header) encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(h.FrameControl))
	binary.LittleEndian.PutUint16(b[2:4], h.Duration&MaxDuration)
	a1, a2, a3 := h.Addr1.Bytes(), h.Addr2.Bytes(), h.Addr3.Bytes()
	copy(b[4:10], a1[:])
	copy(b[10:16], a2[:])
	copy(b[16:22], a3[:])
	binary.LittleEndian.PutUint16(b[22:24], uint16(h.SeqCtrl))
}

func (h *Header) decode(b []byte) {
	h.FrameControl = FrameControl(binary.LittleEndian.Uint16(b[0:2]))
	h.Duration = binary.LittleEndian.Uint16(b[2:4]) & MaxDuration
	h.Addr1 = types.AddressFromBytes(b[4:10])
	h.Addr2 = types.AddressFromBytes(b[10:16])
	h.Addr3 = types.AddressFromBytes(b[16:22])
	h.SeqCtrl = SequenceControl(binary.LittleEndian.Uint16(b[22:24]))
}

// Beacon carries the channel the sender operates on (or is about to switch to).
type Beacon struct {
	Channel uint8
}

// BulkRequest reserves a burst window of TxDuration us for Count frames starting at StartSeqCtrl.
type BulkRequest struct {
	TxDuration   uint16
	StartSeqCtrl SequenceControl
	Count        uint8
}

// BulkResponse grants (and possibly bounds) the requested burst window.
type BulkResponse struct {
	TxDuration uint16
}

// BulkAck reports the frames received in a burst: bit i of Bitmap is sequence StartSeqCtrl+i.
type BulkAck struct {
	StartSeqCtrl SequenceControl
	Bitmap       uint64
}

// Frame is a decoded MAC frame. Exactly one of the body fields is set, matching the header kind;
// a detection request has no body.
type Frame struct {
	Header
	Beacon       *Beacon
	BulkRequest  *BulkRequest
	BulkResponse *BulkResponse
	BulkAck      *BulkAck
	Payload      []byte
}

func (f *Frame) Size() int {
	return Size(f.Kind(), len(f.Payload))
}

func (f *Frame) String() string {
	s := fmt.Sprintf("%s,FC:%s,Dur:%d,Dst:%s,Src:%s", f.Kind(), f.FrameControl, f.Duration, f.Addr1, f.Addr2)
	switch f.Kind() {
	case KindBeacon:
		s += fmt.Sprintf(",Ch:%d", f.Beacon.Channel)
	case KindBulkRequest:
		s += fmt.Sprintf(",TxDur:%d,Seq:%s,Cnt:%d", f.BulkRequest.TxDuration, f.BulkRequest.StartSeqCtrl,
			f.BulkRequest.Count)
	case KindBulkResponse:
		s += fmt.Sprintf(",TxDur:%d", f.BulkResponse.TxDuration)
	case KindBulkAck:
		s += fmt.Sprintf(",Seq:%s,Bitmap:%016x", f.BulkAck.StartSeqCtrl, f.BulkAck.Bitmap)
	case KindData:
		s += fmt.Sprintf(",Seq:%s,Len:%d", f.SeqCtrl, len(f.Payload))
	}
	return s
}

func newFrame(k Kind, dst, src types.Address) *Frame {
	return &Frame{
		Header: Header{
			FrameControl: NewFrameControl(k),
			Addr1:        dst,
			Addr2:        src,
			Addr3:        src,
		},
	}
}

func NewBeacon(src types.Address, ch types.ChannelId) *Frame {
	f := newFrame(KindBeacon, types.BroadcastAddress, src)
	f.Beacon = &Beacon{Channel: uint8(ch)}
	return f
}

func NewDetectionRequest(src types.Address) *Frame {
	return newFrame(KindDetectionRequest, types.BroadcastAddress, src)
}

func NewBulkRequest(dst, src types.Address, txDuration uint64, start SequenceControl, count int) *Frame {
	f := newFrame(KindBulkRequest, dst, src)
	if txDuration > MaxDuration {
		txDuration = MaxDuration
	}
	if count > 0xff {
		count = 0xff
	}
	f.BulkRequest = &BulkRequest{TxDuration: uint16(txDuration), StartSeqCtrl: start, Count: uint8(count)}
	return f
}

func NewBulkResponse(dst, src types.Address, txDuration uint64) *Frame {
	f := newFrame(KindBulkResponse, dst, src)
	if txDuration > MaxDuration {
		txDuration = MaxDuration
	}
	f.BulkResponse = &BulkResponse{TxDuration: uint16(txDuration)}
	return f
}

func NewBulkAck(dst, src types.Address, start SequenceControl, bitmap uint64) *Frame {
	f := newFrame(KindBulkAck, dst, src)
	f.BulkAck = &BulkAck{StartSeqCtrl: start, Bitmap: bitmap}
	return f
}

func NewData(dst, src, origin types.Address, seq SequenceControl, payload []byte) *Frame {
	f := newFrame(KindData, dst, src)
	f.Addr3 = origin
	f.SeqCtrl = seq
	f.Payload = payload
	return f
}

// Encode serializes the frame, including a zeroed frame-check trailer.
func (f *Frame) Encode() []byte {
	k := f.Kind()
	b := make([]byte, f.Size())
	f.Header.encode(b)
	body := b[HeaderSize : len(b)-FcsSize]
	switch k {
	case KindBeacon:
		body[0] = f.Beacon.Channel
	case KindBulkRequest:
		binary.LittleEndian.PutUint16(body[0:2], f.BulkRequest.TxDuration&MaxDuration)
		binary.LittleEndian.PutUint16(body[2:4], uint16(f.BulkRequest.StartSeqCtrl))
		body[4] = f.BulkRequest.Count
	case KindBulkResponse:
		binary.LittleEndian.PutUint16(body[0:2], f.BulkResponse.TxDuration&MaxDuration)
	case KindBulkAck:
		binary.LittleEndian.PutUint16(body[0:2], uint16(f.BulkAck.StartSeqCtrl))
		binary.LittleEndian.PutUint64(body[2:10], f.BulkAck.Bitmap)
	case KindData:
		copy(body, f.Payload)
	}
	return b
}

// Decode parses an encoded frame.
func Decode(b []byte) (*Frame, error) {
	if len(b) < HeaderSize+FcsSize {
		return nil, errors.Errorf("frame too short: %d bytes", len(b))
	}
	f := &Frame{}
	f.Header.decode(b)
	k := f.Kind()
	if k == KindUnknown {
		return nil, errors.Errorf("unknown frame type %d subtype %d", f.FrameControl.Type(), f.FrameControl.Subtype())
	}
	body := b[HeaderSize : len(b)-FcsSize]
	if k != KindData && len(body) != k.BodySize() {
		return nil, errors.Errorf("%s frame body has %d bytes, expected %d", k, len(body), k.BodySize())
	}

	switch k {
	case KindBeacon:
		f.Beacon = &Beacon{Channel: body[0]}
	case KindBulkRequest:
		f.BulkRequest = &BulkRequest{
			TxDuration:   binary.LittleEndian.Uint16(body[0:2]) & MaxDuration,
			StartSeqCtrl: SequenceControl(binary.LittleEndian.Uint16(body[2:4])),
			Count:        body[4],
		}
	case KindBulkResponse:
		f.BulkResponse = &BulkResponse{TxDuration: binary.LittleEndian.Uint16(body[0:2]) & MaxDuration}
	case KindBulkAck:
		f.BulkAck = &BulkAck{
			StartSeqCtrl: SequenceControl(binary.LittleEndian.Uint16(body[0:2])),
			Bitmap:       binary.LittleEndian.Uint64(body[2:10]),
		}
	case KindData:
		f.Payload = append([]byte(nil), body...)
	}
	return f, nil
}
