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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmac/crmac-ns/types"
)

var (
	addrA = types.NewAddress(1, types.GroupIntra)
	addrB = types.NewAddress(2, types.GroupIntra)
)

func TestFrameControl(t *testing.T) {
	fc := NewFrameControl(KindBulkAck)
	assert.Equal(t, FrameTypeCtl, fc.Type())
	assert.Equal(t, SubtypeBulkAck, fc.Subtype())
	assert.Equal(t, KindBulkAck, fc.Kind())
	assert.False(t, fc.IsMgtOrData())

	fc = NewFrameControl(KindData).WithMoreFragments(true).WithRetry(true)
	assert.True(t, fc.MoreFragments())
	assert.True(t, fc.Retry())
	assert.False(t, fc.ToDs())
	assert.False(t, fc.FromDs())
	assert.Equal(t, KindData, fc.Kind())
	assert.True(t, fc.IsMgtOrData())
	fc = fc.WithMoreFragments(false).WithFromDs(true)
	assert.False(t, fc.MoreFragments())
	assert.True(t, fc.FromDs())

	assert.True(t, NewFrameControl(KindBeacon).IsMgtOrData())
	assert.Equal(t, KindUnknown, FrameControl(0x00f4).Kind())
}

func TestSequenceControl(t *testing.T) {
	sc := NewSequenceControl(4097, 3)
	assert.Equal(t, uint16(1), sc.Sequence())
	assert.Equal(t, uint8(3), sc.Fragment())
	assert.Equal(t, uint16(2), SequenceDistance(4095, 1))
	assert.Equal(t, uint16(0), SequenceDistance(10, 10))
}

func TestSizes(t *testing.T) {
	assert.Equal(t, 29, NewBeacon(addrA, 2).Size())
	assert.Equal(t, 28, NewDetectionRequest(addrA).Size())
	assert.Equal(t, 33, NewBulkRequest(addrB, addrA, 100, 0, 1).Size())
	assert.Equal(t, 30, NewBulkResponse(addrA, addrB, 100).Size())
	assert.Equal(t, 38, NewBulkAck(addrA, addrB, 0, 0).Size())
	assert.Equal(t, 128, NewData(addrB, addrA, addrA, 0, make([]byte, 100)).Size())
}

func TestEncodeLayout(t *testing.T) {
	f := NewBulkRequest(addrB, addrA, 0x1234, NewSequenceControl(10, 0), 2)
	f.SetDuration(0x0102)
	b := f.Encode()
	require.Len(t, b, 33)
	assert.Equal(t, []byte{0x24, 0x00}, b[0:2])
	assert.Equal(t, []byte{0x02, 0x01}, b[2:4])
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 0x02, 0x00}, b[4:10])
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}, b[10:16])
	assert.Equal(t, []byte{0x34, 0x12, 0xa0, 0x00, 0x02}, b[24:29])
	assert.Equal(t, []byte{0, 0, 0, 0}, b[29:33])
}

func TestDecode(t *testing.T) {
	f := NewBulkAck(addrA, addrB, NewSequenceControl(11, 0), 0x8000000000000001)
	f.SetDuration(1 << 20)
	assert.Equal(t, uint16(MaxDuration), f.Duration)
	g, err := Decode(f.Encode())
	require.NoError(t, err)
	assert.Equal(t, KindBulkAck, g.Kind())
	assert.Equal(t, addrA, g.Addr1)
	assert.Equal(t, addrB, g.Addr2)
	assert.Equal(t, uint16(11), g.BulkAck.StartSeqCtrl.Sequence())
	assert.Equal(t, uint64(0x8000000000000001), g.BulkAck.Bitmap)

	d := NewData(addrB, addrA, addrA, NewSequenceControl(7, 1), []byte("hello"))
	d.FrameControl = d.FrameControl.WithMoreFragments(true)
	g, err = Decode(d.Encode())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), g.Payload)
	assert.True(t, g.FrameControl.MoreFragments())
	assert.Equal(t, uint8(1), g.SeqCtrl.Fragment())

	g, err = Decode(NewBeacon(addrA, 3).Encode())
	require.NoError(t, err)
	assert.Equal(t, uint8(3), g.Beacon.Channel)
	assert.True(t, g.Addr1.IsBroadcast())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.Error(t, err)

	b := NewBulkResponse(addrA, addrB, 10).Encode()
	_, err = Decode(append(b, 0))
	assert.Error(t, err)

	b[0] = 0xf4
	_, err = Decode(b)
	assert.Error(t, err)
}
