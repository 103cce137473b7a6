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

package simulation

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	CommandInterruptedError = errors.New("command interrupted due to simulation exit")
	noSuchNodeError         = errors.New("no such node")
)

// flowHeaderSize is the header every generated payload starts with: packet uid, flow id and creation time.
const flowHeaderSize = 20

type flowHeader struct {
	Uid       uint64
	FlowId    uint32
	CreatedAt uint64
}

func (h flowHeader) encode(size int) []byte {
	if size < flowHeaderSize {
		size = flowHeaderSize
	}
	data := make([]byte, size)
	binary.LittleEndian.PutUint64(data[0:8], h.Uid)
	binary.LittleEndian.PutUint32(data[8:12], h.FlowId)
	binary.LittleEndian.PutUint64(data[12:20], h.CreatedAt)
	return data
}

func decodeFlowHeader(data []byte) (flowHeader, error) {
	if len(data) < flowHeaderSize {
		return flowHeader{}, errors.Errorf("payload too short: %d bytes", len(data))
	}
	return flowHeader{
		Uid:       binary.LittleEndian.Uint64(data[0:8]),
		FlowId:    binary.LittleEndian.Uint32(data[8:12]),
		CreatedAt: binary.LittleEndian.Uint64(data[12:20]),
	}, nil
}
