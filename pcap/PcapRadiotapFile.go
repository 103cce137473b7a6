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

package pcap

import (
	"encoding/binary"
	"os"
)

// radiotap header specification is at https://www.radiotap.org
const (
	dltIeee80211Radiotap   = 127
	radiotapHeaderSize     = 15
	radiotapPresentFlags   = 1 << 1
	radiotapPresentChannel = 1 << 3
	radiotapPresentSignal  = 1 << 5
	radiotapFlagFcsAtEnd   = 0x10
)

type radiotapFile struct {
	fd *os.File
}

func newRadiotapFile(filename string) (File, error) {
	fd, err := openFile(filename)
	if err != nil {
		return nil, err
	}

	pf := &radiotapFile{
		fd: fd,
	}

	if err = writeFileHeader(fd, dltIeee80211Radiotap); err != nil {
		_ = pf.Close()
		return nil, err
	}

	return pf, nil
}

// channelFrequencyMhz returns the center frequency of a 60 GHz (802.11ad) channel.
func channelFrequencyMhz(ch int) uint16 {
	if ch <= 0 {
		return 0
	}
	return uint16(56160 + 2160*ch)
}

func (pf *radiotapFile) AppendFrame(frame Frame) error {
	var header [pcapFrameHeaderSize + radiotapHeaderSize]byte
	putFrameHeader(header[:], frame.Timestamp, len(frame.Data)+radiotapHeaderSize)

	n := pcapFrameHeaderSize
	header[n] = 0   // version
	header[n+1] = 0 // pad
	binary.LittleEndian.PutUint16(header[n+2:n+4], radiotapHeaderSize)
	binary.LittleEndian.PutUint32(header[n+4:n+8], radiotapPresentFlags|radiotapPresentChannel|radiotapPresentSignal)
	header[n+8] = radiotapFlagFcsAtEnd
	// byte n+9 aligns the channel field to 2 bytes
	binary.LittleEndian.PutUint16(header[n+10:n+12], channelFrequencyMhz(frame.Channel))
	binary.LittleEndian.PutUint16(header[n+12:n+14], 0)
	header[n+14] = byte(int8(frame.Rssi))

	if _, err := pf.fd.Write(header[:]); err != nil {
		return err
	}
	_, err := pf.fd.Write(frame.Data)
	return err
}

func (pf *radiotapFile) Sync() error {
	return pf.fd.Sync()
}

func (pf *radiotapFile) Close() error {
	return pf.fd.Close()
}
