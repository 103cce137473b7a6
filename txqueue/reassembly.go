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

package txqueue

import (
	"github.com/crmac/crmac-ns/frame"
	. "github.com/crmac/crmac-ns/types"
)

type reassemblyKey struct {
	src Address
	seq uint16
}

type partial struct {
	nextFrag uint8
	data     []byte
}

// reassembler rebuilds fragmented data frames. Fragments must arrive in order.
type reassembler struct {
	partials map[reassemblyKey]*partial
}

func newReassembler() *reassembler {
	return &reassembler{
		partials: map[reassemblyKey]*partial{},
	}
}

// add processes a received data frame; it returns the complete payload once the last fragment is in.
func (r *reassembler) add(f *frame.Frame) ([]byte, bool) {
	key := reassemblyKey{f.Addr2, f.SeqCtrl.Sequence()}
	frag := f.SeqCtrl.Fragment()
	more := f.FrameControl.MoreFragments()

	if frag == 0 && !more {
		delete(r.partials, key)
		return f.Payload, true
	}

	p := r.partials[key]
	if frag == 0 {
		p = &partial{}
		r.partials[key] = p
	} else if p == nil || p.nextFrag != frag {
		delete(r.partials, key)
		return nil, false
	}
	p.data = append(p.data, f.Payload...)
	p.nextFrag++
	if more {
		return nil, false
	}
	delete(r.partials, key)
	return p.data, true
}

// discard drops all partial packets of src.
func (r *reassembler) discard(src Address) {
	for k := range r.partials {
		if k.src == src {
			delete(r.partials, k)
		}
	}
}
