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
	"fmt"

	. "github.com/crmac/crmac-ns/types"
)

// Item is one queued copy of an upper-layer packet, bound to the channel it has to be sent on.
type Item struct {
	Packet     *Packet
	Dest       Address
	Channel    ChannelId
	EnqueuedAt uint64

	seq  uint16
	frag int
}

func (it *Item) String() string {
	return fmt.Sprintf("pkt%d->%s@ch%d", it.Packet.Uid, it.Dest, it.Channel)
}

// Queue is the FIFO of outbound items with a capacity and a maximum queueing delay.
type Queue struct {
	maxSize  int
	maxDelay uint64
	items    []*Item
}

func NewQueue(maxSize int, maxDelay uint64) *Queue {
	return &Queue{
		maxSize:  maxSize,
		maxDelay: maxDelay,
	}
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) IsFull() bool {
	return q.maxSize > 0 && len(q.items) >= q.maxSize
}

// Enqueue appends an item. It returns false, leaving the queue unchanged, if the queue is full.
func (q *Queue) Enqueue(it *Item) bool {
	if q.IsFull() {
		return false
	}
	q.items = append(q.items, it)
	return true
}

// PushFront re-queues items at the head of the queue, keeping their order.
func (q *Queue) PushFront(items []*Item) {
	if len(items) == 0 {
		return
	}
	n := make([]*Item, 0, len(items)+len(q.items))
	n = append(n, items...)
	q.items = append(n, q.items...)
}

// RemoveExpired removes and returns the items that waited longer than the maximum queueing delay.
func (q *Queue) RemoveExpired(now uint64) []*Item {
	if q.maxDelay == 0 {
		return nil
	}
	var expired []*Item
	n := 0
	for _, it := range q.items {
		if now-it.EnqueuedAt > q.maxDelay {
			expired = append(expired, it)
			continue
		}
		q.items[n] = it
		n++
	}
	for i := n; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:n]
	return expired
}

// Each calls fn for the items in queue order until fn returns false.
func (q *Queue) Each(fn func(it *Item) bool) {
	for _, it := range q.items {
		if !fn(it) {
			return
		}
	}
}

// Remove removes the given item; it returns false if the item is not queued.
func (q *Queue) Remove(item *Item) bool {
	for i, it := range q.items {
		if it == item {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}
