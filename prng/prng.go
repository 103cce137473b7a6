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

package prng

import (
	"hash/fnv"
	"math/rand"
	"time"
)

type RandomSeed int64

var rootSeed RandomSeed
var unitRandGenerator *rand.Rand

// Init initializes the prng package, either with a fixed PRNG seed (seed != 0) or a 'random' time-based PRNG
// seed (if seed == 0). It returns the root seed actually used, so that a run can be reproduced.
func Init(seed int64) RandomSeed {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rootSeed = RandomSeed(seed)
	unitRandGenerator = rand.New(rand.NewSource(seed))
	return rootSeed
}

// RootSeed returns the seed passed to (or chosen by) Init.
func RootSeed() RandomSeed {
	return rootSeed
}

// Stream is an independent, deterministic random stream. Each (node, group) pair of the MAC owns one,
// so that adding nodes or flows to a scenario does not shift the draws of other nodes.
type Stream struct {
	Name string
	rnd  *rand.Rand
}

// NewStream returns the stream for the given name. Its seed is derived from the root seed and the name
// only, so the same name always yields the same sequence for the same root seed.
func NewStream(name string) *Stream {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	seed := int64(uint64(rootSeed) ^ h.Sum64())
	return &Stream{
		Name: name,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// UniformInt draws an integer uniformly in the closed range [min, max]. If max < min, min is returned.
func (s *Stream) UniformInt(min, max uint64) uint64 {
	if max <= min {
		return min
	}
	return min + uint64(s.rnd.Int63n(int64(max-min+1)))
}

// Float64 draws a float uniformly in [0, 1).
func (s *Stream) Float64() float64 {
	return s.rnd.Float64()
}

// ExpFloat64 draws an exponentially distributed value with the given mean.
func (s *Stream) ExpFloat64(mean float64) float64 {
	return s.rnd.ExpFloat64() * mean
}

// NewUnitRandom generates a new random unit [0, 1] float, which can be used as a random probability.
func NewUnitRandom() float64 {
	return unitRandGenerator.Float64()
}
