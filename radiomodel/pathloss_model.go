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

package radiomodel

import "math"

type DbValue = float64

// default radio parameters for the 60 GHz band
const (
	defaultCarrierMhz       float64 = 60480.0 // center of 802.11ad channel 2
	defaultTxAntennaGainDb  DbValue = 15.0    // beamformed directional antenna gain
	defaultRxSensitivityDbm DbValue = -78.0   // control PHY (MCS0) sensitivity
	defaultRadioRange       float64 = 50.0    // disc limit, meters
)

// PathlossParams stores the parameters of the log-distance pathloss model.
type PathlossParams struct {
	ExponentDb  DbValue // 10 times the pathloss exponent
	FixedLossDb DbValue // loss at 1 m
	TxGainDb    DbValue // combined antenna gain of transmitter and receiver
}

// custom parameter rounding function
func paround(param float64) float64 {
	return math.Round(param*100.0) / 100.0
}

// DefaultPathlossParams returns free-space LoS parameters at the 60 GHz carrier.
func DefaultPathlossParams() PathlossParams {
	return PathlossParams{
		ExponentDb:  20.0,
		FixedLossDb: paround(20.0*math.Log10(defaultCarrierMhz) - 27.55),
		TxGainDb:    defaultTxAntennaGainDb,
	}
}

// computeRssi computes the received power for a receiver at distance dist (meters).
func computeRssi(dist float64, txPower DbValue, params *PathlossParams) DbValue {
	pathloss := 0.0
	if dist >= 0.01 {
		pathloss = params.ExponentDb*math.Log10(dist) + params.FixedLossDb
		if pathloss < 0.0 {
			pathloss = 0.0
		}
	}
	return txPower + params.TxGainDb - pathloss
}
