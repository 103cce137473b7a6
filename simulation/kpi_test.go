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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	. "github.com/crmac/crmac-ns/types"
)

func TestFlowHeader(t *testing.T) {
	hdr := flowHeader{Uid: 77, FlowId: 3, CreatedAt: 123456}
	data := hdr.encode(64)
	assert.Len(t, data, 64)
	res, err := decodeFlowHeader(data)
	assert.NoError(t, err)
	assert.Equal(t, hdr, res)

	assert.Len(t, hdr.encode(4), flowHeaderSize)
	_, err = decodeFlowHeader(data[:10])
	assert.Error(t, err)
}

func TestKpiFormatFromFileName(t *testing.T) {
	assert.Equal(t, KpiFormatJson, KpiFormatFromFileName("out/1_kpi.json"))
	assert.Equal(t, KpiFormatYaml, KpiFormatFromFileName("kpi.YML"))
	assert.Equal(t, KpiFormatYaml, KpiFormatFromFileName("kpi.yaml"))
	assert.Equal(t, KpiFormatCbor, KpiFormatFromFileName("kpi.cbor"))
	assert.Equal(t, KpiFormatJson, KpiFormatFromFileName("kpi"))
}

func TestKpiExport(t *testing.T) {
	s := newTestSimulation(t, singleChannelTestConfig(t))
	addTestNodes(t, s, 2)
	_, err := s.AddFlow(FlowConfig{Src: 1, Dst: 2, Interval: 2_000, Size: 64, Count: 5})
	require.NoError(t, err)
	require.NoError(t, s.Go(100_000))

	dir := t.TempDir()
	for _, fn := range []string{"kpi.json", "kpi.yaml", "kpi.cbor"} {
		path := filepath.Join(dir, fn)
		require.NoError(t, s.SaveKpi(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var kpi Kpi
		switch KpiFormatFromFileName(fn) {
		case KpiFormatJson:
			err = json.Unmarshal(data, &kpi)
		case KpiFormatYaml:
			err = yaml.Unmarshal(data, &kpi)
		case KpiFormatCbor:
			err = cbor.Unmarshal(data, &kpi)
		}
		require.NoError(t, err, fn)
		assert.Equal(t, s.RunId(), kpi.RunId, fn)
		assert.Equal(t, uint64(100_000), kpi.TimeUs.PeriodUs, fn)
		assert.Equal(t, uint64(5), kpi.Flows[1].Sent, fn)
		assert.Contains(t, kpi.Nodes, NodeId(2), fn)
	}

	_, err = s.MarshalKpi("xml")
	assert.Error(t, err)
}
