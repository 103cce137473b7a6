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
	"fmt"
	"os"
	"path/filepath"

	"github.com/crmac/crmac-ns/logger"
	. "github.com/crmac/crmac-ns/types"
)

// networkStats is one sample of the MAC state counts over all nodes and groups.
type networkStats struct {
	numNodes        int
	numSuspend      int
	numSwitch       int
	numTransmission int
	numDetection    int
	numQueued       int
	numActivePu     int
}

// statsLog writes a CSV line whenever the network stats change between two samples.
type statsLog struct {
	logFile        *os.File
	logFileName    string
	isFileEnabled  bool
	logTimestampUs uint64
	oldStats       networkStats
	hasEntry       bool
}

func newStatsLog(outputDir string, simulationId int) *statsLog {
	sl := &statsLog{
		logFileName:   getStatsLogFileName(outputDir, simulationId),
		isFileEnabled: true,
	}
	sl.createLogFile()
	return sl
}

func (s *Simulation) calcStats() networkStats {
	st := networkStats{numNodes: len(s.nodes)}
	for _, node := range s.nodes {
		for _, g := range AllGroups {
			switch node.mac.State(g) {
			case StateSuspend:
				st.numSuspend++
			case StateSwitch:
				st.numSwitch++
			case StateTransmission:
				st.numTransmission++
			case StateDetection:
				st.numDetection++
			}
		}
		st.numQueued += node.mac.QueueLen()
	}
	for _, pu := range s.medium.PrimaryUsers() {
		if pu.IsOn() {
			st.numActivePu++
		}
	}
	return st
}

// sample adds an entry for ts if stats differ from the last entry.
func (sl *statsLog) sample(ts uint64, stats networkStats) {
	if sl.hasEntry && stats == sl.oldStats {
		return
	}
	sl.writeLogEntry(ts, stats)
	sl.logTimestampUs = ts
	sl.oldStats = stats
	sl.hasEntry = true
}

// stop adds a final entry with the final status and closes the file.
func (sl *statsLog) stop(ts uint64, stats networkStats) {
	sl.writeLogEntry(ts, stats)
	sl.close()
	logger.Debugf("stats log stopped and CSV log file closed.")
}

func (sl *statsLog) createLogFile() {
	logger.AssertNil(sl.logFile)

	var err error
	_ = os.Remove(sl.logFileName)
	if err = os.MkdirAll(filepath.Dir(sl.logFileName), 0777); err == nil {
		sl.logFile, err = os.OpenFile(sl.logFileName, os.O_CREATE|os.O_WRONLY, 0664)
	}
	if err != nil {
		logger.Errorf("creating new stats log file %s failed: %+v", sl.logFileName, err)
		sl.isFileEnabled = false
		return
	}
	sl.writeLogFileHeader()
	logger.Debugf("Stats log file '%s' created.", sl.logFileName)
}

func (sl *statsLog) writeLogFileHeader() {
	// RFC 4180 CSV file: no leading or trailing spaces in header field names
	header := "timeSec,nNodes,nSuspend,nSwitch,nTransmission,nDetection,nQueued,nActivePu"
	_ = sl.writeToLogFile(header)
}

func (sl *statsLog) writeLogEntry(ts uint64, stats networkStats) {
	timeSec := float64(ts) / 1e6
	entry := fmt.Sprintf("%12.6f, %3d,%3d,%3d,%3d,%3d,%4d,%3d", timeSec, stats.numNodes, stats.numSuspend,
		stats.numSwitch, stats.numTransmission, stats.numDetection, stats.numQueued, stats.numActivePu)
	_ = sl.writeToLogFile(entry)
}

func (sl *statsLog) writeToLogFile(line string) error {
	if !sl.isFileEnabled {
		return nil
	}
	_, err := sl.logFile.WriteString(line + "\n")
	if err != nil {
		sl.close()
		logger.Errorf("couldn't write to stats log file (%s), closing it", sl.logFileName)
	}
	return err
}

func (sl *statsLog) close() {
	if sl.logFile != nil {
		_ = sl.logFile.Close()
		sl.logFile = nil
	}
	sl.isFileEnabled = false
}

func getStatsLogFileName(outputDir string, simId int) string {
	return filepath.Join(outputDir, fmt.Sprintf("%d_stats.csv", simId))
}
