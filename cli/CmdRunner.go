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

// Package cli implements the simulator console. It parses and executes CLI commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/crmac/crmac-ns/logger"
	"github.com/crmac/crmac-ns/progctx"
	"github.com/crmac/crmac-ns/radiomodel"
	"github.com/crmac/crmac-ns/simulation"
	. "github.com/crmac/crmac-ns/types"
)

const (
	Prompt = "> "

	defaultFlowSize = 100
	goEverStep      = 3600 * 1000000
)

type CommandContext struct {
	context.Context
	*Command
	rt     *CmdRunner
	err    error
	output io.Writer
}

func (cc *CommandContext) outputStr(msg string) {
	_, _ = fmt.Fprint(cc.output, msg)
}

func (cc *CommandContext) outputf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cc.output, format, args...)
}

func (cc *CommandContext) errorf(format string, args ...interface{}) {
	cc.error(errors.Errorf(format, args...))
}

func (cc *CommandContext) error(err error) {
	if err != nil {
		if cc.err != nil { // if previous error, print it now and keep the last.
			cc.outputf("Error: %s\n", cc.err)
		}
		cc.err = err
	}
}

// Err returns the last error that occurred during command execution.
func (cc *CommandContext) Err() error {
	return cc.err
}

func (cc *CommandContext) outputItemsAsYaml(items interface{}) {
	var itemsYaml yaml.Node

	err := itemsYaml.Encode(items)
	logger.PanicIfError(err)

	for _, content := range itemsYaml.Content {
		content.Style = yaml.FlowStyle
	}

	data, err := yaml.Marshal(&itemsYaml)
	logger.PanicIfError(err)

	_, err = cc.output.Write(data)
	logger.PanicIfError(err)
}

// CmdRunner executes console commands against a simulation. Commands from the console and from the
// gRPC API are serialized.
type CmdRunner struct {
	sim  *simulation.Simulation
	ctx  *progctx.ProgCtx
	help Help
	mu   sync.Mutex
}

func NewCmdRunner(ctx *progctx.ProgCtx, sim *simulation.Simulation) *CmdRunner {
	return &CmdRunner{
		ctx:  ctx,
		sim:  sim,
		help: newHelp(),
	}
}

// RunCommand parses and executes one command line. Output and errors are written to output; the
// returned error is only set once the program context is done.
func (rt *CmdRunner) RunCommand(cmdline string, output io.Writer) error {
	if rt.ctx.Err() == nil {
		cmd := Command{}

		if err := parseBytes([]byte(cmdline), &cmd); err != nil {
			if _, err := fmt.Fprintf(output, "Error: %v\n", err); err != nil {
				return err
			}
			rt.outputUsage(cmdline, output)
		} else {
			rt.execute(&cmd, output)
		}
	}
	return rt.ctx.Err()
}

// outputUsage shows the definition of the command named by the first word of a rejected command line.
func (rt *CmdRunner) outputUsage(cmdline string, output io.Writer) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return
	}
	for _, line := range rt.help.usage(fields[0]) {
		_, _ = fmt.Fprintf(output, "Usage: %s\n", line)
	}
}

func (rt *CmdRunner) HandleCommand(cmdline string, output io.Writer) error {
	return rt.RunCommand(cmdline, output)
}

func (rt *CmdRunner) GetPrompt() string {
	return Prompt
}

func (rt *CmdRunner) execute(cmd *Command, output io.Writer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cc := &CommandContext{
		Context: rt.ctx,
		Command: cmd,
		rt:      rt,
		output:  output,
	}

	defer func() {
		if cc.Err() != nil {
			cc.outputf("Error: %v\n", cc.Err())
		} else {
			cc.outputf("Done\n")
		}
	}()

	defer func() {
		rerr := recover()

		if rerr != nil {
			if err, ok := rerr.(error); ok {
				cc.err = errors.Wrapf(err, "panic: %v", err)
			} else {
				cc.err = errors.Errorf("panic: %v", rerr)
			}
		}
	}()

	if cmd.Go != nil {
		rt.executeGo(cc, cmd.Go)
	} else if cmd.Nodes != nil {
		rt.executeLsNodes(cc, cmd.Nodes)
	} else if cmd.Add != nil {
		rt.executeAddNode(cc, cmd.Add)
	} else if cmd.Node != nil {
		rt.executeNode(cc, cmd.Node)
	} else if cmd.Pu != nil {
		rt.executePu(cc, cmd.Pu)
	} else if cmd.Flow != nil {
		rt.executeFlow(cc, cmd.Flow)
	} else if cmd.Flows != nil {
		rt.executeLsFlows(cc, cmd.Flows)
	} else if cmd.Kpi != nil {
		rt.executeKpi(cc, cmd.Kpi)
	} else if cmd.Save != nil {
		rt.executeSave(cc, cmd.Save)
	} else if cmd.Load != nil {
		rt.executeLoad(cc, cmd.Load)
	} else if cmd.Time != nil {
		rt.executeTime(cc, cmd.Time)
	} else if cmd.LogLevel != nil {
		rt.executeLogLevel(cc, cmd.LogLevel)
	} else if cmd.Help != nil {
		rt.executeHelp(cc, cmd.Help)
	} else if cmd.Exit != nil {
		rt.executeExit(cc, cmd.Exit)
	} else {
		logger.Panicf("unimplemented command: %#v", cmd)
	}
}

func (rt *CmdRunner) executeGo(cc *CommandContext, cmd *GoCmd) {
	if cmd.Ever == nil {
		dur, err := cmd.Time.usec()
		if err != nil {
			cc.error(err)
			return
		}
		cc.error(rt.sim.Go(dur))
		return
	}

	for { // run forever but stop if rt.ctx.Err indicates "done"
		err := rt.sim.Go(goEverStep)
		if rt.ctx.Err() != nil || err != nil {
			cc.error(err)
			break
		}
	}
}

func (rt *CmdRunner) executeAddNode(cc *CommandContext, cmd *AddCmd) {
	cfg := simulation.DefaultNodeConfig()
	if cmd.Id != nil {
		cfg.ID = cmd.Id.Val
	}
	cfg.Position = Position{
		X: floatOr(cmd.X, 0),
		Y: floatOr(cmd.Y, 0),
		Z: floatOr(cmd.Z, 0),
	}

	node, err := rt.sim.AddNode(cfg)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", node.Id)
}

func (rt *CmdRunner) executeNode(cc *CommandContext, cmd *NodeCmd) {
	info, err := rt.sim.NodeInfo(cmd.Node.Id)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputItemsAsYaml(info)
}

func (rt *CmdRunner) executeLsNodes(cc *CommandContext, cmd *NodesCmd) {
	for _, info := range rt.sim.NodeInfos() {
		var line strings.Builder
		line.WriteString(fmt.Sprintf("id=%d\taddr=%s\tx=%g\ty=%g\tz=%g", info.Id, info.Address,
			info.Position.X, info.Position.Y, info.Position.Z))
		for _, g := range AllGroups {
			line.WriteString(fmt.Sprintf("\t%s=%d/%s", g, info.Channels[g], info.States[g]))
		}
		line.WriteString(fmt.Sprintf("\tqueue=%d\tneighbors=%d", info.QueueLen, len(info.Neighbors)))
		cc.outputf("%s\n", line.String())
	}
}

func (rt *CmdRunner) executePu(cc *CommandContext, cmd *PuCmd) {
	if cmd.Add != nil {
		rt.executePuAdd(cc, cmd.Add)
	} else if cmd.Del != nil {
		cc.error(rt.sim.RemovePrimaryUser(cmd.Del.Id))
	} else {
		cc.outputItemsAsYaml(rt.sim.PrimaryUsers())
	}
}

func (rt *CmdRunner) executePuAdd(cc *CommandContext, cmd *PuAddCmd) {
	var err error
	cfg := radiomodel.PrimaryUserConfig{
		Channel: cmd.Channel,
		Position: Position{
			X: floatOr(cmd.X, 0),
			Y: floatOr(cmd.Y, 0),
		},
		Range: floatOr(cmd.Range, rt.sim.Config().Medium.RadioRange),
	}
	if cmd.Id != nil {
		cfg.Id = cmd.Id.Val
	}
	if cfg.OnTime, err = usecOr(cmd.On, 0); err != nil {
		cc.error(err)
		return
	}
	if cfg.OffTime, err = usecOr(cmd.Off, 0); err != nil {
		cc.error(err)
		return
	}
	if cfg.StartOffset, err = usecOr(cmd.Start, 0); err != nil {
		cc.error(err)
		return
	}
	cc.error(rt.sim.AddPrimaryUser(cfg))
}

func (rt *CmdRunner) executeFlow(cc *CommandContext, cmd *FlowCmd) {
	var err error
	cfg := simulation.FlowConfig{
		Src:   cmd.Src.Id,
		Dst:   InvalidNodeId,
		Size:  intOr(cmd.Size, defaultFlowSize),
		Count: intOr(cmd.Count, 0),
	}
	if cmd.Dst != nil {
		cfg.Dst = cmd.Dst.Id
	}
	if cmd.Interval == nil {
		cc.errorf("flow interval missing")
		return
	}
	if cfg.Interval, err = cmd.Interval.usec(); err != nil {
		cc.error(err)
		return
	}
	if cfg.Start, err = usecOr(cmd.Start, 0); err != nil {
		cc.error(err)
		return
	}

	id, err := rt.sim.AddFlow(cfg)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputf("%d\n", id)
}

func (rt *CmdRunner) executeLsFlows(cc *CommandContext, cmd *FlowsCmd) {
	for _, f := range rt.sim.Flows() {
		dst := "broadcast"
		if f.Dst != InvalidNodeId {
			dst = fmt.Sprintf("%d", f.Dst)
		}
		cc.outputf("id=%d\tsrc=%d\tdst=%s\tinterval=%dus\tsize=%d\tcount=%d\n", f.ID, f.Src, dst,
			f.Interval, f.Size, f.Count)
	}
}

func (rt *CmdRunner) executeKpi(cc *CommandContext, cmd *KpiCmd) {
	if cmd.Save != nil {
		cc.error(rt.sim.SaveKpi(cmd.Name))
		return
	}
	data, err := rt.sim.MarshalKpi(simulation.KpiFormatYaml)
	if err != nil {
		cc.error(err)
		return
	}
	cc.outputStr(string(data))
}

func (rt *CmdRunner) executeSave(cc *CommandContext, cmd *SaveCmd) {
	scenario := rt.sim.ExportScenario()
	data, err := yaml.Marshal(&scenario)
	if err != nil {
		cc.error(err)
		return
	}
	if err = os.WriteFile(cmd.Filename, data, 0644); err != nil {
		cc.error(errors.Wrapf(err, "write scenario %s", cmd.Filename))
	}
}

func (rt *CmdRunner) executeLoad(cc *CommandContext, cmd *LoadCmd) {
	scenario, err := simulation.LoadScenario(cmd.Filename)
	if err != nil {
		cc.error(err)
		return
	}
	cc.error(rt.sim.ImportScenario(scenario))
}

func (rt *CmdRunner) executeTime(cc *CommandContext, cmd *TimeCmd) {
	cc.outputf("%d\n", rt.sim.Now())
}

func (rt *CmdRunner) executeLogLevel(cc *CommandContext, cmd *LogLevelCmd) {
	if cmd.Level == "" {
		cc.outputf("%v\n", logger.GetLevelString(logger.GetLevel()))
		return
	}
	level, err := logger.ParseLevelString(cmd.Level)
	if err != nil {
		cc.error(err)
		return
	}
	logger.SetLevel(level)
}

func (rt *CmdRunner) executeExit(cc *CommandContext, cmd *ExitCmd) {
	cc.error(rt.sim.Stop())
	rt.ctx.Cancel("exit")
}

func (rt *CmdRunner) executeHelp(cc *CommandContext, cmd *HelpCmd) {
	if len(cmd.HelpTopic) > 0 {
		cc.outputStr(rt.help.outputCommandHelp(cmd.HelpTopic))
	} else {
		cc.outputStr(rt.help.outputGeneralHelp())
	}
}
