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

package cli

import (
	"github.com/alecthomas/participle"
)

// noinspection GoStructTag
type Command struct {
	Add      *AddCmd      `  @@` //nolint
	Exit     *ExitCmd     `| @@` //nolint
	Flow     *FlowCmd     `| @@` //nolint
	Flows    *FlowsCmd    `| @@` //nolint
	Go       *GoCmd       `| @@` //nolint
	Help     *HelpCmd     `| @@` //nolint
	Kpi      *KpiCmd      `| @@` //nolint
	Load     *LoadCmd     `| @@` //nolint
	LogLevel *LogLevelCmd `| @@` //nolint
	Node     *NodeCmd     `| @@` //nolint
	Nodes    *NodesCmd    `| @@` //nolint
	Pu       *PuCmd       `| @@` //nolint
	Save     *SaveCmd     `| @@` //nolint
	Time     *TimeCmd     `| @@` //nolint
}

// noinspection GoStructTag
type Duration struct {
	Val string `@((Int|Float)["h"|"us"|"m"|"ms"|"s"])` //nolint
}

// noinspection GoStructTag
type GoCmd struct {
	Cmd  struct{}  `"go"`   //nolint
	Time *Duration `( @@`   //nolint
	Ever *EverFlag `| @@ )` //nolint
}

// noinspection GoStructTag
type EverFlag struct {
	Dummy struct{} `"ever"` //nolint
}

// noinspection GoStructTag
type NodeSelector struct {
	Id int `@Int` //nolint
}

// noinspection GoStructTag
type NodeCmd struct {
	Cmd  struct{}     `"node"` //nolint
	Node NodeSelector `@@`     //nolint
}

// noinspection GoStructTag
type NodesCmd struct {
	Cmd struct{} `"nodes"` //nolint
}

// noinspection GoStructTag
type AddCmd struct {
	Cmd struct{}   `"add"`                //nolint
	X   *float64   `( "x" (@Int|@Float) ` //nolint
	Y   *float64   `| "y" (@Int|@Float) ` //nolint
	Z   *float64   `| "z" (@Int|@Float) ` //nolint
	Id  *AddNodeId `| @@ )*`              //nolint
}

// noinspection GoStructTag
type AddNodeId struct {
	Val int `"id" @Int` //nolint
}

// noinspection GoStructTag
type PuCmd struct {
	Cmd struct{}  `"pu"`    //nolint
	Add *PuAddCmd `( @@`    //nolint
	Del *PuDelCmd `| @@ )?` //nolint
}

// noinspection GoStructTag
type PuAddCmd struct {
	Cmd     struct{}   `"add"`                    //nolint
	Channel int        `"channel" @Int`           //nolint
	X       *float64   `( "x" (@Int|@Float) `     //nolint
	Y       *float64   `| "y" (@Int|@Float) `     //nolint
	Range   *float64   `| "range" (@Int|@Float) ` //nolint
	On      *Duration  `| "on" @@ `               //nolint
	Off     *Duration  `| "off" @@ `              //nolint
	Start   *Duration  `| "start" @@ `            //nolint
	Id      *AddNodeId `| @@ )*`                  //nolint
}

// noinspection GoStructTag
type PuDelCmd struct {
	Cmd struct{} `"del"` //nolint
	Id  int      `@Int`  //nolint
}

// noinspection GoStructTag
type FlowCmd struct {
	Cmd       struct{}       `"flow"`           //nolint
	Src       NodeSelector   `@@`               //nolint
	Dst       *NodeSelector  `( @@`             //nolint
	Broadcast *BroadcastFlag `| @@ )`           //nolint
	Interval  *Duration      `( "interval" @@ ` //nolint
	Size      *int           `| "size" @Int `   //nolint
	Count     *int           `| "count" @Int `  //nolint
	Start     *Duration      `| "start" @@ )*`  //nolint
}

// noinspection GoStructTag
type BroadcastFlag struct {
	Dummy struct{} `"broadcast"` //nolint
}

// noinspection GoStructTag
type FlowsCmd struct {
	Cmd struct{} `"flows"` //nolint
}

// noinspection GoStructTag
type KpiCmd struct {
	Cmd  struct{}  `"kpi"`    //nolint
	Save *SaveFlag `( @@ )?`  //nolint
	Name string    `@String?` //nolint
}

// noinspection GoStructTag
type SaveFlag struct {
	Dummy struct{} `"save"` //nolint
}

// noinspection GoStructTag
type SaveCmd struct {
	Cmd      struct{} `"save"`  //nolint
	Filename string   `@String` //nolint
}

// noinspection GoStructTag
type LoadCmd struct {
	Cmd      struct{} `"load"`  //nolint
	Filename string   `@String` //nolint
}

// noinspection GoStructTag
type TimeCmd struct {
	Cmd struct{} `"time"` //nolint
}

// noinspection GoStructTag
type ExitCmd struct {
	Cmd struct{} `"exit"` //nolint
}

// noinspection GoStructTag
type LogLevelCmd struct {
	Cmd   struct{} `"log"`                                                                                     //nolint
	Level string   `[@( "micro"|"trace"|"debug"|"info"|"note"|"warn"|"error"|"off"|"T"|"D"|"I"|"N"|"W"|"E" )]` //nolint
}

// noinspection GoStructTag
type HelpCmd struct {
	Cmd       struct{} `"help"`       //nolint
	HelpTopic string   `[ (@Ident) ]` //nolint
}

var (
	commandParser = participle.MustBuild(&Command{})
)

func parseBytes(b []byte, cmd *Command) error {
	err := commandParser.ParseBytes(b, cmd)
	return err
}
