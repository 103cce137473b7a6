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
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

// Embed the CLI help file as a static resource.
//
//go:embed README.md
var cliHelpFile string

var (
	cmdHeaderPattern  = regexp.MustCompile("^### .+")
	linkTargetPattern = regexp.MustCompile(`\(#[a-z]+\)`)
)

type helpBlock int

const (
	blockText helpBlock = iota
	blockDefinition
	blockExample
)

// helpEntry is the help of one command, as read from its README section.
type helpEntry struct {
	summary string
	text    strings.Builder
	usage   []string
}

// Help renders the command reference embedded from README.md.
type Help struct {
	termWidth   uint
	maxCmdWidth uint
	entries     map[string]*helpEntry
}

func newHelp() Help {
	h := Help{
		termWidth:   80,
		maxCmdWidth: 10,
		entries:     make(map[string]*helpEntry),
	}
	h.parseHelpFile()
	h.update()
	return h
}

// update takes the width of the user's terminal into account, if stdout is one.
func (help *Help) update() {
	fdTerm := int(os.Stdout.Fd()) // Windows platform requires cast to int.
	if !term.IsTerminal(fdTerm) {
		return
	}
	if width, _, err := term.GetSize(fdTerm); err == nil && width > int(help.maxCmdWidth)+20 {
		help.termWidth = uint(width)
	}
}

func (help *Help) sortedCommands() []string {
	cmds := make([]string, 0, len(help.entries))
	for k := range help.entries {
		cmds = append(cmds, k)
	}
	sort.Strings(cmds)
	return cmds
}

// outputGeneralHelp lists every command with its one-sentence summary.
func (help *Help) outputGeneralHelp() string {
	var sb strings.Builder
	for _, c := range help.sortedCommands() {
		sb.WriteString(fmt.Sprintf("%-15s %s\n", c, help.entries[c].summary))
	}
	sb.WriteString(wordwrap.WrapString("\nFor detailed help per command, use: 'help <command>'\n", help.termWidth))
	sb.WriteString(wordwrap.WrapString("\nDurations accept a unit (us, ms, s, m, h); a bare number is taken as seconds.\n",
		help.termWidth))
	return sb.String()
}

// outputCommandHelp returns the full help text of one command, wrapped to the terminal.
func (help *Help) outputCommandHelp(command string) string {
	help.update()
	entry, ok := help.entries[command]
	if !ok {
		return command + "\n  (Non-existent command.)\n"
	}

	var sb strings.Builder
	sb.WriteString(command + "\n")
	w := help.termWidth - help.maxCmdWidth - 1
	for _, line := range strings.Split(wordwrap.WrapString(entry.text.String(), w), "\n") {
		if len(line) > 0 {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

// usage returns the definition lines of a command, or nil for an unknown command.
func (help *Help) usage(command string) []string {
	if entry, ok := help.entries[command]; ok {
		return entry.usage
	}
	return nil
}

// parseHelpFile splits README.md into one entry per '### <command>' section. A shell block holds the
// command definition, a bash block an example session.
func (help *Help) parseHelpFile() {
	var entry *helpEntry
	block := blockText

	for _, line := range strings.Split(cliHelpFile, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case cmdHeaderPattern.MatchString(line):
			entry = &helpEntry{}
			help.entries[strings.TrimSpace(line[strings.Index(line, " ")+1:])] = entry
			block = blockText
			continue
		case entry == nil:
			continue
		case line == "```shell":
			block = blockDefinition
			entry.text.WriteString("\nDefinition:\n")
			continue
		case line == "```bash":
			block = blockExample
			entry.text.WriteString("\nExample:\n")
			continue
		case line == "```":
			block = blockText
			continue
		}

		line = markdownUnquote(line)
		switch block {
		case blockDefinition:
			entry.usage = append(entry.usage, line)
			entry.text.WriteString("  " + line + "\n")
		case blockExample:
			entry.text.WriteString("  " + line + "\n")
		default:
			if entry.summary == "" {
				entry.summary = line
				if idx := strings.Index(line, "."); idx > 0 {
					entry.summary = line[:idx+1]
				}
			}
			entry.text.WriteString(line + "\n")
		}
	}
}

func markdownUnquote(md string) string {
	md = strings.ReplaceAll(md, "\\", "")
	md = strings.ReplaceAll(md, "`", "")
	md = linkTargetPattern.ReplaceAllString(md, "")
	return md
}
