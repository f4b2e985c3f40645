// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdAsk Command = iota
	CmdExplain
	CmdTranslate
	CmdStats
	CmdModels
	CmdClassify
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	Session    string
	Route      string // force a route: rag, general, hybrid
	Verbose    bool
	Quiet      bool

	// Positional text: the question, grammar point, or passage
	Query string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `cj-assistant - Classical Japanese study assistant

Answers study questions about Classical Japanese grammar and literature
using a local Ollama model, retrieving textbook passages from ChromaDB
and routing each question between textbook context and the model's own
knowledge.

Usage:
  cj-assistant ask "question"        Ask a study question
  cj-assistant explain "point"       Explain a grammar point (e.g. べし)
  cj-assistant translate "passage"   Translate and analyze a passage
  cj-assistant classify "question"   Show the routing decision only
  cj-assistant stats                 Show knowledge routing statistics
  cj-assistant models                List locally installed models
  cj-assistant version               Show version information

Global Flags:
  --config PATH    Config file (default ~/.cj-assistant/config.toml)
  --model NAME     Override the configured model
  --session ID     Conversation session id (default: new session)
  --route ROUTE    Force a route: rag, general, hybrid
  -q, --quiet      Answer text only, no thinking spans
  -v, --verbose    Debug output

Examples:
  cj-assistant ask "What is the difference between ぞ and こそ?"
  cj-assistant explain "べし"
  cj-assistant ask --route general "Tell me about the Heian court"
  cj-assistant translate "春はあけぼの。やうやう白くなりゆく山際"

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("cj-assistant version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	remaining, parsed := parseGlobalFlags(os.Args[1:])

	if len(remaining) == 0 {
		return CmdHelp, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining
	parsed.Query = strings.Join(positional(remaining), " ")

	switch cmd {
	case "ask", "a":
		return CmdAsk, parsed
	case "explain", "grammar":
		return CmdExplain, parsed
	case "translate", "tr":
		return CmdTranslate, parsed
	case "classify", "route":
		return CmdClassify, parsed
	case "stats", "statistics":
		return CmdStats, parsed
	case "models", "m":
		return CmdModels, parsed
	case "version", "--version":
		return CmdVersion, parsed
	case "help", "-h", "--help":
		return CmdHelp, parsed
	default:
		// Bare question without a command reads as ask
		parsed.Raw = append([]string{cmd}, remaining...)
		parsed.Query = strings.Join(positional(parsed.Raw), " ")
		return CmdAsk, parsed
	}
}

// parseGlobalFlags extracts global flags and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			parsed.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--config" && i+1 < len(args):
			i++
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--model" && i+1 < len(args):
			i++
			parsed.Model = args[i]
		case strings.HasPrefix(arg, "--model="):
			parsed.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "--session" && i+1 < len(args):
			i++
			parsed.Session = args[i]
		case strings.HasPrefix(arg, "--session="):
			parsed.Session = strings.TrimPrefix(arg, "--session=")
		case arg == "--route" && i+1 < len(args):
			i++
			parsed.Route = strings.ToLower(args[i])
		case strings.HasPrefix(arg, "--route="):
			parsed.Route = strings.ToLower(strings.TrimPrefix(arg, "--route="))
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, parsed
}

// positional filters out anything that still looks like a flag.
func positional(args []string) []string {
	var out []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			out = append(out, arg)
		}
	}
	return out
}
