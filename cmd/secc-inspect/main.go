// Command secc-inspect is an interactive browser for protolog event
// files written by secc-example (or any secc.Handler wired to a
// protolog.FileLogger), adapted from the teacher's mash-controller
// interactive REPL but reading the new protocol log rather than driving
// a live controller.
//
// Usage:
//
//	secc-inspect session.protolog
//
// Once started, type "help" for the command list.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/mash-go/cmd/secc-inspect/commands"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: secc-inspect <file.protolog>")
		os.Exit(1)
	}
	path := os.Args[1]

	events, err := commands.LoadEvents(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secc-inspect: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("loaded %d event(s) from %s\n", len(events), path)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "secc-inspect> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "secc-inspect: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	printHelp()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "secc-inspect: %v\n", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "help", "?":
			printHelp()
		case "quit", "exit":
			return
		case "view", "session":
			filter := commands.ParseViewArgs(args)
			n := commands.View(os.Stdout, events, filter)
			fmt.Printf("(%d matching event(s))\n", n)
		case "stats":
			commands.Stats(os.Stdout, events)
		default:
			fmt.Printf("unknown command %q, type help\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Print(`Commands:
  view [session-id] [in|out] [message|state|error|timer]   print events, optionally filtered
  session <session-id>                                      shorthand for view scoped to one session
  stats                                                      summarize event counts by session and category
  help                                                       show this text
  quit                                                       exit
`)
}
