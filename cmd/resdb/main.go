// Command resdb inspects and extracts simulation results from FRS result
// files.
//
// Run `resdb help` for a list of verbs.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
)

type command struct {
	help    string
	handler func(arg0 string, args []string) error
}

var commandSummary = "<verb> <option> ... [file ...]"

var commands = map[string]command{
	"load": {
		"Load result files and search them for a variable path",
		cmdLoad,
	},
	"info": {
		"Print the catalog summary of each result file",
		cmdInfo,
	},
	"dump": {
		"Load result files and print the entry hierarchy",
		cmdDump,
	},
	"gen": {
		"Write a synthetic result file for testing",
		cmdGen,
	},
	"fetch": {
		"Download the result files registered for a run",
		cmdFetch,
	},
	"put": {
		"Upload result files to the configured blob store",
		cmdPut,
	},
}

func main() {
	if len(os.Args) < 2 {
		usage(1)
	}
	if entry, found := commands[os.Args[1]]; found {
		if err := entry.handler(os.Args[0], os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("resdb: %v", err))
			os.Exit(1)
		}
		return
	}
	if os.Args[1] == "help" {
		usage(0)
	}
	usage(1)
}

func usage(code int) {
	out := os.Stdout
	if code != 0 {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Usage of %s:\n\n  %s %s\n\n", os.Args[0], os.Args[0], commandSummary)
	fmt.Fprintf(out, "where <verb> is one of\n\n")
	entries := make(sort.StringSlice, 0, len(commands))
	for name, cmd := range commands {
		entries = append(entries, "  "+name+"\n    "+cmd.help)
	}
	entries.Sort()
	for _, e := range entries {
		fmt.Fprintln(out, e)
	}
	fmt.Fprintln(out, "\nAll verbs accept -h to print verb-specific help.")
	os.Exit(code)
}
