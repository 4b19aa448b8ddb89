// Command lox runs Lox source files and provides an interactive REPL,
// grounded on the teacher's cmd/smog's runFile/runREPL split but trimmed
// to the single source format this VM understands — there is no
// precompiled bytecode file to load, so the "compile"/"disassemble"
// subcommands have no home here (see DESIGN.md).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"

	"github.com/kristofer/lox/pkg/vm"
)

const (
	exitOK           = 0
	exitUsage        = 2
	exitCompileError = 65
	exitRuntimeError = 70
	exitFileIOError  = 74
)

func main() {
	switch len(os.Args) {
	case 1:
		runPrompt()
	case 2:
		runFile(os.Args[1])
	default:
		fmt.Fprintln(os.Stderr, "Usage: lox [script]")
		os.Exit(exitUsage)
	}
}

// runFile reads and executes a single source file, exiting with the
// status spec.md §6 assigns to whichever outcome occurs.
func runFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(exitFileIOError)
	}

	machine := vm.New(os.Stdout, os.Stderr)
	switch machine.Interpret(string(data)) {
	case vm.InterpretCompileError:
		os.Exit(exitCompileError)
	case vm.InterpretRuntimeError:
		os.Exit(exitRuntimeError)
	}
	os.Exit(exitOK)
}

// runPrompt starts an interactive REPL with line editing and history,
// sharing one VM across inputs so global and class declarations persist
// between lines the way the teacher's REPL persists its symbol table.
func runPrompt() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lox> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting REPL: %v\n", err)
		os.Exit(exitFileIOError)
	}
	defer rl.Close()

	machine := vm.New(os.Stdout, os.Stderr)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		if line == "" {
			continue
		}
		machine.Interpret(line)
	}
}

// historyFilePath returns a best-effort location for REPL history,
// falling back to none if the home directory can't be resolved.
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.lox_history"
}
