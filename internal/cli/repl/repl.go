package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Command is one shell command.
type Command struct {
	Name  string
	Usage string
	Run   func(args []string) error
}

// Config configures a REPL.
type Config struct {
	// Prompt defaults to "> ".
	Prompt string
	Input  io.Reader
	Output io.Writer
	// HistoryFile persists history between sessions when set.
	HistoryFile string
	// BeforePrompt runs before each prompt is printed.
	BeforePrompt func()
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input        io.Reader
	output       io.Writer
	prompt       string
	commands     map[string]Command
	completer    *Completer
	history      *History
	beforePrompt func()
}

// New creates a REPL with the given commands. help, history, exit and
// quit are built in.
func New(cfg Config, commands ...Command) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	r := &REPL{
		input:        cfg.Input,
		output:       cfg.Output,
		prompt:       cfg.Prompt,
		commands:     make(map[string]Command, len(commands)),
		history:      NewHistory(cfg.HistoryFile),
		beforePrompt: cfg.BeforePrompt,
	}
	names := []string{"help", "history", "exit", "quit"}
	for _, c := range commands {
		r.commands[c.Name] = c
		names = append(names, c.Name)
	}
	r.completer = NewCompleter(names)
	return r
}

// Run reads and executes commands until exit, quit or end of input.
// Command errors are printed and do not stop the loop.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "Warning: history not loaded: %v\n", err)
	}
	defer r.history.Save()

	reader := bufio.NewReader(r.input)
	for {
		if r.beforePrompt != nil {
			r.beforePrompt()
		}
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}
		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "help":
		r.printHelp()
		return nil
	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil
	}

	cmd, ok := r.commands[name]
	if !ok {
		if s := r.completer.Complete(name); len(s) > 0 {
			return fmt.Errorf("unknown command %q (did you mean %s?)", name, strings.Join(s, ", "))
		}
		return fmt.Errorf("unknown command %q, type help for a list", name)
	}
	return cmd.Run(args)
}

func (r *REPL) printHelp() {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(r.output, "  %-12s %s\n", name, r.commands[name].Usage)
	}
	fmt.Fprintf(r.output, "  %-12s %s\n", "history", "Show command history")
	fmt.Fprintf(r.output, "  %-12s %s\n", "exit", "Leave the shell")
}
