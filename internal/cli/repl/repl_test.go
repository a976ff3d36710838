package repl

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
)

func newTestREPL(input string, commands ...Command) (*REPL, *bytes.Buffer) {
	output := &bytes.Buffer{}
	r := New(Config{
		Prompt: "ws> ",
		Input:  strings.NewReader(input),
		Output: output,
	}, commands...)
	return r, output
}

func TestREPL_Run_Exit(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"exit command", "exit\n"},
		{"quit command", "quit\n"},
		{"exit without newline", "exit"},
		{"EOF", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestREPL(tt.input)
			if err := r.Run(); err != nil {
				t.Errorf("Run() returned error: %v", err)
			}
		})
	}
}

func TestREPL_Run_Dispatch(t *testing.T) {
	var got [][]string
	echo := Command{
		Name:  "echo",
		Usage: "Print arguments",
		Run: func(args []string) error {
			got = append(got, args)
			return nil
		},
	}
	fail := Command{
		Name: "fail",
		Run:  func([]string) error { return errors.New("boom") },
	}

	r, output := newTestREPL("echo a  b\n\nfail\necho\nexit\n", echo, fail)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(got) != 2 || !slices.Equal(got[0], []string{"a", "b"}) || len(got[1]) != 0 {
		t.Errorf("echo calls = %q", got)
	}
	if !strings.Contains(output.String(), "Error: boom") {
		t.Errorf("output = %q, want command error printed", output.String())
	}
	if prompts := strings.Count(output.String(), "ws> "); prompts != 5 {
		t.Errorf("prompts = %d, want 5", prompts)
	}
}

func TestREPL_Run_UnknownCommand(t *testing.T) {
	save := Command{Name: "save", Run: func([]string) error { return nil }}
	r, output := newTestREPL("sa\nzzz\nexit\n", save)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := output.String()
	if !strings.Contains(out, "did you mean save?") {
		t.Errorf("output = %q, want suggestion", out)
	}
	if !strings.Contains(out, `unknown command "zzz"`) {
		t.Errorf("output = %q, want unknown command error", out)
	}
}

func TestREPL_Run_BeforePrompt(t *testing.T) {
	calls := 0
	r := New(Config{
		Input:        strings.NewReader("history\nexit\n"),
		Output:       &bytes.Buffer{},
		BeforePrompt: func() { calls++ },
	})
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("BeforePrompt calls = %d, want 2", calls)
	}
}

func TestREPL_Help(t *testing.T) {
	list := Command{Name: "list", Usage: "List slots", Run: func([]string) error { return nil }}
	r, output := newTestREPL("help\nexit\n", list)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output.String(), "List slots") {
		t.Errorf("help output = %q", output.String())
	}
}

func TestREPL_Run_HistoryAdded(t *testing.T) {
	r, output := newTestREPL("command1\ncommand2\nhistory\nexit\n")
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r.history.Get(0) != "exit" {
		t.Errorf("most recent command = %q, want %q", r.history.Get(0), "exit")
	}
	if r.history.Get(2) != "command2" {
		t.Errorf("third most recent = %q, want %q", r.history.Get(2), "command2")
	}
	if !strings.Contains(output.String(), "   2  command2") {
		t.Errorf("history output = %q", output.String())
	}
}
