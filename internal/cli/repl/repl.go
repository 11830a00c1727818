package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Executor runs one command line split into arguments.
type Executor func(args []string) error

// REPL is the read-eval-print loop.
type REPL struct {
	input   io.Reader
	output  io.Writer
	prompt  func() string
	exec    Executor
	history *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithPrompt sets a function computing the prompt before each line.
func WithPrompt(prompt func() string) Option {
	return func(r *REPL) { r.prompt = prompt }
}

// WithHistory records lines in h.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// New creates a REPL reading from in and writing prompts and errors to
// out.
func New(in io.Reader, out io.Writer, exec Executor, opts ...Option) *REPL {
	r := &REPL{
		input:  in,
		output: out,
		prompt: func() string { return "canvasmesh> " },
		exec:   exec,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, exit or quit.
func (r *REPL) Run() error {
	scanner := bufio.NewScanner(r.input)
	for {
		fmt.Fprint(r.output, r.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(r.output)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if r.history != nil {
			r.history.Add(line)
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		args, err := SplitArgs(line)
		if err == nil {
			err = r.exec(args)
		}
		if err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
}

// SplitArgs splits a line on whitespace. Quotes group words and are
// removed; a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inArg = true
		case ch == ' ' || ch == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(ch)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
