package repl

import (
	"sort"
	"strings"
)

// Completer matches command paths by prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a completer over command paths such as
// "rooms list".
func NewCompleter(commands []string) *Completer {
	cmds := append([]string(nil), commands...)
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Complete returns the command paths starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.Join(strings.Fields(prefix), " ")
	var out []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			out = append(out, cmd)
		}
	}
	return out
}

// Suggest returns completions for word, falling back to commands that
// share its first letter.
func (c *Completer) Suggest(word string) []string {
	if s := c.Complete(word); len(s) > 0 || word == "" {
		return s
	}
	return c.Complete(word[:1])
}
