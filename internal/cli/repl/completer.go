package repl

import (
	"sort"
	"strings"
)

// Commands understood by the shell.
var Commands = []string{"get", "put", "rm", "dump", "keys", "history", "help", "exit", "quit"}

// keyCommands take a key as their first argument.
var keyCommands = map[string]bool{"get": true, "put": true, "rm": true}

// Completer provides command and key completion for the REPL.
type Completer struct {
	commands []string
	keys     func() []string
}

// NewCompleter creates a Completer. keys supplies the dot paths offered
// after get, put and rm; it may be nil.
func NewCompleter(keys func() []string) *Completer {
	return &Completer{
		commands: Commands,
		keys:     keys,
	}
}

// Complete returns completion suggestions for a partial input line.
func (c *Completer) Complete(line string) []string {
	cmd, rest, hasArg := strings.Cut(line, " ")
	if !hasArg {
		return matchPrefix(c.commands, cmd)
	}
	if !keyCommands[cmd] || c.keys == nil || strings.Contains(rest, " ") {
		return nil
	}

	var suggestions []string
	for _, key := range matchPrefix(c.candidateKeys(), rest) {
		suggestions = append(suggestions, cmd+" "+key)
	}
	return suggestions
}

// candidateKeys returns every leaf path and every intermediate prefix, so
// that whole subtrees can be completed.
func (c *Completer) candidateKeys() []string {
	seen := make(map[string]bool)
	for _, key := range c.keys() {
		for i := 0; i < len(key); i++ {
			if key[i] == '.' {
				seen[key[:i]] = true
			}
		}
		seen[key] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func matchPrefix(candidates []string, prefix string) []string {
	var out []string
	for _, s := range candidates {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}
