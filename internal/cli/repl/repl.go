package repl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yndnr/filekv/internal/cli/output"
)

// Prompt is printed before each input line.
const Prompt = "filekv> "

// Store is the document the shell operates on.
type Store interface {
	Get(key string) (any, bool, error)
	Put(key string, value any) error
	Remove(key string) error
	Keys() []string
	Snapshot() map[string]any
	Err() error
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	store     Store
	input     io.Reader
	output    io.Writer
	formatter output.Formatter
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithInput sets the input reader. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(repl *REPL) { repl.input = r }
}

// WithOutput sets the output writer. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(repl *REPL) { repl.output = w }
}

// WithFormatter sets how mappings are printed. Defaults to a table.
func WithFormatter(f output.Formatter) Option {
	return func(repl *REPL) { repl.formatter = f }
}

// WithHistory sets the history. Defaults to an in-memory history.
func WithHistory(h *History) Option {
	return func(repl *REPL) { repl.history = h }
}

// New creates a new REPL over store.
func New(store Store, opts ...Option) *REPL {
	r := &REPL{
		store:     store,
		input:     os.Stdin,
		output:    os.Stdout,
		formatter: &output.TableFormatter{},
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.completer = NewCompleter(store.Keys)
	return r
}

// Run starts the REPL loop. It returns nil on exit or end of input, and
// the store's fatal error if persistence fails.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: save history: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, Prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := err != nil

		line = strings.TrimSpace(line)
		if line == "" {
			if eof {
				fmt.Fprintln(r.output)
				return nil
			}
			continue
		}

		r.history.Add(line)

		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
		if err := r.store.Err(); err != nil {
			return err
		}
		if eof {
			fmt.Fprintln(r.output)
			return nil
		}
	}
}

func (r *REPL) execute(line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "get":
		if rest == "" {
			return errors.New("usage: get KEY")
		}
		v, ok, err := r.store.Get(rest)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: not found", rest)
		}
		return r.print(v)

	case "put":
		key, raw, _ := strings.Cut(rest, " ")
		raw = strings.TrimSpace(raw)
		if key == "" || raw == "" {
			return errors.New("usage: put KEY VALUE")
		}
		return r.store.Put(key, ParseValue(raw))

	case "rm":
		if rest == "" {
			return errors.New("usage: rm KEY")
		}
		return r.store.Remove(rest)

	case "dump":
		return r.formatter.Format(r.output, r.store.Snapshot())

	case "keys":
		for _, k := range r.store.Keys() {
			if rest == "" || strings.HasPrefix(k, rest) {
				fmt.Fprintln(r.output, k)
			}
		}
		return nil

	case "history":
		for i, entry := range r.history.Entries() {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
		}
		return nil

	case "help":
		r.printHelp()
		return nil

	default:
		if s := r.completer.Complete(cmd); len(s) > 0 {
			return fmt.Errorf("unknown command %q (did you mean %s?)", cmd, strings.Join(s, ", "))
		}
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}
}

func (r *REPL) print(v any) error {
	if m, ok := v.(map[string]any); ok {
		return r.formatter.Format(r.output, m)
	}
	_, err := fmt.Fprintln(r.output, output.FormatLeaf(v))
	return err
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.output, `Commands:
  get KEY          print the value or subtree at KEY
  put KEY VALUE    set KEY; VALUE is JSON, or a plain string
  rm KEY           remove KEY
  dump             print the whole document
  keys [PREFIX]    list leaf paths
  history          list previous commands
  exit, quit       leave the shell
`)
}

// ParseValue interprets raw as a single JSON value, falling back to the raw
// string. Numbers are kept as json.Number until the store checks them.
func ParseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}
	return v
}
