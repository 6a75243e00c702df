// Package repl provides the interactive shell of the filekv CLI.
//
//   - repl.go: read-eval-print loop and command dispatch
//   - completer.go: command and key completion
//   - history.go: command history persistence
package repl
