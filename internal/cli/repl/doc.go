// Package repl runs canvasmesh-cli commands interactively.
//
// Each input line is split into arguments (single and double quotes
// group words) and handed to an executor. Lines are kept in a history
// file between sessions. The Completer lists known command paths for a
// prefix; the shell uses it to suggest commands after a typo.
package repl
