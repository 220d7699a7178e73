// Package shellsplit splits an MI command's argument tail the way GDB
// itself does: single/double quotes are honored, runs of whitespace
// collapse to one separator, and splitting stops at a newline.
//
// It wraps github.com/google/shlex (the same shell-lexer the
// docker/buildx DAP monitor uses for its own command-line handling)
// rather than hand-rolling quote handling.
package shellsplit

import (
	"strings"

	"github.com/google/shlex"
)

// Split splits line into arguments per the MI adapter's shell-like
// splitting rules. A malformed quote (shlex's only failure mode) is
// not propagated, since the MI parser's contract (spec §4.3) has no
// slot for a tokenizer error: the line is instead split on runs of
// whitespace with quotes left as literal characters.
func Split(line string) []string {
	// Splitting stops at newline; callers already pass a single line,
	// but a defensive cut keeps this function correct if that changes.
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	fields, err := shlex.Split(line)
	if err != nil {
		// Best-effort: fall back to whitespace-run splitting so a
		// trailing unterminated quote doesn't discard the whole line.
		return strings.Fields(line)
	}
	return fields
}
