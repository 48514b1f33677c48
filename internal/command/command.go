// Package command parses composer input starting with "/" and dispatches it
// through a table of admin actions.
package command

import (
	"strings"
)

// Prefix marks composer input as a command.
const Prefix = "/"

// Command is a parsed slash command.
type Command struct {
	Verb    string
	Subverb string
	Args    []string
	Raw     string
}

// Key is the dispatch table key, "verb subverb".
func (c Command) Key() string {
	if c.Subverb == "" {
		return c.Verb
	}
	return c.Verb + " " + c.Subverb
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// IsCommand reports whether input should be parsed rather than sent.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), Prefix)
}

// Parse splits "/verb [subverb] [args...]". Verb and subverb are lower-cased;
// arguments are kept verbatim. ok is false when input is not a command.
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, Prefix) {
		return Command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, Prefix))
	cmd := Command{Raw: trimmed}
	if len(fields) == 0 {
		return cmd, true
	}
	cmd.Verb = strings.ToLower(fields[0])
	if len(fields) > 1 {
		cmd.Subverb = strings.ToLower(fields[1])
	}
	if len(fields) > 2 {
		cmd.Args = fields[2:]
	}
	return cmd, true
}
