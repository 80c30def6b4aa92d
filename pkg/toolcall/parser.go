// Package toolcall extracts run_tool commands from model output.
//
// A command's arguments run to the next command or the end of its line:
//
//	run_tool <tool_name> key1="value1", key2='value2', key3=bareValue
//
// Every command in a completion is returned, in order of appearance,
// together with any conversational text written before the first one.
package toolcall

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Keyword introduces a tool command
const Keyword = "run_tool"

var (
	reasoningPattern = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)
	commandPattern   = regexp.MustCompile(`run_tool\s+([a-zA-Z0-9_]+)`)
	argumentPattern  = regexp.MustCompile(`(\w+)\s*=\s*("([^"]*)"|'([^']*)'|([^,]+))`)
)

// ErrNoCommand is returned by ParseCommand when the text holds no run_tool command
var ErrNoCommand = errors.New("no run_tool command found")

// Argument is a single key/value pair from a command's argument string
type Argument struct {
	Key   string
	Value string
}

// Arguments keeps pairs in order of appearance
type Arguments []Argument

// Lookup returns the value for key. A repeated key resolves to its last value.
func (a Arguments) Lookup(key string) (string, bool) {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i].Key == key {
			return a[i].Value, true
		}
	}
	return "", false
}

// Keys returns the distinct keys in order of first appearance
func (a Arguments) Keys() []string {
	seen := make(map[string]struct{}, len(a))
	keys := make([]string, 0, len(a))
	for _, arg := range a {
		if _, ok := seen[arg.Key]; ok {
			continue
		}
		seen[arg.Key] = struct{}{}
		keys = append(keys, arg.Key)
	}
	return keys
}

// Map flattens the pairs. Later duplicates overwrite earlier ones.
func (a Arguments) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, arg := range a {
		m[arg.Key] = arg.Value
	}
	return m
}

// String renders the pairs back in command syntax with every value double quoted
func (a Arguments) String() string {
	parts := make([]string, len(a))
	for i, arg := range a {
		parts[i] = fmt.Sprintf("%s=%q", arg.Key, arg.Value)
	}
	return strings.Join(parts, ", ")
}

// ParseError reports an argument string that could not be fully understood
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse arguments %q: %s", e.Input, e.Reason)
}

// Call is one run_tool command found in a completion
type Call struct {
	Name      string
	Arguments Arguments
	// Raw is the argument string as written, trimmed
	Raw string
	// Err is set when Raw held text that yielded no key=value pairs.
	// Arguments still carries whatever could be extracted.
	Err error
}

// Result is the outcome of parsing one completion
type Result struct {
	// Preamble is the trimmed text before the first run_tool keyword
	Preamble string
	Calls    []Call
}

// HasCalls reports whether at least one command was found
func (r Result) HasCalls() bool {
	return len(r.Calls) > 0
}

// Single returns the command when the text was exactly one command with no preamble
func (r Result) Single() (Call, bool) {
	if len(r.Calls) != 1 || r.Preamble != "" {
		return Call{}, false
	}
	return r.Calls[0], true
}

// StripReasoning removes the first <think>...</think> block (with the
// whitespace after it) and trims the result.
func StripReasoning(text string) string {
	if loc := reasoningPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	}
	return strings.TrimSpace(text)
}

// Parse finds every run_tool command in text. Text without any command
// yields a Result with no calls; the caller treats it as a final answer.
func Parse(text string) Result {
	matches := commandPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Result{}
	}

	result := Result{Calls: make([]Call, 0, len(matches))}
	if idx := strings.Index(text, Keyword); idx >= 0 {
		result.Preamble = strings.TrimSpace(text[:idx])
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		segment := text[m[1]:end]
		if nl := strings.IndexByte(segment, '\n'); nl >= 0 {
			segment = segment[:nl]
		}

		raw := strings.TrimSpace(segment)
		args, err := ParseArguments(raw)
		result.Calls = append(result.Calls, Call{
			Name:      text[m[2]:m[3]],
			Arguments: args,
			Raw:       raw,
			Err:       err,
		})
	}

	return result
}

// ParseCommand parses a single command such as a line typed at the console
func ParseCommand(text string) (Call, error) {
	result := Parse(text)
	if !result.HasCalls() {
		return Call{}, ErrNoCommand
	}
	return result.Calls[0], nil
}

// ParseArguments extracts key/value pairs. A double-quoted value wins over a
// single-quoted one, which wins over a bare value; bare values are trimmed.
// An empty input is valid and yields no pairs.
func ParseArguments(input string) (Arguments, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	var args Arguments
	for _, idx := range argumentPattern.FindAllStringSubmatchIndex(input, -1) {
		key := input[idx[2]:idx[3]]
		var value string
		switch {
		case idx[6] >= 0:
			value = input[idx[6]:idx[7]]
		case idx[8] >= 0:
			value = input[idx[8]:idx[9]]
		default:
			value = strings.TrimSpace(input[idx[10]:idx[11]])
		}
		args = append(args, Argument{Key: key, Value: value})
	}

	if len(args) == 0 {
		return nil, &ParseError{Input: input, Reason: "no key=value pairs"}
	}
	return args, nil
}
