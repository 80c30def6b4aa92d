package toolcall

import (
	"strconv"
	"strings"
)

// Literal interprets a bare argument value the way the console displays it:
// integers, floats, True/False, None and quoted strings become typed values.
// Anything else comes back unchanged as a string.
func Literal(value string) interface{} {
	v := strings.TrimSpace(value)

	switch v {
	case "True":
		return true
	case "False":
		return false
	case "None":
		return nil
	}

	if n, ok := parseInt(v); ok {
		return n
	}
	if leadingZeroInt(v) {
		return value
	}
	if strings.ContainsAny(v, "0123456789") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}

	return value
}

// Literals applies Literal to every value, keeping the last value of repeated keys
func (a Arguments) Literals() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for _, arg := range a {
		out[arg.Key] = Literal(arg.Value)
	}
	return out
}

// parseInt accepts decimal integers and the explicit 0x, 0o and 0b forms.
func parseInt(v string) (int64, bool) {
	digits := strings.TrimLeft(v, "+-")
	if len(v)-len(digits) > 1 {
		return 0, false
	}
	if len(digits) > 2 && digits[0] == '0' {
		switch digits[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			n, err := strconv.ParseInt(v, 0, 64)
			return n, err == nil
		}
	}
	if leadingZeroInt(v) {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// leadingZeroInt reports a decimal integer such as 010, which is not a
// valid literal. A run of zeros is still zero.
func leadingZeroInt(v string) bool {
	digits := strings.TrimLeft(v, "+-")
	if len(digits) < 2 || digits[0] != '0' {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.Trim(digits, "0") != ""
}
