package plan

import (
	"regexp"
	"strings"
	"unicode"
)

// Repair is one text-level fix for a known oracle JSON mistake. Every repair
// must leave well-formed JSON unchanged.
type Repair struct {
	Name  string
	Apply func(string) string
}

// CommonRepairs run, in order, on the extracted JSON text before the first parse.
var CommonRepairs = []Repair{
	{Name: "string-arrays", Apply: repairStringArrays},
	{Name: "element-arrays", Apply: repairElementArrays},
	{Name: "single-quotes", Apply: repairSingleQuotes},
	{Name: "nested-next-tasks", Apply: repairNestedNextTasks},
	{Name: "invalid-step-types", Apply: removeInvalidSteps},
	{Name: "double-commas", Apply: removeDoubleCommas},
	{Name: "trailing-commas", Apply: removeTrailingCommas},
}

// AggressiveRepairs run on the raw oracle text once the common pass failed.
var AggressiveRepairs = []Repair{
	{Name: "strip-fences", Apply: stripFences},
	{Name: "trailing-prose", Apply: dropTrailingProse},
	{Name: "selector-brace-suffix", Apply: trimSelectorBraces},
	{Name: "adjacent-objects", Apply: separateAdjacentObjects},
	{Name: "string-arrays", Apply: repairStringArrays},
	{Name: "element-arrays", Apply: repairElementArrays},
	{Name: "single-quotes", Apply: repairSingleQuotes},
	{Name: "invalid-step-types", Apply: removeInvalidSteps},
	{Name: "balance-brackets", Apply: balanceBrackets},
	{Name: "double-commas", Apply: removeDoubleCommas},
	{Name: "trailing-commas", Apply: removeTrailingCommas},
}

// Run applies repairs in order.
func Run(s string, repairs []Repair) string {
	for _, r := range repairs {
		s = r.Apply(s)
	}
	return s
}

const jsonString = `"(?:[^"\\]|\\.)*"`

var (
	fenceRe = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(.*?)\x60\x60\x60")

	// A bracketed run of string literals whose separators were lost or
	// polluted with stray closing braces.
	stringArrayRe = regexp.MustCompile(`\[\s*` + jsonString + `(?:[\s,}]*` + jsonString + `)*[\s,}]*\]`)
	stringLitRe   = regexp.MustCompile(jsonString)

	doubleWrappedElementRe = regexp.MustCompile(`("element"\s*:\s*)\[\s*(\[[^\[\]]*\])\s*\]`)
	extraElementCloserRe   = regexp.MustCompile(`("element"\s*:\s*\[[^\[\]]*\])(?:\s*\])+`)

	invalidStepRe = regexp.MustCompile(`\{\s*"id"\s*:\s*\d+\s*,\s*"type"\s*:\s*"(?:steps|externalActions|nextTasks)"[^{}]*\}`)

	doubleCommaRe   = regexp.MustCompile(`,(\s*,)+`)
	leadingCommaRe  = regexp.MustCompile(`([\[{])\s*,`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

	selectorBraceRe  = regexp.MustCompile(`"(\[[^"]*\])\}+"`)
	adjacentObjectRe = regexp.MustCompile(`\}(\s*)\{`)
)

// NormalizeWhitespace replaces every whitespace rune other than space, tab,
// CR and LF (plus the byte order mark) with a plain space.
func NormalizeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return r
		case '\uFEFF':
			return ' '
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

// Extract pulls the JSON candidate out of a free-text response: the content of
// a fenced block, else the span from the first '{' to the last '}'.
func Extract(response string) string {
	if m := fenceRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

func repairStringArrays(s string) string {
	return stringArrayRe.ReplaceAllStringFunc(s, func(m string) string {
		items := stringLitRe.FindAllString(m, -1)
		return "[" + strings.Join(items, ", ") + "]"
	})
}

func repairElementArrays(s string) string {
	s = doubleWrappedElementRe.ReplaceAllString(s, "$1$2")
	return extraElementCloserRe.ReplaceAllString(s, "$1")
}

// repairSingleQuotes turns single-quoted tokens outside string literals into
// double-quoted ones.
func repairSingleQuotes(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			b.WriteByte(c)
		case '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			body := s[i+1 : i+1+end]
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(body, `"`, `\"`))
			b.WriteByte('"')
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// repairNestedNextTasks empties a nextTasks array that itself contains a
// nextTasks key or objects nested inside objects. Flat objects are left for
// Transform to flatten.
func repairNestedNextTasks(s string) string {
	const key = `"nextTasks"`
	var b strings.Builder
	pos := 0
	for {
		idx := indexOutsideStrings(s, key, pos)
		if idx < 0 {
			b.WriteString(s[pos:])
			return b.String()
		}
		after := idx + len(key)
		open := skipSpace(s, after)
		if open < len(s) && s[open] == ':' {
			open = skipSpace(s, open+1)
		} else {
			b.WriteString(s[pos:after])
			pos = after
			continue
		}
		if open >= len(s) || s[open] != '[' {
			b.WriteString(s[pos:after])
			pos = after
			continue
		}
		end, ok := matchingClose(s, open)
		if !ok {
			b.WriteString(s[pos:])
			return b.String()
		}
		body := s[open+1 : end]
		b.WriteString(s[pos:idx])
		if indexOutsideStrings(body, key, 0) >= 0 || maxDepth(body) > 1 {
			b.WriteString(key + `: []`)
		} else {
			b.WriteString(s[idx : end+1])
		}
		pos = end + 1
	}
}

func removeInvalidSteps(s string) string {
	return invalidStepRe.ReplaceAllString(s, "")
}

func removeDoubleCommas(s string) string {
	return mapOutsideStrings(s, func(seg string) string {
		seg = doubleCommaRe.ReplaceAllString(seg, ",")
		return leadingCommaRe.ReplaceAllString(seg, "$1")
	})
}

func removeTrailingCommas(s string) string {
	return mapOutsideStrings(s, func(seg string) string {
		return trailingCommaRe.ReplaceAllString(seg, "$1")
	})
}

func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// dropTrailingProse cuts everything before the first '{' and after the object
// it opens, when that object closes.
func dropTrailingProse(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return s
	}
	s = s[start:]
	if end, ok := matchingClose(s, 0); ok {
		return s[:end+1]
	}
	return s
}

func trimSelectorBraces(s string) string {
	return selectorBraceRe.ReplaceAllString(s, `"$1"`)
}

func separateAdjacentObjects(s string) string {
	return mapOutsideStrings(s, func(seg string) string {
		return adjacentObjectRe.ReplaceAllString(seg, "},$1{")
	})
}

// balanceBrackets drops closers that do not match the innermost open bracket,
// closes an unterminated string and appends the missing closers.
func balanceBrackets(s string) string {
	var (
		b        strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				continue
			}
			stack = stack[:len(stack)-1]
		}
		b.WriteByte(c)
	}
	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// mapOutsideStrings applies fn to every maximal run of text that lies outside
// JSON string literals.
func mapOutsideStrings(s string, fn func(string) string) string {
	var (
		b        strings.Builder
		segStart int
		inString bool
		escaped  bool
	)
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				b.WriteString(s[segStart : i+1])
				segStart = i + 1
			}
			continue
		}
		if c == '"' {
			b.WriteString(fn(s[segStart:i]))
			segStart = i
			inString = true
		}
	}
	if inString {
		b.WriteString(s[segStart:])
	} else {
		b.WriteString(fn(s[segStart:]))
	}
	return b.String()
}

// matchingClose returns the index of the bracket closing the one at open.
func matchingClose(s string, open int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// maxDepth reports the deepest bracket nesting in s, ignoring string contents.
func maxDepth(s string) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			deepest = max(deepest, depth)
		case '}', ']':
			depth--
		}
	}
	return deepest
}

// indexOutsideStrings finds needle (itself a string literal) starting at a
// position where a string literal may begin.
func indexOutsideStrings(s, needle string, from int) int {
	inString, escaped := false, false
	for i := from; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			if strings.HasPrefix(s[i:], needle) {
				return i
			}
			inString = true
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\r' || s[i] == '\t') {
		i++
	}
	return i
}
