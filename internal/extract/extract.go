// Package extract pulls fenced code blocks out of markdown model output.
package extract

import (
	"errors"
	"iter"
	"regexp"
	"strings"
	"sync"
)

// ErrNotFound is returned when the text contains no block with the tag.
var ErrNotFound = errors.New("extract: no fenced code block found")

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// pattern matches ```tag<newline>body```. Fences may sit mid-line. An empty
// tag accepts any info string.
func pattern(tag string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[tag]; ok {
		return re
	}
	info := `[\w+#.-]*`
	if tag != "" {
		info = `(?i:` + regexp.QuoteMeta(tag) + `)`
	}
	re := regexp.MustCompile("(?s)```" + info + "[ \\t]*\\r?\\n(.*?)```")
	patterns[tag] = re
	return re
}

// Blocks yields the body of every block tagged tag, in order. The text is
// scanned once, lazily.
func Blocks(text, tag string) iter.Seq[string] {
	re := pattern(tag)
	return func(yield func(string) bool) {
		rest := text
		for {
			loc := re.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			if !yield(trimBody(rest[loc[2]:loc[3]])) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// All returns every block body, or ErrNotFound.
func All(text, tag string) ([]string, error) {
	var out []string
	for b := range Blocks(text, tag) {
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// First returns the first block body, or ErrNotFound.
func First(text, tag string) (string, error) {
	for b := range Blocks(text, tag) {
		return b, nil
	}
	return "", ErrNotFound
}

func trimBody(s string) string {
	return strings.Trim(s, "\r\n")
}
