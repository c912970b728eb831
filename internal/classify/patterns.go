package classify

import (
	"log/slog"
	"regexp"

	"github.com/HarikaMhae/claude-terminal-panel/internal/logging"
)

var patternLog = logging.ForComponent(logging.CompClassify)

// DefaultWaitPatterns returns the built-in prompt-wait patterns. The list is
// plain data so it ports unchanged across configurations; detection behavior
// is tuned by editing this list, not by adding code.
func DefaultWaitPatterns() []string {
	return []string{
		// REPL-style trailing prompt markers
		`(?m)[>»❯▸]\s*$`,
		`(?m)[$%#]\s+$`,

		// Yes/no confirmation markers
		`(?i)\(y\/n\)\s*:?\s*$`,
		`(?i)\[y\/n\]\s*:?\s*$`,
		`(?i)\(y\/n\/[a-z]+\)`,
		`(?i)\[(yes\/no|y\/n\/a)\]`,
		`(?i)\(yes\/no\)\s*:?\s*$`,

		// Imperative confirmation words at line end
		`(?im)\b(continue|proceed|confirm|overwrite|accept|approve)\??\s*$`,
		`(?i)press (enter|any key|return) to (continue|proceed|select)`,

		// Interactive-menu selector glyphs
		`(?m)^\s*[❯▸►→]\s+\S`,
		`(?i)use arrow keys`,

		// Known-tool-specific hints
		`(?i)do you want`,
		`(?i)do you trust the files in this folder\?`,
		`No, and tell Claude what to do differently`,
		`(?i)yes, allow`,
		`(?im)password\s*(for [^\n:]*)?:\s*$`,
		`(?i)\? .*\(Use arrow keys\)`,

		// Generic "would you like…" phrasing
		`(?i)would you like`,
	}
}

// DefaultTailLength is how many trailing characters of the (stripped) buffer
// are tested against the pattern set. Prompts occur at the tail of output.
const DefaultTailLength = 200

// PatternSet is an immutable, compiled collection of wait patterns. Build a
// new set to reconfigure; the classifier swaps sets atomically so no
// evaluation ever observes a partially replaced one.
type PatternSet struct {
	regexps []*regexp.Regexp
	tailLen int
}

// NewPatternSet compiles the built-in defaults plus any caller-supplied
// pattern strings. A pattern that fails to compile is dropped with a warning
// and never surfaces as an error; the set proceeds with the valid remainder.
func NewPatternSet(custom []string) *PatternSet {
	all := append(DefaultWaitPatterns(), custom...)
	set := &PatternSet{
		regexps: make([]*regexp.Regexp, 0, len(all)),
		tailLen: DefaultTailLength,
	}
	for _, p := range all {
		re, err := regexp.Compile(p)
		if err != nil {
			patternLog.Warn("invalid_wait_pattern",
				slog.String("pattern", p),
				slog.String("error", err.Error()))
			continue
		}
		set.regexps = append(set.regexps, re)
	}
	return set
}

// Size returns the number of compiled patterns in the set.
func (s *PatternSet) Size() int {
	return len(s.regexps)
}

// Matches reports whether the tail of the given raw buffer content looks
// like a prompt waiting for input. Control sequences are stripped first,
// then only the trailing characters are tested; the result is the logical
// OR across patterns, so pattern order never affects the outcome.
//
// For a fixed content string and pattern set the result is deterministic;
// Matches performs no I/O and mutates nothing.
func (s *PatternSet) Matches(content string) bool {
	t := tail(StripControl(content), s.tailLen)
	if t == "" {
		return false
	}
	for _, re := range s.regexps {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
