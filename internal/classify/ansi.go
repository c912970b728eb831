package classify

import "strings"

// StripControl removes ANSI escape codes and stray control characters from
// terminal output using a single O(n) pass. Raw PTY streams are full of color
// codes, cursor movement, and OSC title updates that would otherwise defeat
// pattern matching against the visible text.
//
// Regex is intentionally avoided here: complex ANSI regex patterns can
// backtrack catastrophically on malformed escape sequences.
func StripControl(content string) string {
	// Fast path: no escape chars at all.
	// \x1b is ESC, \x9B is the 8-bit CSI control character.
	if strings.IndexByte(content, '\x1b') < 0 && strings.IndexByte(content, '\x9B') < 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))

	i := 0
	for i < len(content) {
		if content[i] == '\x1b' {
			// CSI sequence: ESC [ ... letter
			if i+1 < len(content) && content[i+1] == '[' {
				j := i + 2
				for j < len(content) {
					c := content[j]
					if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
						j++
						break
					}
					j++
				}
				i = j
				continue
			}
			// OSC sequence: ESC ] ... BEL or ST
			if i+1 < len(content) && content[i+1] == ']' {
				bellPos := strings.Index(content[i:], "\x07")
				if bellPos != -1 {
					i += bellPos + 1
					continue
				}
				stPos := strings.Index(content[i:], "\x1b\\")
				if stPos != -1 {
					i += stPos + 2
					continue
				}
				// Unterminated OSC: drop the rest.
				break
			}
			// Other escape sequence: ESC followed by a single char.
			if i+1 < len(content) {
				i += 2
				continue
			}
			i++
			continue
		}
		// 8-bit CSI without ESC.
		if content[i] == '\x9B' {
			j := i + 1
			for j < len(content) {
				c := content[j]
				if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
					j++
					break
				}
				j++
			}
			i = j
			continue
		}
		b.WriteByte(content[i])
		i++
	}

	return b.String()
}
