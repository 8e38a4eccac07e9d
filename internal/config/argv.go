package config

import (
	"errors"
	"strings"
	"unicode"
)

var (
	errUnterminatedQuote  = errors.New("unterminated quote")
	errUnterminatedEscape = errors.New("unterminated escape sequence")
)

// parseArgv splits a child command line into argv words. Quotes group words
// and a backslash escapes the next rune. No expansion is performed. A line
// starting with '#' is treated as commented out.
func parseArgv(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, nil
	}

	var (
		argv    []string
		word    strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		if escaped {
			word.WriteRune(r)
			escaped = false
			continue
		}
		if quote != 0 {
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '\\':
			escaped, inWord = true, true
		case r == '"' || r == '\'':
			quote, inWord = r, true
		case unicode.IsSpace(r):
			if inWord {
				argv = append(argv, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escaped:
		return nil, errUnterminatedEscape
	case quote != 0:
		return nil, errUnterminatedQuote
	}
	if inWord {
		argv = append(argv, word.String())
	}
	return argv, nil
}
