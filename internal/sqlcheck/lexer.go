package sqlcheck

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

func (t token) isKeyword(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

func (t token) isIdent() bool {
	return t.kind == tokWord || t.kind == tokQuotedIdent
}

// identText returns the identifier without its quoting characters
func (t token) identText() string {
	return t.text
}

// tokenize splits SQL text into tokens, discarding comments and keeping
// string literals opaque. Quote context is tracked so separators and
// keywords inside literals are never misread as structure.
func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	n := len(runes)

	for i < n {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++

		// line comment
		case c == '-' && i+1 < n && runes[i+1] == '-':
			for i < n && runes[i] != '\n' {
				i++
			}

		// block comment
		case c == '/' && i+1 < n && runes[i+1] == '*':
			end := strings.Index(string(runes[i+2:]), "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment")
			}
			i += 2 + end + 2

		// string literal, '' escapes a quote
		case c == '\'':
			text, next, err := scanQuoted(runes, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text})
			i = next

		// quoted identifier forms: "x", `x`, [x]
		case c == '"':
			text, next, err := scanQuoted(runes, i, '"')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: text})
			i = next
		case c == '`':
			text, next, err := scanQuoted(runes, i, '`')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: text})
			i = next
		case c == '[':
			end := i + 1
			for end < n && runes[end] != ']' {
				end++
			}
			if end >= n {
				return nil, fmt.Errorf("unterminated bracketed identifier")
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: string(runes[i+1 : end])})
			i = end + 1

		case isWordStart(c):
			end := i
			for end < n && isWordRune(runes[end]) {
				end++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[i:end])})
			i = end

		case unicode.IsDigit(c):
			end := i
			for end < n && (unicode.IsDigit(runes[end]) || runes[end] == '.' || runes[end] == 'e' || runes[end] == 'E') {
				end++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[i:end])})
			i = end

		default:
			tokens = append(tokens, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted reads a quoted region starting at i, where a doubled quote
// character escapes itself. Returns the unquoted text and the index past
// the closing quote.
func scanQuoted(runes []rune, i int, quote rune) (string, int, error) {
	var sb strings.Builder
	i++ // opening quote
	n := len(runes)
	for i < n {
		if runes[i] == quote {
			if i+1 < n && runes[i+1] == quote {
				sb.WriteRune(quote)
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(runes[i])
		i++
	}
	return "", i, fmt.Errorf("unterminated %q quote", string(quote))
}

func isWordStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '$'
}
