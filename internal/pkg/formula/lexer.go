package formula

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOperator
	tokLParen
	tokRParen
	tokQuestion
	tokColon
)

type token struct {
	kind tokenKind
	text string
	num  decimal.Decimal
	pos  int
}

// operators ordered longest first so that ">=" wins over ">".
var operators = []string{"===", "!==", "==", "!=", ">=", "<=", "&&", "||", "+", "-", "*", "/", "%", ">", "<", "!"}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := rune(src[i])

		switch {
		case unicode.IsSpace(c):
			i++
			continue

		case isDigit(src[i]) || (src[i] == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			seenDot := false
			for i < len(src) && (isDigit(src[i]) || (src[i] == '.' && !seenDot)) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}
			lit := src[start:i]
			d, err := decimal.NewFromString(lit)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid number %q at %d", ErrSyntax, lit, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: lit, num: d, pos: start})
			continue

		case c == '\'' || c == '"':
			start := i
			s, next, err := readString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: s, pos: start})
			i = next
			continue

		case isIdentStart(src[i]):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
			continue

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
			continue
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
			continue
		case c == '?':
			tokens = append(tokens, token{kind: tokQuestion, text: "?", pos: i})
			i++
			continue
		case c == ':':
			tokens = append(tokens, token{kind: tokColon, text: ":", pos: i})
			i++
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(src[i:], op) {
				text := op
				// strict equality has the same meaning here
				if op == "===" {
					text = "=="
				} else if op == "!==" {
					text = "!="
				}
				tokens = append(tokens, token{kind: tokOperator, text: text, pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, src[i], i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func readString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
			}
			b.WriteByte(src[i+1])
			i += 2
		case ch == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
