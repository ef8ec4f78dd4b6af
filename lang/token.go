// Package lang implements the product search expression language: a
// tokenizer, a recursive-descent parser producing an AST, function
// overload resolution, and a semantic analyzer that binds types and
// resolves parameter references before the SQL builder consumes the
// result.
package lang

import (
	"fmt"
	"regexp"
	"strings"
)

// TokenKind enumerates the lexical categories produced by the tokenizer.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokInteger
	TokReal
	TokText
	TokBoolean
	TokTimestamp
	TokUUID
	TokName
	TokParameter
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokComma
	TokDot
	TokOperator
	TokKeyword
	TokGeometryTag
)

// Token is one lexical unit with its decoded value (for literals) and raw
// text (for names/operators/keywords).
type Token struct {
	Kind  TokenKind
	Text  string
	Value any
}

var keywords = map[string]bool{
	"or": true, "and": true, "not": true, "in": true,
	"true": true, "false": true,
}

var geometryTags = map[string]bool{
	"POINT": true, "LINESTRING": true, "POLYGON": true,
	"MULTIPOINT": true, "MULTILINESTRING": true, "MULTIPOLYGON": true,
}

var (
	reWhitespace = regexp.MustCompile(`^\s+`)
	reTimestamp  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}:\d{2}(\.\d+)?)?`)
	reUUID       = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	reReal       = regexp.MustCompile(`^[0-9]+\.[0-9]+([eE][+-]?[0-9]+)?|^[0-9]+[eE][+-]?[0-9]+`)
	reHex        = regexp.MustCompile(`^0[xX][0-9a-fA-F]+`)
	reOct        = regexp.MustCompile(`^0[oO][0-7]+`)
	reBin        = regexp.MustCompile(`^0[bB][01]+`)
	reInt        = regexp.MustCompile(`^[0-9]+`)
	reName       = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	reOperator   = regexp.MustCompile(`^(==|!=|<=|>=|~=|[<>+\-*/@])`)
)

// Tokenizer splits expression text into a stream of Tokens.
type Tokenizer struct {
	src string
	pos int
}

// NewTokenizer builds a Tokenizer over src.
func NewTokenizer(src string) *Tokenizer { return &Tokenizer{src: src} }

func (t *Tokenizer) rest() string { return t.src[t.pos:] }

func (t *Tokenizer) skipWhitespace() {
	if loc := reWhitespace.FindString(t.rest()); loc != "" {
		t.pos += len(loc)
	}
}

// Next returns the next token in the stream, or a TokEOF token once input
// is exhausted.
func (t *Tokenizer) Next() (Token, error) {
	t.skipWhitespace()
	if t.pos >= len(t.src) {
		return Token{Kind: TokEOF}, nil
	}
	rest := t.rest()

	switch rest[0] {
	case '(':
		t.pos++
		return Token{Kind: TokLParen, Text: "("}, nil
	case ')':
		t.pos++
		return Token{Kind: TokRParen, Text: ")"}, nil
	case '[':
		t.pos++
		return Token{Kind: TokLBracket, Text: "["}, nil
	case ']':
		t.pos++
		return Token{Kind: TokRBracket, Text: "]"}, nil
	case ',':
		t.pos++
		return Token{Kind: TokComma, Text: ","}, nil
	case '.':
		// Only a standalone dot (namespace/field separator); numeric '.5'
		// forms are not part of the grammar, matching the original tokenizer.
		t.pos++
		return Token{Kind: TokDot, Text: "."}, nil
	case '"':
		return t.readString()
	}

	if match := reTimestamp.FindString(rest); match != "" {
		ts, err := parseTimestamp(match)
		if err != nil {
			return Token{}, err
		}
		t.pos += len(match)
		return Token{Kind: TokTimestamp, Text: match, Value: ts}, nil
	}
	if match := reUUID.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokUUID, Text: match, Value: match}, nil
	}
	if match := reHex.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokInteger, Text: match}, nil
	}
	if match := reOct.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokInteger, Text: match}, nil
	}
	if match := reBin.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokInteger, Text: match}, nil
	}
	if match := reReal.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokReal, Text: match}, nil
	}
	if match := reInt.FindString(rest); match != "" {
		t.pos += len(match)
		return Token{Kind: TokInteger, Text: match}, nil
	}
	if match := reName.FindString(rest); match != "" {
		t.pos += len(match)
		lower := strings.ToLower(match)
		if keywords[lower] {
			return Token{Kind: TokKeyword, Text: lower}, nil
		}
		if geometryTags[strings.ToUpper(match)] {
			return Token{Kind: TokGeometryTag, Text: strings.ToUpper(match)}, nil
		}
		return Token{Kind: TokName, Text: match}, nil
	}
	if match := reOperator.FindString(rest); match != "" {
		t.pos += len(match)
		if match == "@" {
			return Token{Kind: TokParameter, Text: match}, nil
		}
		return Token{Kind: TokOperator, Text: match}, nil
	}

	return Token{}, fmt.Errorf("lang: unexpected character %q at offset %d", rest[0], t.pos)
}

func (t *Tokenizer) readString() (Token, error) {
	rest := t.rest()
	var b strings.Builder
	i := 1
	for i < len(rest) {
		c := rest[i]
		if c == '"' {
			i++
			t.pos += i
			return Token{Kind: TokText, Text: b.String(), Value: b.String()}, nil
		}
		if c == '\\' && i+1 < len(rest) {
			unescaped, n := unescapeOne(rest[i+1:])
			b.WriteString(unescaped)
			i += 1 + n
			continue
		}
		b.WriteByte(c)
		i++
	}
	return Token{}, fmt.Errorf("lang: unterminated string literal")
}

// unescapeOne decodes a single C-style escape sequence starting right
// after the backslash, returning the decoded text and how many input
// bytes were consumed.
func unescapeOne(rest string) (string, int) {
	if rest == "" {
		return "", 0
	}
	switch rest[0] {
	case 'n':
		return "\n", 1
	case 't':
		return "\t", 1
	case 'r':
		return "\r", 1
	case '"':
		return "\"", 1
	case '\\':
		return "\\", 1
	default:
		return string(rest[0]), 1
	}
}
