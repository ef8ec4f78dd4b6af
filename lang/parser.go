package lang

import (
	"fmt"
	"strconv"
	"strings"

	"eve.evalgo.org/muninn/schema"
	"github.com/google/uuid"
)

// Parser turns a token stream into an AST, following the grammar in
// spec.md §4.3 (precedence low to high): or, and, not, comparison,
// additive, multiplicative, unary, atom.
type Parser struct {
	tok  *Tokenizer
	cur  Token
	peek *Token
}

// Parse parses src into an expression AST.
func Parse(src string) (Node, error) {
	p := &Parser{tok: NewTokenizer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, fmt.Errorf("lang: unexpected trailing input near %q", p.cur.Text)
	}
	return node, nil
}

func (p *Parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.tok.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokKeyword && p.cur.Text == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &FunctionCall{Name: OpOr, Arguments: []Node{left, right}}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokKeyword && p.cur.Text == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &FunctionCall{Name: OpAnd, Arguments: []Node{left, right}}
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.cur.Kind == TokKeyword && p.cur.Text == "not" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &FunctionCall{Name: OpNot, Arguments: []Node{operand}}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	op, negate := "", false
	switch {
	case p.cur.Kind == TokOperator && p.cur.Text == "==":
		op = OpEq
	case p.cur.Kind == TokOperator && p.cur.Text == "!=":
		op = OpNe
	case p.cur.Kind == TokOperator && p.cur.Text == "<":
		op = OpLt
	case p.cur.Kind == TokOperator && p.cur.Text == ">":
		op = OpGt
	case p.cur.Kind == TokOperator && p.cur.Text == "<=":
		op = OpLe
	case p.cur.Kind == TokOperator && p.cur.Text == ">=":
		op = OpGe
	case p.cur.Kind == TokOperator && p.cur.Text == "~=":
		op = OpLike
	case p.cur.Kind == TokKeyword && p.cur.Text == "in":
		op = OpIn
	case p.cur.Kind == TokKeyword && p.cur.Text == "not":
		// "not in"
		if err := p.advance(); err != nil {
			return nil, err
		}
		if !(p.cur.Kind == TokKeyword && p.cur.Text == "in") {
			return nil, fmt.Errorf("lang: expected 'in' after 'not'")
		}
		op, negate = OpIn, true
	}
	if op == "" {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	call := Node(&FunctionCall{Name: op, Arguments: []Node{left, right}})
	if negate {
		call = &FunctionCall{Name: OpNot, Arguments: []Node{call}}
	}
	return call, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokOperator && (p.cur.Text == "+" || p.cur.Text == "-") {
		op := OpAdd
		if p.cur.Text == "-" {
			op = OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &FunctionCall{Name: op, Arguments: []Node{left, right}}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokOperator && (p.cur.Text == "*" || p.cur.Text == "/") {
		op := OpMul
		if p.cur.Text == "/" {
			op = OpDiv
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &FunctionCall{Name: op, Arguments: []Node{left, right}}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.cur.Kind == TokOperator && (p.cur.Text == "+" || p.cur.Text == "-") {
		op := OpPos
		if p.cur.Text == "-" {
			op = OpNeg
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &FunctionCall{Name: op, Arguments: []Node{operand}}, nil
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() (Node, error) {
	switch {
	case p.cur.Kind == TokInteger:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := parseIntLiteral(text)
		if err != nil {
			return nil, err
		}
		return newLiteral(schema.KindLong, v), nil

	case p.cur.Kind == TokReal:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("lang: invalid real literal %q", text)
		}
		return newLiteral(schema.KindReal, v), nil

	case p.cur.Kind == TokText:
		v := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return newLiteral(schema.KindText, v), nil

	case p.cur.Kind == TokTimestamp:
		v := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return newLiteral(schema.KindTimestamp, v), nil

	case p.cur.Kind == TokUUID:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("lang: invalid uuid literal %q", text)
		}
		return newLiteral(schema.KindUUID, id), nil

	case p.cur.Kind == TokKeyword && (p.cur.Text == "true" || p.cur.Text == "false"):
		v := p.cur.Text == "true"
		if err := p.advance(); err != nil {
			return nil, err
		}
		return newLiteral(schema.KindBoolean, v), nil

	case p.cur.Kind == TokParameter:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokName {
			return nil, fmt.Errorf("lang: expected parameter name after '@'")
		}
		name := p.cur.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ParameterReference{Name: name}, nil

	case p.cur.Kind == TokLBracket:
		return p.parseList()

	case p.cur.Kind == TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != TokRParen {
			return nil, fmt.Errorf("lang: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil

	case p.cur.Kind == TokGeometryTag:
		return p.parseGeometryLiteral()

	case p.cur.Kind == TokName:
		return p.parseNameOrCall()
	}

	return nil, fmt.Errorf("lang: unexpected token %q", p.cur.Text)
}

func parseIntLiteral(text string) (int64, error) {
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		return strconv.ParseInt(text[2:], 16, 64)
	case strings.HasPrefix(text, "0o") || strings.HasPrefix(text, "0O"):
		return strconv.ParseInt(text[2:], 8, 64)
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		return strconv.ParseInt(text[2:], 2, 64)
	default:
		return strconv.ParseInt(text, 10, 64)
	}
}

func (p *Parser) parseList() (Node, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var elems []Node
	for p.cur.Kind != TokRBracket {
		elem, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRBracket {
		return nil, fmt.Errorf("lang: expected ']'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &List{Elements: elems}, nil
}

// parseNameOrCall parses a dotted name with optional subscript
// (ns.field.subscript) or, if followed by '(', a function call.
func (p *Parser) parseNameOrCall() (Node, error) {
	first := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.cur.Kind == TokLParen {
		return p.parseCallArguments(first)
	}

	parts := []string{first}
	for p.cur.Kind == TokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokName {
			return nil, fmt.Errorf("lang: expected identifier after '.'")
		}
		parts = append(parts, p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	switch len(parts) {
	case 1:
		return &Name{Field: parts[0], Raw: parts}, nil
	case 2:
		return &Name{Namespace: parts[0], Field: parts[1], Raw: parts}, nil
	default:
		return &Name{Namespace: parts[0], Field: parts[1], Subscript: strings.Join(parts[2:], "."), Raw: parts}, nil
	}
}

func (p *Parser) parseCallArguments(name string) (Node, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []Node
	for p.cur.Kind != TokRParen {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, fmt.Errorf("lang: expected ')'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return &FunctionCall{Name: name, Arguments: args}, nil
}
