package formula

import (
	"fmt"
	"strings"
)

const (
	maxExpressionLength = 1024
	maxDepth            = 64
)

type parser struct {
	tokens []token
	pos    int
	depth  int
	idents map[string]struct{}
}

// Parse compiles src into an Expression. The grammar, lowest precedence first:
//
//	ternary    = or [ "?" ternary ":" ternary ]
//	or         = and { "||" and }
//	and        = equality { "&&" equality }
//	equality   = comparison { ("==" | "!=") comparison }
//	comparison = additive { ("<" | ">" | "<=" | ">=") additive }
//	additive   = term { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "%") unary }
//	unary      = ("-" | "+" | "!") unary | primary
//	primary    = number | string | identifier | "(" ternary ")"
func Parse(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyExpression
	}
	if len(src) > maxExpressionLength {
		return nil, ErrExpressionTooLong
	}

	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, idents: make(map[string]struct{})}
	root, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}

	idents := make([]string, 0, len(p.idents))
	for name := range p.idents {
		idents = append(idents, name)
	}

	return &Expression{src: src, root: root, idents: idents}, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) matchOperator(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokOperator {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return ErrTooDeep
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) ternary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	p.next()

	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if tok := p.next(); tok.kind != tokColon {
		return nil, fmt.Errorf("%w: expected ':' at %d", ErrSyntax, tok.pos)
	}
	otherwise, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &conditionalNode{cond: cond, then: then, otherwise: otherwise}, nil
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.matchOperator("||"); !ok {
			return left, nil
		}
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "||", left: left, right: right}
	}
}

func (p *parser) and() (node, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.matchOperator("&&"); !ok {
			return left, nil
		}
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "&&", left: left, right: right}
	}
}

func (p *parser) equality() (node, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOperator("==", "!=")
		if !ok {
			return left, nil
		}
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) comparison() (node, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOperator("<=", ">=", "<", ">")
		if !ok {
			return left, nil
		}
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) additive() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOperator("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOperator("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.matchOperator("-", "+", "!"); ok {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return &literalNode{value: Number(tok.num)}, nil
	case tokString:
		return &literalNode{value: String(tok.text)}, nil
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true":
			return &literalNode{value: Bool(true)}, nil
		case "false":
			return &literalNode{value: Bool(false)}, nil
		}
		name := strings.ToUpper(tok.text)
		p.idents[name] = struct{}{}
		return &identNode{name: name}, nil
	case tokLParen:
		inner, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, closing.pos)
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
}
