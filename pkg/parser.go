package kea

import (
	"tlog.app/go/errors"
)

// Parser is a recursive descent parser with operator-precedence climbing for
// binary expressions. It owns no backend state; its only side effect is token
// consumption.
type Parser struct {
	filename  string
	tokenizer Tokenizer
	buf       *Token
	started   bool
}

func NewParser(tokenizer Tokenizer) *Parser {
	return &Parser{
		tokenizer: tokenizer,
		filename:  tokenizer.GetFilename(),
	}
}

func (p *Parser) GetFilename() string {
	return p.filename
}

// Current returns the lookahead token without consuming it.
func (p *Parser) Current() Token {
	return p.peek()
}

// Advance discards the current token. Drivers use it to resynchronize at the
// top level after a parse error.
func (p *Parser) Advance() {
	p.next()
}

// binopPrecedence returns how tightly a binary operator binds, or -1 for
// tokens that are no binary operator at all.
func binopPrecedence(tok Token) int {
	if tok.Typ != TokenChar {
		return -1
	}

	switch tok.Value {
	case "<":
		return 10
	case "+", "-":
		return 20
	case "*":
		return 40
	default:
		return -1
	}
}

// ParseDefinition parses
//
//	definition ::= 'def' prototype expression
func (p *Parser) ParseDefinition() (*Function, error) {
	if tok := p.next(); tok.Typ != TokenDef {
		return nil, errors.New("%v: expected 'def'", tok.Loc)
	}

	proto, err := p.parsePrototype()
	if err != nil {
		return nil, err
	}

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &Function{Proto: proto, Body: body}, nil
}

// ParseExtern parses
//
//	external ::= 'extern' prototype
func (p *Parser) ParseExtern() (*Prototype, error) {
	if tok := p.next(); tok.Typ != TokenExtern {
		return nil, errors.New("%v: expected 'extern'", tok.Loc)
	}

	return p.parsePrototype()
}

// ParseTopLevelExpr parses a bare expression and wraps it into an anonymous
// zero-argument function.
func (p *Parser) ParseTopLevelExpr() (*Function, error) {
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &Function{
		Proto: &Prototype{Name: AnonFuncName},
		Body:  e,
	}, nil
}

// expression ::= primary binoprhs
func (p *Parser) parseExpression() (Expr, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	return p.parseBinopRHS(0, lhs)
}

// binoprhs ::= (binop primary)*
//
// Operators are folded left-associatively as long as their precedence stays
// at or above exprPrec. When the operator after the freshly parsed rhs binds
// tighter than the one just consumed, the rhs is re-climbed first so the
// tighter operator groups to the right.
func (p *Parser) parseBinopRHS(exprPrec int, lhs Expr) (Expr, error) {
	for {
		tokPrec := binopPrecedence(p.peek())
		if tokPrec < exprPrec {
			return lhs, nil
		}

		op := p.next()

		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		if tokPrec < binopPrecedence(p.peek()) {
			rhs, err = p.parseBinopRHS(tokPrec+1, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs = &BinaryExpr{
			Op:  rune(op.Value[0]),
			Lhs: lhs,
			Rhs: rhs,
		}
	}
}

// primary ::= identifierexpr | numberexpr | parenexpr | ifexpr | forexpr
func (p *Parser) parsePrimary() (Expr, error) {
	switch tok := p.peek(); tok.Typ {
	case TokenIdentifier:
		return p.parseIdentifierExpr()
	case TokenNumber:
		return p.parseNumberExpr()
	case TokenIf:
		return p.parseIfExpr()
	case TokenFor:
		return p.parseForExpr()
	case TokenChar:
		if tok.Value == "(" {
			return p.parseParenExpr()
		}
	}

	tok := p.peek()
	return nil, errors.New("%v: unknown token when expecting an expression", tok.Loc)
}

// numberexpr ::= number
func (p *Parser) parseNumberExpr() (Expr, error) {
	tok := p.next()
	return &NumberExpr{Val: tok.Num}, nil
}

// parenexpr ::= '(' expression ')'
func (p *Parser) parseParenExpr() (Expr, error) {
	p.next() // Skip '('

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.consumeChar(")") {
		return nil, errors.New("%v: expected ')'", p.peek().Loc)
	}

	return e, nil
}

// identifierexpr
//
//	::= identifier
//	::= identifier '(' (expression (',' expression)*)? ')'
func (p *Parser) parseIdentifierExpr() (Expr, error) {
	id := p.next()

	if !p.checkChar("(") {
		return &VariableExpr{Name: id.Value}, nil
	}

	p.next() // Skip '('

	var args []Expr
	if !p.checkChar(")") {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			args = append(args, arg)

			if p.checkChar(")") {
				break
			}

			if !p.consumeChar(",") {
				return nil, errors.New("%v: expected ')' or ',' in argument list", p.peek().Loc)
			}
		}
	}

	p.next() // Skip ')'

	return &CallExpr{
		Callee: id.Value,
		Args:   args,
	}, nil
}

// ifexpr ::= 'if' expression 'then' expression 'else' expression
func (p *Parser) parseIfExpr() (Expr, error) {
	p.next() // Skip 'if'

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.next(); tok.Typ != TokenThen {
		return nil, errors.New("%v: expected 'then'", tok.Loc)
	}

	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.next(); tok.Typ != TokenElse {
		return nil, errors.New("%v: expected 'else'", tok.Loc)
	}

	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &IfExpr{
		Cond: cond,
		Then: then,
		Else: els,
	}, nil
}

// forexpr ::= 'for' identifier '=' expression ',' expression (',' expression)? 'in' expression
func (p *Parser) parseForExpr() (Expr, error) {
	p.next() // Skip 'for'

	id := p.next()
	if id.Typ != TokenIdentifier {
		return nil, errors.New("%v: expected identifier after 'for'", id.Loc)
	}

	if !p.consumeChar("=") {
		return nil, errors.New("%v: expected '=' after loop variable", p.peek().Loc)
	}

	start, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if !p.consumeChar(",") {
		return nil, errors.New("%v: expected ',' after loop start value", p.peek().Loc)
	}

	end, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	var step Expr
	if p.consumeChar(",") {
		step, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if tok := p.next(); tok.Typ != TokenIn {
		return nil, errors.New("%v: expected 'in' after loop clauses", tok.Loc)
	}

	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &ForExpr{
		Var:   id.Value,
		Start: start,
		End:   end,
		Step:  step,
		Body:  body,
	}, nil
}

// prototype ::= identifier '(' identifier* ')'
//
// Parameters may optionally be comma separated.
func (p *Parser) parsePrototype() (*Prototype, error) {
	name := p.next()
	if name.Typ != TokenIdentifier {
		return nil, errors.New("%v: expected function name in prototype", name.Loc)
	}

	if !p.consumeChar("(") {
		return nil, errors.New("%v: expected '(' in prototype", p.peek().Loc)
	}

	var params []string
	for {
		if p.check(TokenIdentifier) {
			params = append(params, p.next().Value)
			continue
		}

		if p.consumeChar(",") {
			continue
		}

		break
	}

	if !p.consumeChar(")") {
		return nil, errors.New("%v: expected ')' in prototype", p.peek().Loc)
	}

	return &Prototype{
		Name:   name.Value,
		Params: params,
	}, nil
}

func (p *Parser) peek() Token {
	if p.buf == nil {
		temp := p.next()
		p.buf = &temp
	}

	return *p.buf
}

func (p *Parser) next() Token {
	if p.buf != nil {
		if !p.buf.isValid() {
			// If an invalid token is buffered, don't try to get more tokens
			return *p.buf
		}

		temp := p.buf
		p.buf = nil

		return *temp
	}

	if !p.started {
		p.started = true
		go p.tokenizer.Do()
	}

	tok := p.tokenizer.Get()
	if !tok.isValid() {
		// Keep invalid tokens (Error, EOF) buffered since no more valid tokens are expected
		p.buf = &tok
	}

	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.peek().Typ == typ
}

func (p *Parser) checkChar(val string) bool {
	tok := p.peek()
	return tok.Typ == TokenChar && tok.Value == val
}

func (p *Parser) consumeChar(val string) bool {
	if !p.checkChar(val) {
		return false
	}

	p.next()

	return true
}
