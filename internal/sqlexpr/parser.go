// Package sqlexpr parses boolean WHERE-clause fragments supplied verbatim by
// callers. It accepts the portable subset shared by sqlite, postgres and mysql
// and rejects anything that could change the structure of the surrounding
// statement (statement separators, unbalanced parentheses, dangling operators).
package sqlexpr

import (
	"fmt"
	"strings"
)

// ParseError reports where a fragment stopped being parsable.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func newParseError(line, col int, msg string) *ParseError {
	return &ParseError{Line: line, Col: col, Msg: msg}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Fragment is a parsed WHERE-clause fragment.
type Fragment struct {
	Expr         Expr
	Placeholders int
	Comments     int
}

// Parse lexes and parses a fragment. The whole input must form a single
// expression.
func Parse(src string) (*Fragment, error) {
	if strings.TrimSpace(src) == "" {
		return nil, newParseError(1, 1, "empty expression")
	}
	lexer := NewLexer(src)
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		if tok.Type == TokenSemicolon {
			return nil, p.errorf("statement separator ';' is not allowed")
		}
		return nil, p.errorf("unexpected %s %q after expression", tok.Type, tok.Literal)
	}
	return &Fragment{Expr: expr, Placeholders: p.placeholders, Comments: lexer.Comments()}, nil
}

// MaxDepth bounds how deeply parentheses, NOT chains, unary minus and
// function calls may nest within one fragment.
const MaxDepth = 1000

// Parser is a recursive descent parser over a token stream.
type Parser struct {
	tokens       []Token
	pos          int
	placeholders int
	depth        int
}

// --- Token helpers ---

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errorf("expected %s, got %s %q", tt, tok.Type, tok.Literal)
	}
	return p.advance(), nil
}

func (p *Parser) match(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	tok := p.peek()
	return newParseError(tok.Line, tok.Col, fmt.Sprintf(format, args...))
}

// enter must be paired with leave on every recursive descent.
func (p *Parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.errorf("expression nested deeper than %d levels", MaxDepth)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// --- Grammar ---

func (p *Parser) parseExpression() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(TokenOR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.match(TokenAND) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.match(TokenNOT) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.parsePredicate()
}

var comparisonOps = map[TokenType]string{
	TokenEQ:  "=",
	TokenNEQ: "<>",
	TokenLT:  "<",
	TokenLTE: "<=",
	TokenGT:  ">",
	TokenGTE: ">=",
}

func (p *Parser) parsePredicate() (Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if op, ok := comparisonOps[tok.Type]; ok {
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	switch tok.Type {
	case TokenIS:
		p.advance()
		not := p.match(TokenNOT)
		if _, err := p.expect(TokenNULL); err != nil {
			return nil, err
		}
		return &IsNullExpr{X: left, Not: not}, nil
	case TokenNOT:
		// x NOT IN / NOT LIKE / NOT BETWEEN
		switch p.peekAt(1).Type {
		case TokenIN, TokenLIKE, TokenBETWEEN:
			p.advance()
			return p.parsePostfix(left, true)
		}
		return nil, p.errorf("expected IN, LIKE or BETWEEN after NOT")
	case TokenIN, TokenLIKE, TokenBETWEEN:
		return p.parsePostfix(left, false)
	}

	return left, nil
}

func (p *Parser) parsePostfix(left Expr, not bool) (Expr, error) {
	switch p.advance().Type {
	case TokenIN:
		if _, err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		var list []Expr
		for {
			item, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			list = append(list, item)
			if !p.match(TokenComma) {
				break
			}
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &InExpr{X: left, List: list, Not: not}, nil
	case TokenLIKE:
		pattern, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &LikeExpr{X: left, Pattern: pattern, Not: not}, nil
	default: // TokenBETWEEN
		low, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenAND); err != nil {
			return nil, err
		}
		high, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{X: left, Low: low, High: high, Not: not}, nil
	}
}

func (p *Parser) parseAddSub() (Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case TokenPlus:
			op = "+"
		case TokenMinus:
			op = "-"
		case TokenConcat:
			op = "||"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMulDiv() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case TokenStar:
			op = "*"
		case TokenSlash:
			op = "/"
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.match(TokenMinus) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", X: x}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &ParenExpr{X: inner}, nil
	case TokenNumber:
		p.advance()
		return &NumberLit{Text: tok.Literal}, nil
	case TokenString:
		p.advance()
		return &StringLit{Value: tok.Literal}, nil
	case TokenTRUE, TokenFALSE:
		p.advance()
		return &BoolLit{Value: tok.Type == TokenTRUE}, nil
	case TokenNULL:
		p.advance()
		return &NullLit{}, nil
	case TokenPlaceholder:
		p.advance()
		ph := &Placeholder{Index: p.placeholders}
		p.placeholders++
		return ph, nil
	case TokenIdentifier, TokenQuotedIdentifier:
		p.advance()
		if tok.Type == TokenIdentifier && p.peek().Type == TokenLParen {
			return p.parseFunctionCall(tok.Literal)
		}
		if p.match(TokenDot) {
			name := p.peek()
			if name.Type != TokenIdentifier && name.Type != TokenQuotedIdentifier {
				return nil, p.errorf("expected column name after %q.", tok.Literal)
			}
			p.advance()
			return &Ident{Qualifier: tok.Literal, Name: name.Literal}, nil
		}
		return &Ident{Name: tok.Literal}, nil
	case TokenEOF:
		return nil, p.errorf("unexpected end of expression")
	case TokenSemicolon:
		return nil, p.errorf("statement separator ';' is not allowed")
	default:
		return nil, p.errorf("unexpected %s %q", tok.Type, tok.Literal)
	}
}

func (p *Parser) parseFunctionCall(name string) (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	call := &CallExpr{Name: strings.ToUpper(name)}
	if p.match(TokenRParen) {
		return call, nil
	}
	if p.peek().Type == TokenStar && p.peekAt(1).Type == TokenRParen {
		p.advance()
		p.advance()
		call.Star = true
		return call, nil
	}
	for {
		arg, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.match(TokenComma) {
			break
		}
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}
