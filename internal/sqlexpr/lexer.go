package sqlexpr

// Lexer tokenizes a WHERE-clause fragment.
type Lexer struct {
	input    []byte
	pos      int
	line     int
	col      int
	comments int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: []byte(input),
		line:  1,
		col:   1,
	}
}

// Tokenize returns all tokens from the input, terminated by a TokenEOF token.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, nil
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	if err := l.skipWhitespace(); err != nil {
		return Token{}, err
	}

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Line: l.line, Col: l.col}, nil
	}

	ch := l.input[l.pos]
	line, col := l.line, l.col

	single := func(tt TokenType) (Token, error) {
		l.advance()
		return Token{Type: tt, Literal: string(ch), Line: line, Col: col}, nil
	}
	double := func(tt TokenType, lit string) (Token, error) {
		l.advance()
		l.advance()
		return Token{Type: tt, Literal: lit, Line: line, Col: col}, nil
	}

	switch {
	case ch == '(':
		return single(TokenLParen)
	case ch == ')':
		return single(TokenRParen)
	case ch == ',':
		return single(TokenComma)
	case ch == '*':
		return single(TokenStar)
	case ch == '+':
		return single(TokenPlus)
	case ch == '-':
		return single(TokenMinus)
	case ch == '/':
		return single(TokenSlash)
	case ch == ';':
		return single(TokenSemicolon)
	case ch == '?':
		return single(TokenPlaceholder)
	case ch == '.':
		if l.peek(1) != 0 && isDigit(l.peek(1)) {
			return l.readNumber()
		}
		return single(TokenDot)
	case ch == '=':
		if l.peek(1) == '=' {
			return double(TokenEQ, "==")
		}
		return single(TokenEQ)
	case ch == '!':
		if l.peek(1) == '=' {
			return double(TokenNEQ, "!=")
		}
		return Token{}, newParseError(line, col, "unexpected character '!'")
	case ch == '<':
		switch l.peek(1) {
		case '=':
			return double(TokenLTE, "<=")
		case '>':
			return double(TokenNEQ, "<>")
		}
		return single(TokenLT)
	case ch == '>':
		if l.peek(1) == '=' {
			return double(TokenGTE, ">=")
		}
		return single(TokenGT)
	case ch == '|':
		if l.peek(1) == '|' {
			return double(TokenConcat, "||")
		}
		return Token{}, newParseError(line, col, "unexpected character '|'")
	case ch == '\'':
		return l.readString()
	case ch == '"' || ch == '`':
		return l.readQuotedIdentifier(ch)
	case isDigit(ch):
		return l.readNumber()
	case isIdentStart(ch):
		return l.readIdentifier()
	default:
		return Token{}, newParseError(line, col, "unexpected character '"+string(ch)+"'")
	}
}

// Comments returns the number of comments skipped so far.
func (l *Lexer) Comments() int {
	return l.comments
}

func (l *Lexer) peek(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *Lexer) skipWhitespace() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '-' && l.peek(1) == '-':
			// Line comment
			l.comments++
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		case ch == '/' && l.peek(1) == '*':
			l.comments++
			line, col := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.input) {
				if l.input[l.pos] == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return newParseError(line, col, "unterminated comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) readString() (Token, error) {
	line, col := l.line, l.col
	l.advance() // skip opening quote

	var literal []byte
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			// '' is an escaped quote
			if l.peek(1) == '\'' {
				literal = append(literal, '\'')
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			return Token{Type: TokenString, Literal: string(literal), Line: line, Col: col}, nil
		}
		literal = append(literal, ch)
		l.advance()
	}
	return Token{}, newParseError(line, col, "unterminated string")
}

func (l *Lexer) readQuotedIdentifier(quote byte) (Token, error) {
	line, col := l.line, l.col
	l.advance()

	var literal []byte
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			if l.peek(1) == quote {
				literal = append(literal, quote)
				l.advance()
				l.advance()
				continue
			}
			l.advance()
			if len(literal) == 0 {
				return Token{}, newParseError(line, col, "empty quoted identifier")
			}
			return Token{Type: TokenQuotedIdentifier, Literal: string(literal), Line: line, Col: col}, nil
		}
		literal = append(literal, ch)
		l.advance()
	}
	return Token{}, newParseError(line, col, "unterminated quoted identifier")
}

func (l *Lexer) readNumber() (Token, error) {
	line, col := l.line, l.col
	start := l.pos

	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.advance()
	}

	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.advance()
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance()
		}
	}

	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		l.advance()
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.advance()
		}
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return Token{}, newParseError(line, col, "malformed exponent in number")
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.advance()
		}
	}

	if l.pos < len(l.input) && isIdentStart(l.input[l.pos]) {
		return Token{}, newParseError(line, col, "malformed number "+string(l.input[start:l.pos+1]))
	}

	return Token{Type: TokenNumber, Literal: string(l.input[start:l.pos]), Line: line, Col: col}, nil
}

func (l *Lexer) readIdentifier() (Token, error) {
	line, col := l.line, l.col
	start := l.pos

	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.advance()
	}

	literal := string(l.input[start:l.pos])
	return Token{Type: LookupKeyword(literal), Literal: literal, Line: line, Col: col}, nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}
func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) || ch == '$' }
