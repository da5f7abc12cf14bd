package sqlexpr

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenIdentifier       TokenType = iota
	TokenQuotedIdentifier           // "quoted" or `quoted`
	TokenNumber                     // integer or decimal literal
	TokenString                     // 'single-quoted string'
	TokenPlaceholder                // ?

	// Keywords
	TokenAND
	TokenOR
	TokenNOT
	TokenIS
	TokenNULL
	TokenIN
	TokenLIKE
	TokenBETWEEN
	TokenTRUE
	TokenFALSE

	// Operators and punctuation
	TokenLParen    // (
	TokenRParen    // )
	TokenComma     // ,
	TokenDot       // .
	TokenEQ        // = or ==
	TokenNEQ       // != or <>
	TokenLT        // <
	TokenGT        // >
	TokenLTE       // <=
	TokenGTE       // >=
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenConcat    // ||
	TokenSemicolon // ;

	TokenEOF
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Col     int
}

var keywords = map[string]TokenType{
	"AND":     TokenAND,
	"OR":      TokenOR,
	"NOT":     TokenNOT,
	"IS":      TokenIS,
	"NULL":    TokenNULL,
	"IN":      TokenIN,
	"LIKE":    TokenLIKE,
	"BETWEEN": TokenBETWEEN,
	"TRUE":    TokenTRUE,
	"FALSE":   TokenFALSE,
}

var tokenNames = map[TokenType]string{
	TokenIdentifier:       "identifier",
	TokenQuotedIdentifier: "quoted identifier",
	TokenNumber:           "number",
	TokenString:           "string",
	TokenPlaceholder:      "?",
	TokenAND:              "AND",
	TokenOR:               "OR",
	TokenNOT:              "NOT",
	TokenIS:               "IS",
	TokenNULL:             "NULL",
	TokenIN:               "IN",
	TokenLIKE:             "LIKE",
	TokenBETWEEN:          "BETWEEN",
	TokenTRUE:             "TRUE",
	TokenFALSE:            "FALSE",
	TokenLParen:           "(",
	TokenRParen:           ")",
	TokenComma:            ",",
	TokenDot:              ".",
	TokenEQ:               "=",
	TokenNEQ:              "<>",
	TokenLT:               "<",
	TokenGT:               ">",
	TokenLTE:              "<=",
	TokenGTE:              ">=",
	TokenPlus:             "+",
	TokenMinus:            "-",
	TokenStar:             "*",
	TokenSlash:            "/",
	TokenConcat:           "||",
	TokenSemicolon:        ";",
	TokenEOF:              "end of input",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown"
}

// LookupKeyword returns the keyword token type for an identifier, or TokenIdentifier.
func LookupKeyword(ident string) TokenType {
	upper := make([]byte, len(ident))
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	if tok, ok := keywords[string(upper)]; ok {
		return tok
	}
	return TokenIdentifier
}
