package sqlexpr

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_ValidFragments(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expected     string
		placeholders int
	}{
		{"simple equality", "x = 1", "(x = 1)", 0},
		{"qualified column", "s.x = 1", "(s.x = 1)", 0},
		{"placeholder", "x = ?", "(x = ?1)", 1},
		{"and binds tighter than or", "a = 1 OR b = 2 AND c = 3", "((a = 1) OR ((b = 2) AND (c = 3)))", 0},
		{"explicit parens", "(a = 1 OR b = 2) AND c = 3", "(((a = 1) OR (b = 2)) AND (c = 3))", 0},
		{"parenthesized literal", "(x) = 1", "((x) = 1)", 0},
		{"is not null", "deleted_at IS NOT NULL", "(deleted_at IS NOT NULL)", 0},
		{"in list", "id IN (?, ?, ?)", "(id IN (?1, ?2, ?3))", 3},
		{"not in list", "id NOT IN (1, 2)", "(id NOT IN (1, 2))", 0},
		{"like", "name LIKE 'a%'", "(name LIKE 'a%')", 0},
		{"between", "x BETWEEN 1 AND 3", "(x BETWEEN 1 AND 3)", 0},
		{"function call", "LOWER(name) = ?", "(LOWER(name) = ?1)", 1},
		{"count star", "COUNT(*) > 0", "(COUNT(*) > 0)", 0},
		{"negative number", "x > -1", "(x > -1)", 0},
		{"arithmetic", "x + 1 * 2 = 3", "((x + (1 * 2)) = 3)", 0},
		{"quoted identifier", `"order" = 1`, "(order = 1)", 0},
		{"backtick identifier", "`order` = 1", "(order = 1)", 0},
		{"not prefix", "NOT x = 1", "(NOT (x = 1))", 0},
		{"lowercase keywords", "x = 1 and y is null", "((x = 1) AND (y IS NULL))", 0},
		{"escaped quote", "name = 'O''Brien'", "(name = 'O''Brien')", 0},
		{"boolean column", "active", "active", 0},
		{"boolean literal", "active = TRUE", "(active = TRUE)", 0},
		{"comment", "x = 1 -- trailing note", "(x = 1)", 0},
		{"block comment", "x = /* one */ 1", "(x = 1)", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragment, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got := fragment.Expr.String(); got != tt.expected {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if fragment.Placeholders != tt.placeholders {
				t.Errorf("Parse(%q) placeholders = %d, want %d", tt.input, fragment.Placeholders, tt.placeholders)
			}
		})
	}
}

func TestParse_InvalidFragments(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"dangling and", "x = 1 AND"},
		{"leading or", "OR x = 1"},
		{"unbalanced open", "(x = 1"},
		{"unbalanced close", "x = 1)"},
		{"statement separator", "x = 1; DROP TABLE s"},
		{"unterminated string", "name = 'abc"},
		{"unterminated quoted identifier", `"name = 1`},
		{"unterminated comment", "x = 1 /* oops"},
		{"missing operand", "x = "},
		{"two operands", "x 1"},
		{"bad character", "x = @a"},
		{"is without null", "x IS 1"},
		{"empty in list", "x IN ()"},
		{"malformed number", "x = 1abc"},
		{"not without predicate", "x NOT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) expected error, got nil", tt.input)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("Parse(%q) error type = %T, want *ParseError", tt.input, err)
			}
		})
	}
}

func TestParseError_Position(t *testing.T) {
	_, err := Parse("x = 1\nAND")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Line != 2 {
		t.Errorf("expected error on line 2, got %d", parseErr.Line)
	}
}

func TestLexer_Tokenize(t *testing.T) {
	tokens, err := NewLexer("a <> ? || 'b'").Tokenize()
	if err != nil {
		t.Fatalf("Tokenize error: %v", err)
	}
	expected := []TokenType{TokenIdentifier, TokenNEQ, TokenPlaceholder, TokenConcat, TokenString, TokenEOF}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d", len(expected), len(tokens))
	}
	for i, tt := range expected {
		if tokens[i].Type != tt {
			t.Errorf("token %d: expected %s, got %s", i, tt, tokens[i].Type)
		}
	}
}

func TestParse_CountsComments(t *testing.T) {
	fragment, err := Parse("x = 1 -- note")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if fragment.Comments != 1 {
		t.Errorf("expected 1 comment, got %d", fragment.Comments)
	}
}

func TestParse_NestingLimit(t *testing.T) {
	deep := MaxDepth * 5
	tests := []struct {
		name  string
		input string
	}{
		{"parentheses", strings.Repeat("(", deep) + "x = 1" + strings.Repeat(")", deep)},
		{"not chain", strings.Repeat("NOT ", deep) + "x = 1"},
		{"unary minus chain", "x = " + strings.Repeat("- ", deep) + "1"},
		{"nested calls", strings.Repeat("LOWER(", deep) + "x" + strings.Repeat(")", deep) + " = 'a'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if !strings.Contains(parseErr.Msg, "nested deeper") {
				t.Errorf("unexpected message %q", parseErr.Msg)
			}
		})
	}
}

func TestParse_NestingBelowLimit(t *testing.T) {
	n := MaxDepth / 2
	src := strings.Repeat("(", n) + "NOT x = 1" + strings.Repeat(")", n)
	if _, err := Parse(src); err != nil {
		t.Fatalf("Parse error: %v", err)
	}
}
