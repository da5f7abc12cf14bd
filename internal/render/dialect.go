package render

import (
	"fmt"
	"strings"
)

// Dialect identifies the SQL flavour a tree is rendered for.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Dialects lists every supported dialect in a stable order.
var Dialects = []Dialect{SQLite, Postgres, MySQL}

// ParseDialect maps driver and dialector names onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", name)
	}
}

// QuoteIdentifier quotes a possibly alias-qualified identifier ("s.id").
func (d Dialect) QuoteIdentifier(name string) string {
	quote := `"`
	if d == MySQL {
		quote = "`"
	}
	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = quote + strings.ReplaceAll(part, quote, quote+quote) + quote
	}
	return strings.Join(parts, ".")
}

// goquName returns the name goqu registers the dialect under.
func (d Dialect) goquName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return string(d)
}
