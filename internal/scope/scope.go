// Package scope holds conditions applied to every query on a table, such as
// tenant or soft-delete filters.
package scope

import (
	"fmt"
	"sync"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

// QueryScope represents a SQL condition that can be added to a query.
// It carries a raw SQL predicate and its arguments for safe parameter binding.
type QueryScope struct {
	// Condition is the SQL WHERE clause condition (e.g., "tenant_id = ?")
	Condition string
	// Args contains the parameter values for placeholders in Condition
	Args []interface{}
}

// Apply adds every scope to b as its own AND-ed condition. Nothing is added
// when a scope is invalid.
func Apply(b *condition.Builder, scopes []QueryScope) error {
	staged := b.Clone()
	for i, s := range scopes {
		if err := staged.AddRawCondition(s.Condition, s.Args...); err != nil {
			return fmt.Errorf("scope %d: %w", i, err)
		}
	}
	*b = *staged
	return nil
}

// Registry maps table names to their scopes. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string][]QueryScope
}

// Add validates scopes and appends them to the scopes of table.
func (r *Registry) Add(table string, scopes ...QueryScope) error {
	if err := Apply(condition.NewBuilder(), scopes); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scopes == nil {
		r.scopes = make(map[string][]QueryScope)
	}
	r.scopes[table] = append(r.scopes[table], scopes...)
	return nil
}

// For returns a copy of the scopes registered for table.
func (r *Registry) For(table string) []QueryScope {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]QueryScope(nil), r.scopes[table]...)
}
