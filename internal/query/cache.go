package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"

	"github.com/nlstn/go-condbuilder/internal/condition"
)

const (
	// DefaultStatementCacheSize bounds the number of cached statements.
	DefaultStatementCacheSize = 256

	defaultStatementExpiration = 10 * time.Minute
	statementCleanupInterval   = 20 * time.Minute
)

// StatementCache stores rendered statements keyed by the shape of the query.
// Two queries whose trees differ only in bound values share one entry.
type StatementCache struct {
	c    *cache.Cache
	size int
}

// NewStatementCache creates a cache holding at most size statements. Zero or
// negative means DefaultStatementCacheSize.
func NewStatementCache(size int) *StatementCache {
	if size <= 0 {
		size = DefaultStatementCacheSize
	}
	return &StatementCache{
		c:    cache.New(defaultStatementExpiration, statementCleanupInterval),
		size: size,
	}
}

// Get returns the statement stored under key.
func (sc *StatementCache) Get(key uint64) (string, bool) {
	v, found := sc.c.Get(strconv.FormatUint(key, 16))
	if !found {
		return "", false
	}
	query, ok := v.(string)
	return query, ok
}

// Set stores query under key. A full cache is flushed first.
func (sc *StatementCache) Set(key uint64, query string) {
	if sc.c.ItemCount() >= sc.size {
		sc.c.Flush()
	}
	sc.c.SetDefault(strconv.FormatUint(key, 16), query)
}

// Len returns the number of cached statements.
func (sc *StatementCache) Len() int {
	return sc.c.ItemCount()
}

func (qb *Builder) cacheKey(kind statementKind, tree *condition.Tree) uint64 {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('|')
	b.WriteString(string(qb.renderer.Dialect))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(qb.renderer.CollapseIn))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(qb.renderer.MaxInClauseSize))
	b.WriteByte('|')
	b.WriteString(qb.table)
	b.WriteByte('|')
	b.WriteString(strings.Join(qb.selects, ","))
	b.WriteByte('|')
	for _, o := range qb.orderBys {
		b.WriteString(o.column)
		if o.desc {
			b.WriteString(" desc")
		}
		b.WriteByte(',')
	}
	b.WriteByte('|')
	if qb.limit != nil {
		b.WriteString(strconv.Itoa(*qb.limit))
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(qb.offset))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(tree.Fingerprint(), 16))
	return xxhash.Sum64String(b.String())
}
