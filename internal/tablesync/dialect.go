// Package tablesync implements the streaming table-reconciliation
// engine: a TableClient pair (source and destination) driven by a
// Reconciler that diffs two sorted row streams and emits inserts and
// deletes, bounded to one row per side in memory.
package tablesync

import (
	"context"
	"database/sql"
)

// Dialect carries everything MySQL and Oracle disagree on; one
// TableClient serves both databases by injection instead of
// subclassing.
type Dialect interface {
	// QuoteIdent quotes a bare column or table identifier.
	QuoteIdent(name string) string
	// NullsFirstExpr rewrites a column reference for ascending,
	// NULLs-first ORDER BY.
	NullsFirstExpr(col string) string
	// LongEqPredicate returns the equality predicate (with exactly one
	// placeholder) used to compare a LONG/CLOB column in a DELETE.
	LongEqPredicate(col string) string
	// LimitOneClause returns the clause appended to a statement to cap
	// it at one affected row (no_dups mode).
	LimitOneClause() string
	// MaskAliasSyntax renders the select-list item that aliases a
	// literal to a masked source column (`'literal' AS col` in MySQL,
	// `'literal' col` in Oracle).
	MaskAliasSyntax(literal, col string) string
	// OnSessionOpen runs any per-session pragmas the dialect needs, a
	// no-op for MySQL.
	OnSessionOpen(ctx context.Context, session execer) error
}

// execer is the minimal surface Dialect.OnSessionOpen needs from a
// session, satisfied by *sqladapter.Session.
type execer interface {
	ExecQuery(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
