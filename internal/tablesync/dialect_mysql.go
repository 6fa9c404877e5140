package tablesync

import (
	"context"
	"fmt"
)

// MySQLDialect implements Dialect for MySQL/MariaDB.
type MySQLDialect struct{}

func (MySQLDialect) QuoteIdent(name string) string {
	return "`" + name + "`"
}

func (MySQLDialect) NullsFirstExpr(col string) string {
	quoted := "`" + col + "`"
	return fmt.Sprintf("%s IS NULL, %s", quoted, quoted)
}

// LongEqPredicate: MySQL treats LONG-classified columns as plain
// string/BLOB, so no special predicate is needed.
func (MySQLDialect) LongEqPredicate(col string) string {
	return "`" + col + "` = ?"
}

func (MySQLDialect) LimitOneClause() string {
	return "LIMIT 1"
}

func (MySQLDialect) MaskAliasSyntax(literal, col string) string {
	return fmt.Sprintf("%s as `%s`", literal, col)
}

func (MySQLDialect) OnSessionOpen(ctx context.Context, session execer) error {
	return nil
}
