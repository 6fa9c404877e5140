package tablesync

import (
	"context"
	"fmt"
)

// OracleDialect implements Dialect for Oracle: bare identifiers,
// server-default NULL ordering, dbms_lob comparison for CLOBs, and the
// session pragmas below.
type OracleDialect struct{}

func (OracleDialect) QuoteIdent(name string) string {
	return name
}

// NullsFirstExpr relies on Oracle's default NULLS FIRST for ascending
// sorts, so no rewrite is needed.
func (OracleDialect) NullsFirstExpr(col string) string {
	return col
}

func (OracleDialect) LongEqPredicate(col string) string {
	return fmt.Sprintf("dbms_lob.compare(%s, ?) = 0", col)
}

func (OracleDialect) LimitOneClause() string {
	return "AND rownum=1"
}

func (OracleDialect) MaskAliasSyntax(literal, col string) string {
	return fmt.Sprintf("%s %s", literal, col)
}

// OnSessionOpen issues the session-level pragmas Oracle needs for
// stable row comparison: fixed date/timestamp formats and disabled
// blank-chopping. No CLOB-specific placeholder binding is set up here or
// in TableClient's prepare path; LONG/CLOB values are bound as plain
// strings.
func (OracleDialect) OnSessionOpen(ctx context.Context, session execer) error {
	stmts := []string{
		`alter session set NLS_DATE_FORMAT='YYYY-MM-DD HH24:MI:SS'`,
		`alter session set NLS_TIMESTAMP_FORMAT='YYYY-MM-DD HH24:MI:SS.FF'`,
		`alter session set BLANK_TRIMMING=FALSE`,
	}
	for _, stmt := range stmts {
		if _, err := session.ExecQuery(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
