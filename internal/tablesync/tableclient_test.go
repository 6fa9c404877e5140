package tablesync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(role Role, dialect Dialect, noDups bool) *TableClient {
	tc := &TableClient{
		cfg: Config{
			Role:    role,
			Table:   "widgets",
			Dialect: dialect,
			NoDups:  noDups,
			UniqueKeys: [][]string{
				{"id"},
			},
		},
		skiplong: map[string]bool{"notes": true},
	}
	tc.columns = []ColumnInfo{
		{Name: "id", Type: ColTypeNumeric},
		{Name: "label", Type: ColTypeString},
		{Name: "notes", Type: ColTypeString, Long: true},
	}
	tc.colnames = []string{"id", "label", "notes"}
	return tc
}

func TestBuildQueriesMySQLSource(t *testing.T) {
	tc := newTestClient(RoleSource, MySQLDialect{}, false)
	tc.buildQueries()

	if !strings.HasPrefix(tc.queries.selectSQL, "SELECT ") {
		t.Fatalf("select query malformed: %s", tc.queries.selectSQL)
	}
	if strings.Contains(tc.queries.selectSQL, "notes` IS NULL") {
		t.Fatalf("LONG column must be excluded from ORDER BY: %s", tc.queries.selectSQL)
	}
	if !strings.Contains(tc.queries.selectSQL, "`id` IS NULL, `id`") {
		t.Fatalf("expected MySQL NULLS-first sort expression, got %s", tc.queries.selectSQL)
	}
	if tc.queries.insertSQL != "" {
		t.Fatalf("source role must not build an INSERT statement")
	}
}

func TestBuildQueriesMySQLDestNoDups(t *testing.T) {
	tc := newTestClient(RoleDest, MySQLDialect{}, true)
	tc.buildQueries()

	require.Contains(t, tc.queries.selectSQL, "SELECT DISTINCT")
	require.True(t, strings.HasPrefix(tc.queries.insertSQL, "INSERT INTO widgets (`id`, `label`, `notes`) VALUES (?, ?, ?)"))
	require.True(t, strings.HasSuffix(tc.queries.deleteSQL, "LIMIT 1"))
	require.Len(t, tc.queries.deleteUniqSQL, 1)
}

func TestBuildQueriesMasksSourceColumnOnly(t *testing.T) {
	src := newTestClient(RoleSource, MySQLDialect{}, false)
	src.cfg.MaskCols = map[string]string{"label": "masked"}
	src.columns[1].Masked = true
	src.buildQueries()
	require.Contains(t, src.queries.selectSQL, "'masked' as `label`")

	dst := newTestClient(RoleDest, MySQLDialect{}, false)
	dst.cfg.MaskCols = map[string]string{"label": "masked"}
	dst.columns[1].Masked = true
	dst.buildQueries()
	require.NotContains(t, dst.queries.selectSQL, "'masked'")
}

func TestBuildDeleteSQLUsesLongPredicate(t *testing.T) {
	tc := newTestClient(RoleDest, OracleDialect{}, false)
	sql := tc.buildDeleteSQL(tc.colnames)
	if !strings.Contains(sql, "dbms_lob.compare(notes, ?) = 0") {
		t.Fatalf("expected Oracle LONG-equality predicate in delete SQL, got %s", sql)
	}
	if !strings.Contains(sql, "(id=? OR (? IS NULL AND id IS NULL))") {
		t.Fatalf("expected null-safe predicate for ordinary columns, got %s", sql)
	}
}

func TestValidateUniqueKeysRejectsUnknownColumn(t *testing.T) {
	tc := newTestClient(RoleDest, MySQLDialect{}, false)
	if err := tc.validateUniqueKeys(); err != nil {
		t.Fatalf("unexpected error for a valid unique key: %v", err)
	}

	tc.cfg.UniqueKeys = [][]string{{"id"}, {"no_such_col"}}
	err := tc.validateUniqueKeys()
	if err == nil {
		t.Fatalf("expected an error for a unique key column missing from the projection")
	}
	if !strings.Contains(err.Error(), "no_such_col") {
		t.Fatalf("error should name the offending column, got %v", err)
	}
}

func TestDeleteArgsSingleParamForLongColumns(t *testing.T) {
	tc := newTestClient(RoleDest, OracleDialect{}, false)
	row := Row{ns("1"), ns("x"), ns("body")}

	args := tc.deleteArgs(tc.colnames, row)
	// id and label each bind (value, null-sentinel); the LONG notes
	// column's predicate has a single placeholder.
	require.Len(t, args, 5)
	require.Equal(t, "body", args[4])
}

func TestOracleDialectIdentifiers(t *testing.T) {
	d := OracleDialect{}
	if d.QuoteIdent("col") != "col" {
		t.Fatalf("Oracle identifiers must not be quoted")
	}
	if d.LimitOneClause() != "AND rownum=1" {
		t.Fatalf("unexpected Oracle single-row clause: %s", d.LimitOneClause())
	}
	if d.MaskAliasSyntax("'x'", "col") != "'x' col" {
		t.Fatalf("unexpected Oracle mask alias syntax: %s", d.MaskAliasSyntax("'x'", "col"))
	}
}

func TestMySQLDialectIdentifiers(t *testing.T) {
	d := MySQLDialect{}
	if d.QuoteIdent("col") != "`col`" {
		t.Fatalf("MySQL identifiers must be backtick-quoted")
	}
	if d.LimitOneClause() != "LIMIT 1" {
		t.Fatalf("unexpected MySQL single-row clause: %s", d.LimitOneClause())
	}
	if d.MaskAliasSyntax("'x'", "col") != "'x' as `col`" {
		t.Fatalf("unexpected MySQL mask alias syntax: %s", d.MaskAliasSyntax("'x'", "col"))
	}
}
