package tablesync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mst-edu/idm-infra/internal/metrics"
	"github.com/mst-edu/idm-infra/internal/sqladapter"
	"github.com/mst-edu/idm-infra/pkg/auditsink"
	"github.com/mst-edu/idm-infra/pkg/errors"
	"github.com/mst-edu/idm-infra/pkg/logger"
)

// Role distinguishes a TableClient's side in a Reconciler pair.
type Role int

const (
	RoleSource Role = iota
	RoleDest
)

// MaxPending is the uncommitted-mutation ceiling CheckPending enforces
// when force is set.
const MaxPending = 500

// Config is the explicit construction record for one TableClient;
// unknown options are a compile error rather than a silently ignored
// bag entry.
type Config struct {
	Role  Role
	Read  *sqladapter.Session
	Write *sqladapter.Session // defaults to Read when nil

	Table string
	Alias string
	Where string
	Args  []interface{}

	UniqueKeys [][]string        // each entry is a set of column names
	ExclCols   map[string]bool   // columns to skip entirely
	MaskCols   map[string]string // col -> literal replacing the source expression (source-side only)

	MaxInserts int
	MaxDeletes int
	Force      bool
	DryRun     bool
	NoDups     bool
	Debug      bool

	Dialect   Dialect
	MySQLBlob bool // MySQL specialization: BLOB classifies as string

	JobName string                   // label for tablesync_* metrics; may be ""
	Metrics metrics.MetricsInterface // nil disables metrics recording
	Audit   auditsink.AuditSink      // nil disables per-mutation audit records
}

// Counters tracks the running totals a sync accumulates: pending and
// committed mutations plus the safety-cap flags.
type Counters struct {
	Pending       int
	Commits       int
	Inserts       int
	Deletes       int
	HitMaxInserts bool
	HitMaxDeletes bool
}

// Row is one projected row, positioned identically to TableClient.Colnames.
type Row []sql.NullString

// queries holds the prepared SQL text built at init.
type queries struct {
	selectSQL string
	insertSQL string
	deleteSQL string
	deleteUniqSQL []string
}

// TableClient is one side (source or dest) of a table sync. It owns
// its prepared statements and its SELECT cursor for its whole lifetime.
type TableClient struct {
	cfg Config

	columns  []ColumnInfo
	colnames []string
	skiplong map[string]bool

	queries queries

	rows *sql.Rows

	insertStmt      *sqladapter.Stmt
	deleteStmt      *sqladapter.Stmt
	deleteUniqStmts []*sqladapter.Stmt

	Counters Counters
}

// Init introspects the table, classifies its columns, builds the
// SELECT/INSERT/DELETE statements, disables autocommit for the
// destination, and runs the dialect's session pragmas.
func Init(ctx context.Context, cfg Config) (*TableClient, error) {
	if cfg.Write == nil {
		cfg.Write = cfg.Read
	}
	if cfg.ExclCols == nil {
		cfg.ExclCols = map[string]bool{}
	}
	if cfg.MaskCols == nil {
		cfg.MaskCols = map[string]string{}
	}

	tc := &TableClient{cfg: cfg, skiplong: map[string]bool{}}

	if err := tc.introspect(ctx); err != nil {
		return nil, err
	}
	if err := tc.validateUniqueKeys(); err != nil {
		return nil, err
	}
	tc.buildQueries()

	if cfg.Role == RoleDest && !cfg.DryRun {
		if err := cfg.Write.SetAutoCommit(ctx, false); err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabase, "tablesync: disable autocommit failed")
		}
	}

	if err := cfg.Dialect.OnSessionOpen(ctx, cfg.Read); err != nil {
		return nil, errors.Wrap(err, errors.ErrDriverError, "tablesync: OnSessionOpen(read) failed")
	}
	if cfg.Write != cfg.Read {
		if err := cfg.Dialect.OnSessionOpen(ctx, cfg.Write); err != nil {
			return nil, errors.Wrap(err, errors.ErrDriverError, "tablesync: OnSessionOpen(write) failed")
		}
	}

	if cfg.Role == RoleDest {
		if err := tc.prepareWriteStatements(ctx); err != nil {
			return nil, err
		}
	}

	return tc, nil
}

// validateUniqueKeys rejects a unique-key column that isn't in the
// projection (typo, excluded, or an unsupported type that introspect
// skipped). Without this the delete path would bind column 0's value
// in its place and delete the wrong rows.
func (tc *TableClient) validateUniqueKeys() error {
	idx := tc.colIndex()
	for _, key := range tc.cfg.UniqueKeys {
		for _, col := range key {
			if _, ok := idx[strings.ToLower(col)]; !ok {
				return errors.New(errors.ErrInvalidArgument,
					fmt.Sprintf("tablesync: unique key column %q is not a projected column of %s", col, tc.cfg.Table))
			}
		}
	}
	return nil
}

// introspect issues "select * from table [alias] where 1=0" and
// classifies every returned column.
func (tc *TableClient) introspect(ctx context.Context) error {
	probe := fmt.Sprintf("select * from %s%s where 1=0", tc.cfg.Table, tc.aliasSuffix())
	rows, err := tc.cfg.Read.OpenQuery(ctx, probe)
	if err != nil {
		return errors.Wrap(err, errors.ErrDriverError, "tablesync: column probe failed")
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return errors.Wrap(err, errors.ErrDriverError, "tablesync: ColumnTypes failed")
	}

	for _, ct := range colTypes {
		name := ct.Name()
		if tc.cfg.ExclCols[strings.ToLower(name)] {
			continue
		}
		driverType := ct.DatabaseTypeName()

		_, masked := tc.cfg.MaskCols[strings.ToLower(name)]
		info, err := classifyColumn(name, driverType, masked, tc.cfg.MySQLBlob)
		if err != nil {
			return err
		}
		if info.Type == ColTypeUnknown {
			continue
		}

		tc.columns = append(tc.columns, info)
		tc.colnames = append(tc.colnames, info.Name)
		if info.Long {
			tc.skiplong[strings.ToLower(info.Name)] = true
		}
	}
	return nil
}

func (tc *TableClient) aliasSuffix() string {
	if tc.cfg.Alias == "" {
		return ""
	}
	return " " + tc.cfg.Alias
}

// buildQueries builds the projection, sort keys, and the
// SELECT/INSERT/DELETE statement text.
func (tc *TableClient) buildQueries() {
	d := tc.cfg.Dialect

	selectCols := make([]string, 0, len(tc.columns))
	for _, c := range tc.columns {
		qualified := tc.qualify(c.Name)
		if c.Masked && tc.cfg.Role == RoleSource {
			literal := quoteLiteral(tc.cfg.MaskCols[strings.ToLower(c.Name)])
			selectCols = append(selectCols, d.MaskAliasSyntax(literal, c.Name))
		} else {
			selectCols = append(selectCols, qualified)
		}
	}

	sortCols := make([]string, 0, len(tc.columns))
	for _, c := range tc.columns {
		if tc.skiplong[strings.ToLower(c.Name)] {
			continue
		}
		sortCols = append(sortCols, d.NullsFirstExpr(c.Name))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if tc.cfg.NoDups {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(selectCols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(tc.cfg.Table)
	sb.WriteString(tc.aliasSuffix())
	if tc.cfg.Where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(tc.cfg.Where)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(sortCols, ", "))
	tc.queries.selectSQL = sb.String()

	if tc.cfg.Role != RoleDest {
		return
	}

	quotedNames := make([]string, len(tc.colnames))
	placeholders := make([]string, len(tc.colnames))
	for i, n := range tc.colnames {
		quotedNames[i] = d.QuoteIdent(n)
		placeholders[i] = "?"
	}
	tc.queries.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tc.cfg.Table, strings.Join(quotedNames, ", "), strings.Join(placeholders, ", "))

	tc.queries.deleteSQL = tc.buildDeleteSQL(tc.colnames)

	for _, key := range tc.cfg.UniqueKeys {
		tc.queries.deleteUniqSQL = append(tc.queries.deleteUniqSQL, tc.buildDeleteSQL(key))
	}
}

func (tc *TableClient) qualify(col string) string {
	return tc.cfg.Dialect.QuoteIdent(col)
}

// quoteLiteral renders a mask value as a SQL string literal.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// buildDeleteSQL builds the null-safe predicate over cols, using the
// dialect's LONG-equality predicate for LONG columns, plus a single-row
// limit when no_dups.
func (tc *TableClient) buildDeleteSQL(cols []string) string {
	clauses := make([]string, 0, len(cols))
	for _, col := range cols {
		if tc.skiplong[strings.ToLower(col)] {
			clauses = append(clauses, tc.cfg.Dialect.LongEqPredicate(col))
			continue
		}
		quoted := tc.cfg.Dialect.QuoteIdent(col)
		clauses = append(clauses, fmt.Sprintf("(%s=? OR (? IS NULL AND %s IS NULL))", quoted, quoted))
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", tc.cfg.Table, strings.Join(clauses, " AND "))
	if tc.cfg.NoDups {
		sql += " " + tc.cfg.Dialect.LimitOneClause()
	}
	return sql
}

func (tc *TableClient) prepareWriteStatements(ctx context.Context) error {
	var err error
	tc.insertStmt, err = tc.cfg.Write.Prepare(ctx, tc.queries.insertSQL)
	if err != nil {
		return errors.Wrap(err, errors.ErrDriverError, "tablesync: prepare insert failed")
	}
	tc.deleteStmt, err = tc.cfg.Write.Prepare(ctx, tc.queries.deleteSQL)
	if err != nil {
		return errors.Wrap(err, errors.ErrDriverError, "tablesync: prepare delete failed")
	}
	for _, q := range tc.queries.deleteUniqSQL {
		stmt, err := tc.cfg.Write.Prepare(ctx, q)
		if err != nil {
			return errors.Wrap(err, errors.ErrDriverError, "tablesync: prepare delete_uniq failed")
		}
		tc.deleteUniqStmts = append(tc.deleteUniqStmts, stmt)
	}
	return nil
}

// Colnames returns the positional column names shared by every Row.
func (tc *TableClient) Colnames() []string { return tc.colnames }

// Columns returns the classified column set.
func (tc *TableClient) Columns() []ColumnInfo { return tc.columns }

// Fetch pulls the next row from the SELECT cursor, opening it lazily on
// first call, returning (nil, nil) at end of stream.
func (tc *TableClient) Fetch(ctx context.Context) (Row, error) {
	if tc.rows == nil {
		rows, err := tc.cfg.Read.OpenQuery(ctx, tc.queries.selectSQL, tc.cfg.Args...)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDriverError, "tablesync: select failed")
		}
		tc.rows = rows
	}
	if !tc.rows.Next() {
		err := tc.rows.Err()
		tc.rows.Close()
		tc.rows = nil
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDriverError, "tablesync: row scan failed")
		}
		return nil, nil
	}

	row := make(Row, len(tc.colnames))
	dest := make([]interface{}, len(row))
	for i := range row {
		dest[i] = &row[i]
	}
	if err := tc.rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, errors.ErrDriverError, "tablesync: row scan failed")
	}
	return row, nil
}

// Insert performs the safety gate then executes the prepared INSERT.
func (tc *TableClient) Insert(ctx context.Context, row Row) error {
	if tc.cfg.MaxInserts > 0 && tc.Counters.Inserts >= tc.cfg.MaxInserts && !tc.cfg.Force {
		tc.Counters.HitMaxInserts = true
		tc.recordMetric("tablesync_cap_hits_total", map[string]string{"job": tc.cfg.JobName, "cap": "max_inserts"})
		if !tc.cfg.DryRun {
			if err := tc.RollBack(); err != nil {
				return err
			}
		}
		return errors.New(errors.ErrMaxInsertsReached, "tablesync: max_inserts reached")
	}
	if tc.cfg.DryRun {
		tc.Counters.Inserts++
		tc.Counters.Pending++
		tc.recordMetric("tablesync_rows_total", map[string]string{"job": tc.cfg.JobName, "op": "insert"})
		return nil
	}

	args := make([]interface{}, len(row))
	for i, v := range row {
		args[i] = nullStringArg(v)
	}
	if _, err := tc.insertStmt.ExecContext(ctx, args...); err != nil {
		tc.recordAudit("insert", false)
		return errors.Wrap(err, errors.ErrDriverError, "tablesync: insert failed")
	}
	tc.Counters.Inserts++
	tc.Counters.Pending++
	tc.recordMetric("tablesync_rows_total", map[string]string{"job": tc.cfg.JobName, "op": "insert"})
	tc.recordAudit("insert", true)
	return nil
}

// Delete performs the safety gate then executes the generic or
// unique-key delete family.
func (tc *TableClient) Delete(ctx context.Context, row Row) error {
	if tc.cfg.MaxDeletes > 0 && tc.Counters.Deletes >= tc.cfg.MaxDeletes && !tc.cfg.Force {
		tc.Counters.HitMaxDeletes = true
		tc.recordMetric("tablesync_cap_hits_total", map[string]string{"job": tc.cfg.JobName, "cap": "max_deletes"})
		if !tc.cfg.DryRun {
			if err := tc.RollBack(); err != nil {
				return err
			}
		}
		return errors.New(errors.ErrMaxDeletesReached, "tablesync: max_deletes reached")
	}
	if tc.cfg.DryRun {
		tc.Counters.Deletes++
		tc.Counters.Pending++
		tc.recordMetric("tablesync_rows_total", map[string]string{"job": tc.cfg.JobName, "op": "delete"})
		return nil
	}

	if len(tc.cfg.UniqueKeys) == 0 {
		args := tc.deleteArgs(tc.colnames, row)
		if _, err := tc.deleteStmt.ExecContext(ctx, args...); err != nil {
			tc.recordAudit("delete", false)
			return errors.Wrap(err, errors.ErrDriverError, "tablesync: delete failed")
		}
	} else {
		var affected int64
		for i, key := range tc.cfg.UniqueKeys {
			args := tc.deleteArgs(key, row)
			res, err := tc.deleteUniqStmts[i].ExecContext(ctx, args...)
			if err != nil {
				tc.recordAudit("delete", false)
				return errors.Wrap(err, errors.ErrDriverError, "tablesync: delete_uniq failed")
			}
			if n, err := res.RowsAffected(); err == nil {
				affected += n
			}
		}
		if tc.cfg.Debug {
			logger.WithField("rows", affected).Debug("tablesync: unique-key delete")
		}
	}
	tc.Counters.Deletes++
	tc.Counters.Pending++
	tc.recordMetric("tablesync_rows_total", map[string]string{"job": tc.cfg.JobName, "op": "delete"})
	tc.recordAudit("delete", true)
	return nil
}

// recordMetric is a nil-safe forward to the configured metrics sink.
func (tc *TableClient) recordMetric(name string, labels map[string]string) {
	if tc.cfg.Metrics == nil {
		return
	}
	tc.cfg.Metrics.IncrementCounter(name, labels)
}

// recordAudit emits one structured record per mutation.
func (tc *TableClient) recordAudit(op string, success bool) {
	if tc.cfg.Audit == nil {
		return
	}
	tc.cfg.Audit.Record(auditsink.Event{
		Operation: "tablesync." + op,
		Target:    tc.cfg.Table,
		Success:   success,
		Detail:    map[string]interface{}{"job": tc.cfg.JobName},
		At:        time.Now(),
	})
}

func (tc *TableClient) colIndex() map[string]int {
	idx := make(map[string]int, len(tc.colnames))
	for i, n := range tc.colnames {
		idx[strings.ToLower(n)] = i
	}
	return idx
}

// deleteArgs builds the parameters buildDeleteSQL's predicates expect,
// in column order: an ordinary column's null-safe pair takes the value
// twice (value and null-sentinel); a LONG column's dialect predicate
// has a single placeholder and takes it once.
func (tc *TableClient) deleteArgs(keyCols []string, row Row) []interface{} {
	idx := tc.colIndex()
	args := make([]interface{}, 0, len(keyCols)*2)
	for _, col := range keyCols {
		key := strings.ToLower(col)
		v := nullStringArg(row[idx[key]])
		if tc.skiplong[key] {
			args = append(args, v)
			continue
		}
		args = append(args, v, v)
	}
	return args
}

func nullStringArg(v sql.NullString) interface{} {
	if !v.Valid {
		return nil
	}
	return v.String
}

// CheckPending commits when pending exceeds MaxPending and force is
// set. In dry_run no commit is issued but counters
// behave identically.
func (tc *TableClient) CheckPending(ctx context.Context) error {
	if tc.cfg.Metrics != nil {
		tc.cfg.Metrics.SetGauge("tablesync_pending_rows", float64(tc.Counters.Pending), map[string]string{"job": tc.cfg.JobName})
	}
	if tc.Counters.Pending <= MaxPending || !tc.cfg.Force {
		return nil
	}
	if !tc.cfg.DryRun {
		if err := tc.cfg.Write.Commit(); err != nil {
			return errors.Wrap(err, errors.ErrDatabase, "tablesync: commit failed")
		}
		if err := tc.cfg.Write.SetAutoCommit(ctx, false); err != nil {
			return errors.Wrap(err, errors.ErrDatabase, "tablesync: re-open transaction failed")
		}
	}
	tc.Counters.Pending = 0
	tc.Counters.Commits++
	tc.recordMetric("tablesync_commits_total", map[string]string{"job": tc.cfg.JobName})
	return nil
}

func (tc *TableClient) statements() []*sqladapter.Stmt {
	return append([]*sqladapter.Stmt{tc.insertStmt, tc.deleteStmt}, tc.deleteUniqStmts...)
}

// CloseQueries commits any pending changes (unless dry_run), closes
// every prepared statement, and restores autocommit.
func (tc *TableClient) CloseQueries() error {
	if tc.rows != nil {
		tc.rows.Close()
		tc.rows = nil
	}
	for _, stmt := range tc.statements() {
		if stmt != nil {
			stmt.Close()
		}
	}
	if tc.cfg.Role != RoleDest {
		return nil
	}
	if !tc.cfg.DryRun {
		if err := tc.cfg.Write.Commit(); err != nil {
			return errors.Wrap(err, errors.ErrDatabase, "tablesync: final commit failed")
		}
	}
	return tc.cfg.Write.SetAutoCommit(context.Background(), true)
}

// abort releases cursors and statements without committing, for error
// paths where outstanding changes have already been rolled back
// by the caller.
func (tc *TableClient) abort() {
	if tc.rows != nil {
		tc.rows.Close()
		tc.rows = nil
	}
	for _, stmt := range tc.statements() {
		if stmt != nil {
			stmt.Close()
		}
	}
	if tc.cfg.Role == RoleDest && !tc.cfg.DryRun {
		tc.cfg.Write.SetAutoCommit(context.Background(), true)
	}
}

// RollBack issues RollBack on the write session if role=dest.
func (tc *TableClient) RollBack() error {
	if tc.cfg.Role != RoleDest {
		return nil
	}
	if err := tc.cfg.Write.RollBack(); err != nil {
		return errors.Wrap(err, errors.ErrDatabase, "tablesync: rollback failed")
	}
	if tc.cfg.Debug {
		logger.WithField("table", tc.cfg.Table).Debug("tablesync: rolled back")
	}
	return nil
}
