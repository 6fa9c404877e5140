// Package sqladapter is the concrete SQL session the table-sync engine
// drives: a thin wrapper over database/sql that hides whether the
// underlying driver is MySQL or Oracle.
package sqladapter

import (
    "context"
    "database/sql"

    _ "github.com/go-sql-driver/mysql"
    _ "github.com/sijms/go-ora/v2"

    "github.com/mst-edu/idm-infra/pkg/errors"
)

// Driver names accepted by Open.
const (
    DriverMySQL  = "mysql"
    DriverOracle = "oracle"
)

// Session is a single logical database connection: one *sql.DB plus
// the transaction state TableClient layers on top for role=dest
// sessions.
type Session struct {
    Driver string
    DB     *sql.DB
    tx     *sql.Tx
}

// Open dials a database by driver name and DSN, verifying connectivity
// with Ping.
func Open(ctx context.Context, driver, dsn string) (*Session, error) {
    switch driver {
    case DriverMySQL, DriverOracle:
    default:
        return nil, errors.New(errors.ErrConfiguration, "sqladapter: unknown driver "+driver)
    }

    db, err := sql.Open(driver, dsn)
    if err != nil {
        return nil, errors.Wrap(err, errors.ErrDatabase, "sqladapter: open failed")
    }
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, errors.Wrap(err, errors.ErrDatabase, "sqladapter: ping failed")
    }
    return &Session{Driver: driver, DB: db}, nil
}

// SetAutoCommit toggles transactional mode. Turning autocommit off
// begins a transaction that subsequent Exec/Query calls use; turning it
// back on (after Commit/Rollback) is a no-op.
func (s *Session) SetAutoCommit(ctx context.Context, on bool) error {
    if on {
        s.tx = nil
        return nil
    }
    if s.tx != nil {
        return nil
    }
    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil {
        return errors.Wrap(err, errors.ErrDatabase, "sqladapter: begin failed")
    }
    s.tx = tx
    return nil
}

// Commit commits the open transaction, if any.
func (s *Session) Commit() error {
    if s.tx == nil {
        return nil
    }
    err := s.tx.Commit()
    s.tx = nil
    if err != nil {
        return errors.Wrap(err, errors.ErrDatabase, "sqladapter: commit failed")
    }
    return nil
}

// RollBack rolls back the open transaction, if any.
func (s *Session) RollBack() error {
    if s.tx == nil {
        return nil
    }
    err := s.tx.Rollback()
    s.tx = nil
    if err != nil {
        return errors.Wrap(err, errors.ErrDatabase, "sqladapter: rollback failed")
    }
    return nil
}

// ExecQuery runs a non-prepared statement, used for dialect session
// pragmas.
func (s *Session) ExecQuery(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
    if s.tx != nil {
        return s.tx.ExecContext(ctx, query, args...)
    }
    return s.DB.ExecContext(ctx, query, args...)
}

// OpenQuery runs a query and returns the driver rows for TableClient's
// column-introspection and streaming-read paths. Reads always go to the
// pool, never through the open transaction: the destination's SELECT
// cursor must stay valid across the intermediate commits checkPending
// issues mid-stream.
func (s *Session) OpenQuery(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
    return s.DB.QueryContext(ctx, query, args...)
}

// Stmt is a prepared statement bound to the Session rather than to one
// transaction. Preparation happens against the pool; execution is
// routed through the session's open transaction, if any, so the
// statement survives the commit/re-begin cycle of checkPending.
type Stmt struct {
    sess *Session
    stmt *sql.Stmt
}

// Prepare prepares a statement owned by the caller.
func (s *Session) Prepare(ctx context.Context, query string) (*Stmt, error) {
    stmt, err := s.DB.PrepareContext(ctx, query)
    if err != nil {
        return nil, errors.Wrap(err, errors.ErrDatabase, "sqladapter: prepare failed")
    }
    return &Stmt{sess: s, stmt: stmt}, nil
}

// ExecContext executes the statement inside the session's current
// transaction when one is open, otherwise directly on the pool.
func (st *Stmt) ExecContext(ctx context.Context, args ...interface{}) (sql.Result, error) {
    if st.sess.tx != nil {
        return st.sess.tx.StmtContext(ctx, st.stmt).ExecContext(ctx, args...)
    }
    return st.stmt.ExecContext(ctx, args...)
}

// Close releases the prepared statement.
func (st *Stmt) Close() error {
    return st.stmt.Close()
}

// Close closes the underlying pool. Callers must Commit or RollBack
// first if a transaction is open.
func (s *Session) Close() error {
    return s.DB.Close()
}
