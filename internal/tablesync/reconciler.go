package tablesync

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mst-edu/idm-infra/pkg/errors"
	"github.com/mst-edu/idm-infra/pkg/logger"
)

// Summary is returned by Reconciler.Run: a snapshot of both sides'
// counters once the sync completes or aborts, plus the run's wall-clock
// duration.
type Summary struct {
	Source   Counters
	Dest     Counters
	Duration time.Duration
}

// Reconciler owns a source/dest TableClient pair and drives the
// streaming merge-diff, releasing both clients on every exit path.
type Reconciler struct {
	Source *TableClient
	Dest   *TableClient
}

// mergeSide is the slice of TableClient the merge loop drives; a fake
// implementation stands in for real database clients in tests.
type mergeSide interface {
	Fetch(ctx context.Context) (Row, error)
	Insert(ctx context.Context, row Row) error
	Delete(ctx context.Context, row Row) error
	CheckPending(ctx context.Context) error
}

// Run pulls sorted streams from Source and Dest and emits exactly one
// INSERT per row present only in Source and exactly one DELETE per row
// present only in Dest. On any error the destination transaction is
// rolled back before the error is reported; only a clean run commits.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	finish := func(err error) (Summary, error) {
		s := r.summary()
		s.Duration = time.Since(start)
		if m := r.Dest.cfg.Metrics; m != nil {
			m.ObserveHistogram("tablesync_run_duration", s.Duration.Seconds(), map[string]string{"job": r.Dest.cfg.JobName})
		}
		return s, err
	}

	if ok, diff := sameSchema(r.Source.Columns(), r.Dest.Columns()); !ok {
		r.Dest.RollBack()
		r.Source.abort()
		r.Dest.abort()
		return finish(errors.New(errors.ErrSchemaMismatch, "tablesync: schema mismatch: "+diff))
	}

	if err := merge(ctx, r.Source, r.Dest, r.Source.Columns(), r.Source.skiplong); err != nil {
		r.Dest.RollBack()
		r.Source.abort()
		r.Dest.abort()
		return finish(err)
	}

	if err := r.Source.CloseQueries(); err != nil {
		r.Dest.RollBack()
		r.Dest.abort()
		return finish(err)
	}
	if err := r.Dest.CloseQueries(); err != nil {
		return finish(err)
	}
	return finish(nil)
}

// merge is the streaming set-difference: one row of state per side,
// advance the lesser stream, mutate the destination.
func merge(ctx context.Context, src, dst mergeSide, cols []ColumnInfo, skiplong map[string]bool) error {
	s, err := src.Fetch(ctx)
	if err != nil {
		return err
	}
	d, err := dst.Fetch(ctx)
	if err != nil {
		return err
	}

	compared := 0
	for s != nil || d != nil {
		var c int
		switch {
		case d == nil:
			c = -1
		case s == nil:
			c = 1
		default:
			c, err = compareRows(s, d, cols, skiplong)
			if err != nil {
				return err
			}
		}

		switch {
		case d == nil || c < 0:
			if err := dst.Insert(ctx, s); err != nil {
				return err
			}
			s, err = src.Fetch(ctx)
		case s == nil || c > 0:
			if err := dst.Delete(ctx, d); err != nil {
				return err
			}
			d, err = dst.Fetch(ctx)
		default:
			s, err = src.Fetch(ctx)
			if err == nil {
				d, err = dst.Fetch(ctx)
			}
		}
		if err != nil {
			return err
		}

		if err := dst.CheckPending(ctx); err != nil {
			return err
		}

		compared++
		if compared%1000 == 0 {
			logger.WithField("compared", compared).Debug("tablesync: reconciliation progress")
		}
	}
	return nil
}

func (r *Reconciler) summary() Summary {
	return Summary{Source: r.Source.Counters, Dest: r.Dest.Counters}
}

// compareRows is the stream comparator: lexicographic over the
// projection, skipping skiplong columns, NULL-low, numeric columns
// compared as arbitrary-precision decimals, string columns bytewise.
// It must agree with the ORDER BY buildQueries emits or the merge
// diverges.
func compareRows(s, d Row, cols []ColumnInfo, skiplong map[string]bool) (int, error) {
	for i, col := range cols {
		if skiplong[strings.ToLower(col.Name)] {
			continue
		}
		sv, dv := s[i], d[i]

		switch {
		case !sv.Valid && !dv.Valid:
			continue
		case !sv.Valid:
			return -1, nil
		case !dv.Valid:
			return 1, nil
		}

		var c int
		var err error
		if col.Type == ColTypeNumeric {
			c, err = compareNumeric(sv.String, dv.String)
			if err != nil {
				return 0, err
			}
		} else {
			c = strings.Compare(sv.String, dv.String)
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

func compareNumeric(a, b string) (int, error) {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrSchemaMismatch, "tablesync: non-numeric value in numeric column: "+a)
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrSchemaMismatch, "tablesync: non-numeric value in numeric column: "+b)
	}
	return da.Cmp(db), nil
}
