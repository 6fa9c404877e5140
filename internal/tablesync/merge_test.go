package tablesync

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mst-edu/idm-infra/pkg/errors"
)

// fakeSide feeds a fixed sorted row stream to merge and records every
// mutation applied to it, standing in for a real TableClient.
type fakeSide struct {
	rows []Row
	pos  int
	ops  []string

	insertErr error
}

func (f *fakeSide) Fetch(ctx context.Context) (Row, error) {
	if f.pos >= len(f.rows) {
		return nil, nil
	}
	row := f.rows[f.pos]
	f.pos++
	return row, nil
}

func (f *fakeSide) Insert(ctx context.Context, row Row) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.ops = append(f.ops, "INSERT "+renderRow(row))
	return nil
}

func (f *fakeSide) Delete(ctx context.Context, row Row) error {
	f.ops = append(f.ops, "DELETE "+renderRow(row))
	return nil
}

func (f *fakeSide) CheckPending(ctx context.Context) error { return nil }

func renderRow(row Row) string {
	out := ""
	for i, v := range row {
		if i > 0 {
			out += ","
		}
		if !v.Valid {
			out += "NULL"
			continue
		}
		out += v.String
	}
	return out
}

// TestMergeBasicScenario: source
// (1,'a'),(2,'b'),(3,'c') against dest (1,'a'),(2,'B'),(4,'d') must
// produce, in order, DELETE (2,B); INSERT (2,b); INSERT (3,c);
// DELETE (4,d).
func TestMergeBasicScenario(t *testing.T) {
	cols := []ColumnInfo{
		{Name: "id", Type: ColTypeNumeric},
		{Name: "val", Type: ColTypeString},
	}
	src := &fakeSide{rows: []Row{
		{ns("1"), ns("a")},
		{ns("2"), ns("b")},
		{ns("3"), ns("c")},
	}}
	dst := &fakeSide{rows: []Row{
		{ns("1"), ns("a")},
		{ns("2"), ns("B")},
		{ns("4"), ns("d")},
	}}

	err := merge(context.Background(), src, dst, cols, nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		"DELETE 2,B",
		"INSERT 2,b",
		"INSERT 3,c",
		"DELETE 4,d",
	}, dst.ops)
}

// TestMergeEmptyDestInsertsEverything: a drained destination stream
// turns every remaining source row into one INSERT.
func TestMergeEmptyDestInsertsEverything(t *testing.T) {
	cols := []ColumnInfo{{Name: "id", Type: ColTypeNumeric}}
	src := &fakeSide{rows: []Row{{ns("1")}, {ns("2")}, {ns("3")}}}
	dst := &fakeSide{}

	err := merge(context.Background(), src, dst, cols, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"INSERT 1", "INSERT 2", "INSERT 3"}, dst.ops)
}

// TestMergeIdenticalStreamsIsIdempotent: equal streams produce zero
// mutations.
func TestMergeIdenticalStreamsIsIdempotent(t *testing.T) {
	cols := []ColumnInfo{{Name: "id", Type: ColTypeNumeric}}
	rows := []Row{{ns("1")}, {ns("2")}, {ns("3")}}
	src := &fakeSide{rows: rows}
	dst := &fakeSide{rows: rows}

	err := merge(context.Background(), src, dst, cols, nil)
	require.NoError(t, err)
	require.Empty(t, dst.ops)
}

// TestMergeNullRowSortsFirst: a NULL key on one side must be treated as
// strictly less, matching the NULLS-first SELECT ordering.
func TestMergeNullRowSortsFirst(t *testing.T) {
	cols := []ColumnInfo{{Name: "id", Type: ColTypeNumeric}}
	src := &fakeSide{rows: []Row{{nullVal()}, {ns("2")}}}
	dst := &fakeSide{rows: []Row{{ns("2")}}}

	err := merge(context.Background(), src, dst, cols, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"INSERT NULL"}, dst.ops)
}

// TestMergeStopsOnFirstError: the Reconciler reports the first error
// and terminates the merge.
func TestMergeStopsOnFirstError(t *testing.T) {
	cols := []ColumnInfo{{Name: "id", Type: ColTypeNumeric}}
	src := &fakeSide{rows: []Row{{ns("1")}, {ns("2")}}}
	dst := &fakeSide{insertErr: errors.New(errors.ErrDriverError, "boom")}

	err := merge(context.Background(), src, dst, cols, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrDriverError), fmt.Sprintf("unexpected error: %v", err))
	require.Empty(t, dst.ops)
}
