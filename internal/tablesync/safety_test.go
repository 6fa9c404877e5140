package tablesync

import (
	"context"
	"testing"

	"github.com/mst-edu/idm-infra/pkg/errors"
)

// TestInsertCapTrips: with max_inserts=10
// and force=false, the 11th insert is refused with MaxInsertsReached
// and the counter does not advance past the cap. dry_run keeps this
// test free of any real database dependency while still exercising the
// exact gate in TableClient.Insert.
func TestInsertCapTrips(t *testing.T) {
	tc := &TableClient{
		cfg: Config{
			Role:       RoleDest,
			MaxInserts: 10,
			DryRun:     true,
		},
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := tc.Insert(ctx, Row{}); err != nil {
			t.Fatalf("insert %d: unexpected error: %v", i, err)
		}
	}
	if tc.Counters.Inserts != 10 {
		t.Fatalf("Inserts = %d, want 10", tc.Counters.Inserts)
	}

	err := tc.Insert(ctx, Row{})
	if !errors.Is(err, errors.ErrMaxInsertsReached) {
		t.Fatalf("11th insert error = %v, want MaxInsertsReached", err)
	}
	if tc.Counters.Inserts != 10 {
		t.Fatalf("Inserts after cap trip = %d, want still 10", tc.Counters.Inserts)
	}
	if !tc.Counters.HitMaxInserts {
		t.Fatalf("HitMaxInserts not set after cap trip")
	}
}

// TestDeleteCapTrips mirrors TestInsertCapTrips for max_deletes.
func TestDeleteCapTrips(t *testing.T) {
	tc := &TableClient{
		cfg: Config{
			Role:       RoleDest,
			MaxDeletes: 3,
			DryRun:     true,
		},
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := tc.Delete(ctx, Row{}); err != nil {
			t.Fatalf("delete %d: unexpected error: %v", i, err)
		}
	}

	err := tc.Delete(ctx, Row{})
	if !errors.Is(err, errors.ErrMaxDeletesReached) {
		t.Fatalf("4th delete error = %v, want MaxDeletesReached", err)
	}
	if !tc.Counters.HitMaxDeletes {
		t.Fatalf("HitMaxDeletes not set after cap trip")
	}
}

// TestForceBypassesCap: with force=true, inserts keep succeeding past
// max_inserts.
func TestForceBypassesCap(t *testing.T) {
	tc := &TableClient{
		cfg: Config{
			Role:       RoleDest,
			MaxInserts: 2,
			Force:      true,
			DryRun:     true,
		},
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := tc.Insert(ctx, Row{}); err != nil {
			t.Fatalf("insert %d with force=true: unexpected error: %v", i, err)
		}
	}
	if tc.Counters.Inserts != 5 {
		t.Fatalf("Inserts = %d, want 5", tc.Counters.Inserts)
	}
	if tc.Counters.HitMaxInserts {
		t.Fatalf("HitMaxInserts should not be set when force=true")
	}
}

// TestCheckPendingCommitsPastMaxPending covers the MaxPending commit
// threshold in dry_run mode: no real commit is issued but counters
// behave identically.
func TestCheckPendingCommitsPastMaxPending(t *testing.T) {
	tc := &TableClient{
		cfg: Config{
			Role:   RoleDest,
			Force:  true,
			DryRun: true,
		},
	}
	tc.Counters.Pending = MaxPending + 1

	ctx := context.Background()
	if err := tc.CheckPending(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.Counters.Pending != 0 {
		t.Fatalf("Pending after check = %d, want 0", tc.Counters.Pending)
	}
	if tc.Counters.Commits != 1 {
		t.Fatalf("Commits = %d, want 1", tc.Counters.Commits)
	}
}

// TestCheckPendingNoOpWithoutForce: without force, pending is never
// flushed by checkPending regardless of how large it grows.
func TestCheckPendingNoOpWithoutForce(t *testing.T) {
	tc := &TableClient{
		cfg: Config{Role: RoleDest, DryRun: true},
	}
	tc.Counters.Pending = MaxPending * 10

	ctx := context.Background()
	if err := tc.CheckPending(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.Counters.Pending != MaxPending*10 {
		t.Fatalf("Pending changed without force: %d", tc.Counters.Pending)
	}
	if tc.Counters.Commits != 0 {
		t.Fatalf("Commits = %d, want 0 without force", tc.Counters.Commits)
	}
}
