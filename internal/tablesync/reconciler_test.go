package tablesync

import (
	"database/sql"
	"testing"
)

func ns(v string) sql.NullString {
	return sql.NullString{String: v, Valid: true}
}

func nullVal() sql.NullString {
	return sql.NullString{}
}

func TestCompareRowsNumericAndString(t *testing.T) {
	cols := []ColumnInfo{
		{Name: "id", Type: ColTypeNumeric},
		{Name: "val", Type: ColTypeString},
	}

	// (2,'b') vs (2,'B') -> 'b' > 'B' bytewise.
	c, err := compareRows(Row{ns("2"), ns("b")}, Row{ns("2"), ns("B")}, cols, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c <= 0 {
		t.Fatalf("compareRows(2,'b' vs 2,'B') = %d, want > 0", c)
	}

	c, err = compareRows(Row{ns("2"), ns("b")}, Row{ns("4"), ns("d")}, cols, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c >= 0 {
		t.Fatalf("compareRows(2,... vs 4,...) = %d, want < 0", c)
	}

	c, err = compareRows(Row{ns("1"), ns("a")}, Row{ns("1"), ns("a")}, cols, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 0 {
		t.Fatalf("compareRows(identical rows) = %d, want 0", c)
	}
}

func TestCompareRowsNullsFirst(t *testing.T) {
	cols := []ColumnInfo{{Name: "val", Type: ColTypeString}}

	c, err := compareRows(Row{nullVal()}, Row{ns("a")}, cols, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c >= 0 {
		t.Fatalf("NULL should sort before a non-NULL value, got %d", c)
	}

	c, err = compareRows(Row{nullVal()}, Row{nullVal()}, cols, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 0 {
		t.Fatalf("two NULLs should compare equal, got %d", c)
	}
}

func TestCompareRowsSkipsLongColumns(t *testing.T) {
	cols := []ColumnInfo{
		{Name: "id", Type: ColTypeNumeric},
		{Name: "body", Type: ColTypeString, Long: true},
	}
	skiplong := map[string]bool{"body": true}

	c, err := compareRows(Row{ns("1"), ns("alpha")}, Row{ns("1"), ns("beta")}, cols, skiplong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 0 {
		t.Fatalf("LONG column must not affect ordering, got %d", c)
	}
}

func TestCompareNumericArbitraryPrecision(t *testing.T) {
	c, err := compareNumeric("100000000000000000000.5", "100000000000000000000.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != 0 {
		t.Fatalf("decimal comparison should treat equal values as equal regardless of trailing zero, got %d", c)
	}

	if _, err := compareNumeric("not-a-number", "1"); err == nil {
		t.Fatalf("expected an error for a non-numeric value in a numeric column")
	}
}
