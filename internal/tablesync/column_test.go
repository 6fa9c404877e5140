package tablesync

import "testing"

func TestClassifyColumn(t *testing.T) {
	cases := []struct {
		name       string
		driverType string
		masked     bool
		mysqlBlob  bool
		wantType   ColType
		wantLong   bool
		wantErr    bool
	}{
		{name: "id", driverType: "INT", wantType: ColTypeNumeric},
		{name: "amount", driverType: "DECIMAL", wantType: ColTypeNumeric},
		{name: "name", driverType: "VARCHAR", wantType: ColTypeString},
		{name: "created", driverType: "DATETIME", wantType: ColTypeString},
		{name: "blob_col", driverType: "BLOB", mysqlBlob: true, wantType: ColTypeString},
		{name: "blob_col", driverType: "BLOB", mysqlBlob: false, wantErr: true},
		{name: "notes", driverType: "LONG", wantType: ColTypeString, wantLong: true},
		{name: "notes", driverType: "CLOB", wantType: ColTypeString, wantLong: true},
		{name: "raw_col", driverType: "RAW", wantType: ColTypeUnknown},
		{name: "file_col", driverType: "BFILE", wantType: ColTypeUnknown},
		{name: "region", driverType: "NUMBER", masked: true, wantType: ColTypeString},
		{name: "mystery", driverType: "GEOMETRY", wantErr: true},
	}

	for _, tc := range cases {
		info, err := classifyColumn(tc.name, tc.driverType, tc.masked, tc.mysqlBlob)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s/%s: expected error, got none", tc.name, tc.driverType)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s/%s: unexpected error: %v", tc.name, tc.driverType, err)
		}
		if info.Type != tc.wantType {
			t.Errorf("%s/%s: type = %v, want %v", tc.name, tc.driverType, info.Type, tc.wantType)
		}
		if info.Long != tc.wantLong {
			t.Errorf("%s/%s: long = %v, want %v", tc.name, tc.driverType, info.Long, tc.wantLong)
		}
	}
}

func TestSameSchema(t *testing.T) {
	a := []ColumnInfo{{Name: "id", Type: ColTypeNumeric}, {Name: "val", Type: ColTypeString}}
	b := []ColumnInfo{{Name: "ID", Type: ColTypeNumeric}, {Name: "val", Type: ColTypeString}}
	if ok, _ := sameSchema(a, b); !ok {
		t.Fatalf("expected schemas to match case-insensitively")
	}

	c := []ColumnInfo{{Name: "id", Type: ColTypeString}, {Name: "val", Type: ColTypeString}}
	if ok, diff := sameSchema(a, c); ok {
		t.Fatalf("expected type mismatch to be detected")
	} else if diff == "" {
		t.Fatalf("expected a non-empty diff on mismatch")
	}
}
