package tablesync

import (
	"strings"

	"github.com/mst-edu/idm-infra/pkg/errors"
)

// ColType is a column's comparison and parameter-binding classification.
type ColType int

const (
	ColTypeUnknown ColType = iota
	ColTypeString
	ColTypeNumeric
)

// ColumnInfo describes one projected column after classification.
type ColumnInfo struct {
	Name       string
	DriverType string // uppercased driver type name, e.g. "VARCHAR", "NUMBER"
	Type       ColType
	Long       bool // LONG/CLOB: participates in projection, excluded from sort
	Masked     bool // replaced by a literal in source SELECTs
}

// classifyColumn maps a driver type name to its comparison class.
// mysqlBlob additionally maps BLOB to string for MySQL sessions.
func classifyColumn(name, driverType string, masked, mysqlBlob bool) (ColumnInfo, error) {
	upper := strings.ToUpper(driverType)
	info := ColumnInfo{Name: name, DriverType: upper, Masked: masked}

	if masked {
		info.Type = ColTypeString
		return info, nil
	}

	switch {
	case upper == "RAW" || upper == "BFILE":
		info.Type = ColTypeUnknown
		return info, nil
	case strings.Contains(upper, "LONG") || upper == "CLOB" || driverType == "40":
		info.Type = ColTypeString
		info.Long = true
		return info, nil
	case strings.Contains(upper, "CHAR") || strings.Contains(upper, "TIME") ||
		strings.Contains(upper, "DATE") || strings.Contains(upper, "BIN"):
		info.Type = ColTypeString
		return info, nil
	case mysqlBlob && strings.Contains(upper, "BLOB"):
		info.Type = ColTypeString
		return info, nil
	case strings.Contains(upper, "DEC") || strings.Contains(upper, "INT") ||
		strings.Contains(upper, "NUM") || strings.Contains(upper, "DOUBLE") ||
		strings.Contains(upper, "FLOAT"):
		info.Type = ColTypeNumeric
		return info, nil
	default:
		return ColumnInfo{}, errors.New(errors.ErrUnsupported, "InitFailed: unsupported column type "+driverType+" for column "+name)
	}
}

// sameSchema reports whether two classified column sets match in name,
// type, and order; a disagreement means the two sides cannot be
// compared row by row.
func sameSchema(a, b []ColumnInfo) (bool, string) {
	if len(a) != len(b) {
		return false, dumpColinfo(a, b)
	}
	for i := range a {
		if !strings.EqualFold(a[i].Name, b[i].Name) || a[i].Type != b[i].Type {
			return false, dumpColinfo(a, b)
		}
	}
	return true, ""
}

// dumpColinfo renders both column sets for a SchemaMismatch error.
func dumpColinfo(a, b []ColumnInfo) string {
	var sb strings.Builder
	sb.WriteString("source: ")
	for _, c := range a {
		sb.WriteString(c.Name)
		sb.WriteString("(")
		sb.WriteString(colTypeName(c.Type))
		sb.WriteString(") ")
	}
	sb.WriteString("| dest: ")
	for _, c := range b {
		sb.WriteString(c.Name)
		sb.WriteString("(")
		sb.WriteString(colTypeName(c.Type))
		sb.WriteString(") ")
	}
	return sb.String()
}

func colTypeName(t ColType) string {
	switch t {
	case ColTypeString:
		return "string"
	case ColTypeNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}
