package database

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ColumnType 列的展示类型，执行时根据字段OID确定
type ColumnType string

const (
	ColumnNumeric  ColumnType = "numeric"
	ColumnText     ColumnType = "text"
	ColumnBoolean  ColumnType = "boolean"
	ColumnTemporal ColumnType = "temporal"
	ColumnOther    ColumnType = "other"
)

// Column 结果集中的列
type Column struct {
	Name         string     `json:"name"`
	Type         ColumnType `json:"type"`
	DatabaseType string     `json:"database_type"`
}

// IsNumeric 是否为数值列
func (c Column) IsNumeric() bool {
	return c.Type == ColumnNumeric
}

// ResultSet 查询结果，执行后只读
type ResultSet struct {
	Columns    []Column      `json:"columns"`
	Rows       [][]any       `json:"rows"`
	Truncated  bool          `json:"truncated,omitempty"`
	Duration   time.Duration `json:"duration"`
	ExecutedAt time.Time     `json:"executed_at"`
}

// RowCount 返回行数
func (rs *ResultSet) RowCount() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// ColumnIndex 按名称查找列，大小写不敏感，不存在时返回-1
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// FirstNumericColumn 按声明顺序返回第一个数值列的下标，不存在时返回-1
func (rs *ResultSet) FirstNumericColumn() int {
	for i, c := range rs.Columns {
		if c.IsNumeric() {
			return i
		}
	}
	return -1
}

// ColumnNames 返回列名列表
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

var columnTypesByOID = map[uint32]ColumnType{
	pgtype.Int2OID:        ColumnNumeric,
	pgtype.Int4OID:        ColumnNumeric,
	pgtype.Int8OID:        ColumnNumeric,
	pgtype.Float4OID:      ColumnNumeric,
	pgtype.Float8OID:      ColumnNumeric,
	pgtype.NumericOID:     ColumnNumeric,
	pgtype.BoolOID:        ColumnBoolean,
	pgtype.DateOID:        ColumnTemporal,
	pgtype.TimeOID:        ColumnTemporal,
	pgtype.TimestampOID:   ColumnTemporal,
	pgtype.TimestamptzOID: ColumnTemporal,
	pgtype.IntervalOID:    ColumnTemporal,
	pgtype.TextOID:        ColumnText,
	pgtype.VarcharOID:     ColumnText,
	pgtype.BPCharOID:      ColumnText,
	pgtype.NameOID:        ColumnText,
	pgtype.QCharOID:       ColumnText,
	pgtype.UUIDOID:        ColumnText,
}

// ClassifyOID 把字段OID映射为展示类型
func ClassifyOID(oid uint32) ColumnType {
	if t, ok := columnTypesByOID[oid]; ok {
		return t
	}
	return ColumnOther
}
