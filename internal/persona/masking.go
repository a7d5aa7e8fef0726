package persona

import (
	"strings"

	"cohort2sql-go/internal/database"
)

// RedactedMarker 数据库脱敏策略替换后的文本
const RedactedMarker = "***REDACTED***"

// DefaultNullMaskedColumns 脱敏时整列置空的列
var DefaultNullMaskedColumns = []string{"LOCATION_ID"}

// DetectMaskedColumns 根据样本结果推断哪些列被脱敏
// 首行文本等于脱敏标记，或者nullMasked中的列全部为NULL，均视为脱敏
// 这只是启发式判断，空结果集返回nil
func DetectMaskedColumns(rs *database.ResultSet, nullMasked ...string) []string {
	if rs == nil || rs.RowCount() == 0 {
		return nil
	}
	if len(nullMasked) == 0 {
		nullMasked = DefaultNullMaskedColumns
	}

	var masked []string
	for i, col := range rs.Columns {
		if s, ok := rs.Rows[0][i].(string); ok && s == RedactedMarker {
			masked = append(masked, strings.ToUpper(col.Name))
			continue
		}
		if containsFold(nullMasked, col.Name) && allNull(rs, i) {
			masked = append(masked, strings.ToUpper(col.Name))
		}
	}
	return masked
}

func allNull(rs *database.ResultSet, col int) bool {
	for _, row := range rs.Rows {
		if row[col] != nil {
			return false
		}
	}
	return true
}

func containsFold(list []string, name string) bool {
	for _, s := range list {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
