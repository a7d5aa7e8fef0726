// Package render 把结果集、对话轮次和看板视图输出到终端。
package render

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/shaping"
)

// NullText NULL值的显示文本
const NullText = "NULL"

// Table 以表格形式输出结果集，数值列右对齐
func Table(w io.Writer, rs *database.ResultSet) {
	if rs == nil || len(rs.Columns) == 0 {
		fmt.Fprintln(w, "(no columns)")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader(rs.ColumnNames())

	alignment := make([]int, len(rs.Columns))
	for i, c := range rs.Columns {
		if c.IsNumeric() {
			alignment[i] = tablewriter.ALIGN_RIGHT
		} else {
			alignment[i] = tablewriter.ALIGN_LEFT
		}
	}
	table.SetColumnAlignment(alignment)

	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	switch {
	case rs.RowCount() == 0:
		fmt.Fprintln(w, "(no rows)")
	case rs.Truncated:
		fmt.Fprintf(w, "(showing first %d rows)\n", rs.RowCount())
	default:
		fmt.Fprintf(w, "(%d rows)\n", rs.RowCount())
	}
}

// FormatValue 单元格显示文本
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NullText
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return shaping.Label(x)
	default:
		return fmt.Sprint(x)
	}
}
