// Package shaping 判断结果集是否适合用图表概括，并选择坐标轴列。
package shaping

import (
	"fmt"
	"time"

	"cohort2sql-go/internal/database"
)

// 可绘图的行数范围（含边界）
const (
	MinChartRows = 2
	MaxChartRows = 20
)

// ChartSelection 图表的坐标轴选择
type ChartSelection struct {
	XColumn string `json:"x_column"`
	YColumn string `json:"y_column"`
	XIndex  int    `json:"x_index"`
	YIndex  int    `json:"y_index"`
}

// Point 柱状图中的一个数据点
type Point struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"` // NULL值为nil
}

// Select 行数在2..20之间且存在数值列时，X取第一列，Y取声明顺序中的第一个数值列
// Y列可能就是第一列。不满足条件时返回nil
func Select(rs *database.ResultSet) *ChartSelection {
	if rs == nil {
		return nil
	}
	n := rs.RowCount()
	if n < MinChartRows || n > MaxChartRows {
		return nil
	}
	y := rs.FirstNumericColumn()
	if y < 0 {
		return nil
	}
	return &ChartSelection{
		XColumn: rs.Columns[0].Name,
		YColumn: rs.Columns[y].Name,
		XIndex:  0,
		YIndex:  y,
	}
}

// Series 按选择的列提取数据点
func Series(rs *database.ResultSet, sel *ChartSelection) []Point {
	if rs == nil || sel == nil {
		return nil
	}
	points := make([]Point, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		points = append(points, Point{
			Label: Label(row[sel.XIndex]),
			Value: toFloat(row[sel.YIndex]),
		})
	}
	return points
}

// Label 把任意单元格值渲染为分类标签
func Label(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", x)
	case float32:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case int16:
		f = float64(x)
	case int:
		f = float64(x)
	default:
		return nil
	}
	return &f
}
