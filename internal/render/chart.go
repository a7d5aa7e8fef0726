package render

import (
	"fmt"
	"io"
	"math"

	"github.com/pterm/pterm"

	"cohort2sql-go/internal/database"
	"cohort2sql-go/internal/shaping"
)

// barScale 柱长按最大绝对值缩放到该范围
const barScale = 40

// Chart 把可绘图的结果输出为横向柱状图，标签后附原始数值
func Chart(w io.Writer, rs *database.ResultSet, sel *shaping.ChartSelection) error {
	points := shaping.Series(rs, sel)
	if len(points) == 0 {
		return nil
	}

	fmt.Fprintf(w, "%s by %s\n", sel.YColumn, sel.XColumn)
	return pterm.DefaultBarChart.
		WithWriter(w).
		WithHorizontal().
		WithWidth(barScale).
		WithBars(Bars(points)).
		Render()
}

// Bars 把数据点转换为柱，NULL值画为空柱
func Bars(points []shaping.Point) pterm.Bars {
	maxAbs := 0.0
	for _, p := range points {
		if p.Value != nil {
			maxAbs = math.Max(maxAbs, math.Abs(*p.Value))
		}
	}

	bars := make(pterm.Bars, len(points))
	for i, p := range points {
		label := p.Label + " (" + NullText + ")"
		value := 0
		if p.Value != nil {
			label = fmt.Sprintf("%s (%s)", p.Label, FormatValue(*p.Value))
			if maxAbs > 0 {
				value = int(math.Round(*p.Value / maxAbs * barScale))
			}
		}
		bars[i] = pterm.Bar{Label: label, Value: value}
	}
	return bars
}
