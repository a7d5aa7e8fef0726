package shaping

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort2sql-go/internal/database"
)

func resultWithRows(n int, columns ...database.Column) *database.ResultSet {
	rs := &database.ResultSet{Columns: columns}
	for i := 0; i < n; i++ {
		row := make([]any, len(columns))
		for j, c := range columns {
			if c.IsNumeric() {
				row[j] = int64(i * 10)
			} else {
				row[j] = "group"
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

var (
	textCol    = database.Column{Name: "disease", Type: database.ColumnText}
	numericCol = database.Column{Name: "patients", Type: database.ColumnNumeric}
	avgCol     = database.Column{Name: "avg_age", Type: database.ColumnNumeric}
)

func TestSelect_RowBoundaries(t *testing.T) {
	testCases := []struct {
		rows     int
		eligible bool
	}{
		{rows: 0, eligible: false},
		{rows: 1, eligible: false},
		{rows: 2, eligible: true},
		{rows: 5, eligible: true},
		{rows: 20, eligible: true},
		{rows: 21, eligible: false},
		{rows: 25, eligible: false},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d行", tc.rows), func(t *testing.T) {
			sel := Select(resultWithRows(tc.rows, textCol, numericCol))
			assert.Equal(t, tc.eligible, sel != nil)
		})
	}
}

func TestSelect_RequiresNumericColumn(t *testing.T) {
	sel := Select(resultWithRows(5, textCol, database.Column{Name: "sex", Type: database.ColumnText}))
	assert.Nil(t, sel)
}

func TestSelect_FirstColumnVsFirstNumeric(t *testing.T) {
	sel := Select(resultWithRows(5, textCol, numericCol, avgCol))
	require.NotNil(t, sel)
	assert.Equal(t, "disease", sel.XColumn)
	assert.Equal(t, "patients", sel.YColumn)
	assert.Equal(t, 1, sel.YIndex)
}

func TestSelect_NumericFirstColumnIsBothAxes(t *testing.T) {
	sel := Select(resultWithRows(3, numericCol, textCol))
	require.NotNil(t, sel)
	assert.Equal(t, "patients", sel.XColumn)
	assert.Equal(t, "patients", sel.YColumn)
}

func TestSelect_Nil(t *testing.T) {
	assert.Nil(t, Select(nil))
}

func TestSeries(t *testing.T) {
	rs := &database.ResultSet{
		Columns: []database.Column{
			{Name: "conditioning", Type: database.ColumnText},
			{Name: "survival_pct", Type: database.ColumnNumeric},
		},
		Rows: [][]any{
			{"Myeloablative", 72.4},
			{"Reduced Intensity", nil},
			{nil, int64(3)},
		},
	}

	points := Series(rs, Select(rs))
	require.Len(t, points, 3)
	assert.Equal(t, "Myeloablative", points[0].Label)
	assert.InDelta(t, 72.4, *points[0].Value, 0.0001)
	assert.Nil(t, points[1].Value)
	assert.Equal(t, "NULL", points[2].Label)
	assert.Equal(t, 3.0, *points[2].Value)

	assert.Nil(t, Series(rs, nil))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "2024-03-01", Label(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1", Label(int64(1)))
	assert.Equal(t, "2.5", Label(2.5))
	assert.Equal(t, "true", Label(true))
}
