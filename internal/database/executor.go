package database

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"cohort2sql-go/internal/apperrors"
)

// Querier 执行器需要的连接能力，*pgxpool.Conn 和 *pgx.Conn 均满足
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Executor 在单个连接上原样执行查询
// pgx连接不能并发使用，所有调用通过互斥锁串行化
type Executor struct {
	mu      sync.Mutex
	conn    Querier
	maxRows int
	typeMap *pgtype.Map
	logger  *zap.Logger
}

// NewExecutor 创建查询执行器
func NewExecutor(conn Querier, maxRows int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Executor{
		conn:    conn,
		maxRows: maxRows,
		typeMap: pgtype.NewMap(),
		logger:  logger,
	}
}

// Run 执行查询并返回结果集
// 失败时返回携带数据库错误文本的ExecutionFailure，不重试也不修复查询
func (e *Executor) Run(ctx context.Context, sql string) (*ResultSet, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, apperrors.Execution("empty query", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	rs, err := e.run(ctx, sql)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn("SQL查询执行失败",
			zap.String("sql", sql),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return nil, apperrors.Execution(describeError(err), err)
	}

	rs.Duration = elapsed
	rs.ExecutedAt = start
	e.logger.Debug("SQL查询执行成功",
		zap.Int("row_count", rs.RowCount()),
		zap.Bool("truncated", rs.Truncated),
		zap.Duration("duration", elapsed))
	return rs, nil
}

func (e *Executor) run(ctx context.Context, sql string) (*ResultSet, error) {
	rows, err := e.conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &ResultSet{
		Columns: make([]Column, len(fields)),
		Rows:    [][]any{},
	}
	for i, fd := range fields {
		rs.Columns[i] = Column{
			Name:         fd.Name,
			Type:         ClassifyOID(fd.DataTypeOID),
			DatabaseType: e.typeName(fd.DataTypeOID),
		}
	}

	for rows.Next() {
		if len(rs.Rows) >= e.maxRows {
			rs.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if rs.Truncated {
		// 提前结束时不检查rows.Err，剩余行被丢弃
		return rs, nil
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// SetRole 切换当前连接的数据库角色
func (e *Executor) SetRole(ctx context.Context, role string) error {
	if strings.TrimSpace(role) == "" {
		return apperrors.RoleSwitch("empty role name", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stmt := "SET ROLE " + pgx.Identifier{role}.Sanitize()
	if _, err := e.conn.Exec(ctx, stmt); err != nil {
		e.logger.Warn("切换数据库角色失败", zap.String("role", role), zap.Error(err))
		return apperrors.RoleSwitch(describeError(err), err)
	}
	e.logger.Info("数据库角色已切换", zap.String("role", role))
	return nil
}

func (e *Executor) typeName(oid uint32) string {
	if t, ok := e.typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return fmt.Sprintf("oid:%d", oid)
}

// describeError 提取数据库返回的错误文本
func describeError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("[%s] %s", pgErr.Code, pgErr.Message)
	}
	return err.Error()
}

// convertValue 转换为可直接序列化展示的值
func convertValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case pgtype.Numeric:
		if !v.Valid {
			return nil
		}
		switch {
		case v.NaN:
			return "NaN"
		case v.InfinityModifier == pgtype.Infinity:
			return "Infinity"
		case v.InfinityModifier == pgtype.NegativeInfinity:
			return "-Infinity"
		}
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return finite(f.Float64)
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case []byte:
		return "base64:" + base64.StdEncoding.EncodeToString(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Interval:
		if !v.Valid {
			return nil
		}
		return fmt.Sprintf("%d months %d days %s", v.Months, v.Days, time.Duration(v.Microseconds)*time.Microsecond)
	default:
		return value
	}
}

// finite 非有限浮点数用PostgreSQL的文本形式表示，JSON无法编码NaN和Inf
func finite(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}
