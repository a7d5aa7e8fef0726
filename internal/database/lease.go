package database

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Lease 会话独占的连接
type Lease struct {
	conn   *pgxpool.Conn
	logger *zap.Logger
	once   sync.Once
}

func newLease(conn *pgxpool.Conn, logger *zap.Logger) *Lease {
	return &Lease{conn: conn, logger: logger}
}

// Querier 返回可用于执行器的连接
func (l *Lease) Querier() Querier {
	return l.conn
}

// Release 重置角色后把连接归还连接池
// 重置失败时直接关闭连接，避免角色泄漏给下一个会话
func (l *Lease) Release() {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := l.conn.Exec(ctx, "RESET ROLE"); err != nil {
			l.logger.Warn("重置会话角色失败，关闭连接", zap.Error(err))
			raw := l.conn.Hijack()
			_ = raw.Close(ctx)
			return
		}
		l.conn.Release()
	})
}
