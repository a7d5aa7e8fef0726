package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cohort2sql-go/internal/config"
)

// MockDatabaseChecker 数据库检查的mock实现
type MockDatabaseChecker struct {
	mock.Mock
}

func (m *MockDatabaseChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fixedCounter int

func (c fixedCounter) Len() int { return int(c) }

func newTestHealthService(t *testing.T, db DatabaseChecker, sessions SessionCounter, max uint64) *HealthService {
	t.Helper()
	info := config.NewAppInfo("cohort2sql", "1.2.3", "2026-01-01T00:00:00Z", "abc123", "test")
	return NewHealthService(db, sessions, max, info, zaptest.NewLogger(t))
}

func TestHealthService_CheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		active     int
		max        uint64
		wantStatus HealthStatus
		wantDB     HealthStatus
		wantSess   HealthStatus
	}{
		{"全部正常", nil, 2, 10, HealthStatusHealthy, HealthStatusHealthy, HealthStatusHealthy},
		{"数据库异常时降级", errors.New("connection refused"), 0, 10, HealthStatusDegraded, HealthStatusUnhealthy, HealthStatusHealthy},
		{"会话已满时降级", nil, 10, 10, HealthStatusDegraded, HealthStatusHealthy, HealthStatusDegraded},
		{"不限制会话数", nil, 1000, 0, HealthStatusHealthy, HealthStatusHealthy, HealthStatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockDatabaseChecker)
			db.On("HealthCheck", mock.Anything).Return(tt.dbErr)

			h := newTestHealthService(t, db, fixedCounter(tt.active), tt.max)
			result := h.CheckHealth(context.Background())

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantDB, result.Components["database"].Status)
			assert.Equal(t, tt.wantSess, result.Components["sessions"].Status)
			assert.Equal(t, "cohort2sql", result.Service)
			assert.Equal(t, "1.2.3", result.Version)
			assert.Equal(t, "test", result.Environment)
			db.AssertExpectations(t)
		})
	}
}

func TestHealthService_CheckReadiness(t *testing.T) {
	t.Run("就绪", func(t *testing.T) {
		db := new(MockDatabaseChecker)
		db.On("HealthCheck", mock.Anything).Return(nil)

		result := newTestHealthService(t, db, fixedCounter(1), 5).CheckReadiness(context.Background())
		assert.Equal(t, HealthStatusHealthy, result.Status)
	})

	t.Run("数据库异常时未就绪", func(t *testing.T) {
		db := new(MockDatabaseChecker)
		db.On("HealthCheck", mock.Anything).Return(errors.New("timeout"))

		result := newTestHealthService(t, db, fixedCounter(1), 5).CheckReadiness(context.Background())
		assert.Equal(t, HealthStatusUnhealthy, result.Status)
		assert.Contains(t, result.Components["database"].Message, "timeout")
	})

	t.Run("会话已满时未就绪", func(t *testing.T) {
		db := new(MockDatabaseChecker)
		db.On("HealthCheck", mock.Anything).Return(nil)

		result := newTestHealthService(t, db, fixedCounter(5), 5).CheckReadiness(context.Background())
		assert.Equal(t, HealthStatusUnhealthy, result.Status)
	})

	t.Run("依赖未配置", func(t *testing.T) {
		result := newTestHealthService(t, nil, nil, 0).CheckReadiness(context.Background())
		assert.Equal(t, HealthStatusUnhealthy, result.Status)
		assert.Equal(t, HealthStatusUnhealthy, result.Components["database"].Status)
		assert.Equal(t, HealthStatusUnhealthy, result.Components["sessions"].Status)
	})
}

func TestHealthService_GetVersionInfo(t *testing.T) {
	h := newTestHealthService(t, nil, nil, 0)
	info := h.GetVersionInfo()

	require.NotNil(t, info)
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["git_commit"])
	assert.NotEmpty(t, info["go_version"])
}
