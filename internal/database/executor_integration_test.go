package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap/zaptest"

	"cohort2sql-go/internal/apperrors"
	"cohort2sql-go/internal/config"
)

// ExecutorIntegrationTestSuite 在真实PostgreSQL容器上验证执行器与会话连接
type ExecutorIntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	manager   *Manager
}

func TestExecutorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("跳过需要Docker的集成测试")
	}
	suite.Run(t, new(ExecutorIntegrationTestSuite))
}

func (s *ExecutorIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx, "postgres:16-alpine",
		postgres.WithDatabase("cibmtr"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "5432/tcp")
	s.Require().NoError(err)

	dbConfig := config.DefaultDatabaseConfig()
	dbConfig.Host = host
	dbConfig.Port = port.Int()
	dbConfig.User = "testuser"
	dbConfig.Password = "testpass"
	dbConfig.Database = "cibmtr"
	dbConfig.SSLMode = "disable"
	dbConfig.MaxConns = 4
	dbConfig.MinConns = 0
	dbConfig.StatementTimeout = 5 * time.Second

	manager, err := NewManager(s.ctx, dbConfig, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.manager = manager

	_, err = manager.GetPool().Exec(s.ctx, `
		CREATE SCHEMA omop_cdm;
		CREATE TABLE omop_cdm.cibmtr_haploidentical_transplant (
			condint integer, dead integer, age numeric(5,1), disease text
		);
		INSERT INTO omop_cdm.cibmtr_haploidentical_transplant VALUES
			(1, 0, 34.5, 'AML'), (1, 1, 51.0, 'ALL'), (2, 0, 60.2, 'MDS');
		CREATE ROLE data_engineer NOLOGIN;
		GRANT data_engineer TO testuser;
		GRANT USAGE ON SCHEMA omop_cdm TO data_engineer;
		GRANT SELECT (condint, dead) ON omop_cdm.cibmtr_haploidentical_transplant TO data_engineer;
	`)
	s.Require().NoError(err)
}

func (s *ExecutorIntegrationTestSuite) TearDownSuite() {
	if s.manager != nil {
		s.manager.Close()
	}
	if s.container != nil {
		if err := testcontainers.TerminateContainer(s.container); err != nil {
			s.T().Logf("failed to cleanup postgres container: %v", err)
		}
	}
}

func (s *ExecutorIntegrationTestSuite) TestRun_AggregateQuery() {
	lease, err := s.manager.Acquire(s.ctx)
	s.Require().NoError(err)
	defer lease.Release()

	executor := NewExecutor(lease.Querier(), s.manager.MaxRows(), zaptest.NewLogger(s.T()))
	rs, err := executor.Run(s.ctx, `
		SELECT CASE condint WHEN 1 THEN 'Myeloablative' ELSE 'Reduced Intensity' END AS conditioning,
		       COUNT(*) AS patients,
		       ROUND(AVG(age), 1) AS avg_age
		FROM omop_cdm.cibmtr_haploidentical_transplant
		GROUP BY condint ORDER BY condint`)
	s.Require().NoError(err)

	s.Equal([]string{"conditioning", "patients", "avg_age"}, rs.ColumnNames())
	s.Equal(ColumnText, rs.Columns[0].Type)
	s.Equal(ColumnNumeric, rs.Columns[1].Type)
	s.Equal(ColumnNumeric, rs.Columns[2].Type)
	s.Require().Equal(2, rs.RowCount())
	s.Equal("Myeloablative", rs.Rows[0][0])
	s.Equal(int64(2), rs.Rows[0][1])
	s.InDelta(42.8, rs.Rows[0][2], 0.01)
}

func (s *ExecutorIntegrationTestSuite) TestRun_ExecutionFailureCarriesStoreText() {
	lease, err := s.manager.Acquire(s.ctx)
	s.Require().NoError(err)
	defer lease.Release()

	executor := NewExecutor(lease.Querier(), 100, nil)
	_, err = executor.Run(s.ctx, "SELECT * FROM omop_cdm.no_such_table")
	s.Require().Error(err)
	s.ErrorIs(err, apperrors.ErrExecution)
	s.Contains(err.Error(), "[42P01]")

	// 失败后连接仍可用
	rs, err := executor.Run(s.ctx, "SELECT 1 AS one")
	s.Require().NoError(err)
	s.Equal(1, rs.RowCount())
}

func (s *ExecutorIntegrationTestSuite) TestSetRole_RestrictsColumnsAndIsResetOnRelease() {
	lease, err := s.manager.Acquire(s.ctx)
	s.Require().NoError(err)

	executor := NewExecutor(lease.Querier(), 100, nil)
	s.Require().NoError(executor.SetRole(s.ctx, "data_engineer"))

	_, err = executor.Run(s.ctx, "SELECT age FROM omop_cdm.cibmtr_haploidentical_transplant")
	s.Require().Error(err)
	s.Contains(err.Error(), "[42501]")

	rs, err := executor.Run(s.ctx, "SELECT current_user AS role")
	s.Require().NoError(err)
	s.Equal("data_engineer", rs.Rows[0][0])

	lease.Release()

	// 连接池只有少量连接，重新租用后角色应已重置
	for i := 0; i < 4; i++ {
		next, err := s.manager.Acquire(s.ctx)
		s.Require().NoError(err)
		rs, err := NewExecutor(next.Querier(), 10, nil).Run(s.ctx, "SELECT current_user AS role")
		next.Release()
		s.Require().NoError(err)
		s.Equal("testuser", rs.Rows[0][0])
	}
}

func (s *ExecutorIntegrationTestSuite) TestSetRole_UnknownRole() {
	lease, err := s.manager.Acquire(s.ctx)
	s.Require().NoError(err)
	defer lease.Release()

	err = NewExecutor(lease.Querier(), 10, nil).SetRole(s.ctx, "ghost_role")
	s.Require().Error(err)
	s.ErrorIs(err, apperrors.ErrRoleSwitch)
}
