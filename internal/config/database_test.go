package config

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	config := &DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		SSLMode:         "disable",
		ApplicationName: "cohort2sql",
		SearchPath:      "omop_cdm,public",
		ConnectTimeout:  30 * time.Second,
	}

	connStr := config.GetConnectionString()
	assert.Contains(t, connStr, "host=localhost")
	assert.Contains(t, connStr, "port=5432")
	assert.Contains(t, connStr, "user=testuser")
	assert.Contains(t, connStr, "password=testpass")
	assert.Contains(t, connStr, "dbname=testdb")
	assert.Contains(t, connStr, "sslmode=disable")
	assert.Contains(t, connStr, "application_name=cohort2sql")
	assert.Contains(t, connStr, "search_path=omop_cdm,public")
	assert.Contains(t, connStr, "connect_timeout=30")
	assert.NotContains(t, connStr, "sslrootcert")
}

func TestDatabaseConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		modify  func(c *DatabaseConfig)
		wantErr string
	}{
		{name: "默认配置有效", modify: func(c *DatabaseConfig) {}},
		{name: "空主机", modify: func(c *DatabaseConfig) { c.Host = "" }, wantErr: "数据库主机地址不能为空"},
		{name: "端口越界", modify: func(c *DatabaseConfig) { c.Port = 70000 }, wantErr: "数据库端口必须在1-65535范围内"},
		{name: "空用户", modify: func(c *DatabaseConfig) { c.User = "" }, wantErr: "数据库用户名不能为空"},
		{name: "空数据库名", modify: func(c *DatabaseConfig) { c.Database = "" }, wantErr: "数据库名称不能为空"},
		{name: "最小连接数大于最大连接数", modify: func(c *DatabaseConfig) { c.MinConns = c.MaxConns + 1 }, wantErr: "最小连接数不能大于最大连接数"},
		{name: "最大行数为0", modify: func(c *DatabaseConfig) { c.MaxRows = 0 }, wantErr: "最大返回行数必须大于0"},
		{name: "无效SSL模式", modify: func(c *DatabaseConfig) { c.SSLMode = "sometimes" }, wantErr: "无效的SSL模式"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultDatabaseConfig()
			tc.modify(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDatabaseConfig_GetPoolConfig(t *testing.T) {
	c := DefaultDatabaseConfig()
	c.SSLMode = "disable"
	c.StatementTimeout = 15 * time.Second

	poolConfig, err := c.GetPoolConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, c.MaxConns, poolConfig.MaxConns)
	assert.Equal(t, c.MinConns, poolConfig.MinConns)
	assert.Equal(t, "15000", poolConfig.ConnConfig.RuntimeParams["statement_timeout"])

	tracer, ok := poolConfig.ConnConfig.Tracer.(*tracelog.TraceLog)
	require.True(t, ok)
	assert.Equal(t, tracelog.LogLevelWarn, tracer.LogLevel)
}

func TestDatabaseConfig_GetPoolConfig_Invalid(t *testing.T) {
	c := DefaultDatabaseConfig()
	c.Host = ""

	_, err := c.GetPoolConfig(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "数据库配置验证失败")
}

func TestLoadDatabaseConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "trials")
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_STATEMENT_TIMEOUT", "45s")

	c, err := LoadDatabaseConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", c.Host)
	assert.Equal(t, 6543, c.Port)
	assert.Equal(t, "trials", c.Database)
	assert.Equal(t, int32(8), c.MaxConns)
	assert.Equal(t, 45*time.Second, c.StatementTimeout)

	t.Setenv("DB_PORT", "not-a-port")
	_, err = LoadDatabaseConfigFromEnv()
	assert.Error(t, err)
}
