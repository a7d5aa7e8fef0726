package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefaultAppInfo 测试默认应用信息创建
func TestDefaultAppInfo(t *testing.T) {
	appInfo := DefaultAppInfo()

	assert.Equal(t, "cohort2sql", appInfo.Name)
	assert.Equal(t, Version, appInfo.Version)
	assert.Equal(t, runtime.Version(), appInfo.GoVersion)
	assert.Equal(t, "development", appInfo.Environment)

	_, err := time.Parse(time.RFC3339, appInfo.BuildTime)
	assert.NoError(t, err, "BuildTime should be in RFC3339 format")
}

func TestNewAppInfo_KeepsBuildTime(t *testing.T) {
	appInfo := NewAppInfo("test-app", "1.2.3", "2024-01-08T12:00:00Z", "abc123", "production")

	info := appInfo.GetBuildInfo()
	assert.Equal(t, "test-app", info["name"])
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2024-01-08T12:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["git_commit"])
	assert.Equal(t, "production", info["environment"])
}
