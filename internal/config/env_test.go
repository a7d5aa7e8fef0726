package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	t.Run("文件不存在时不报错", func(t *testing.T) {
		err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
		assert.NoError(t, err)
	})

	t.Run("加载键值且不覆盖已有变量", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		content := "# comment\nCOHORT_TEST_NEW=from-file\nCOHORT_TEST_EXISTING=from-file\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		t.Setenv("COHORT_TEST_EXISTING", "from-env")
		t.Cleanup(func() { os.Unsetenv("COHORT_TEST_NEW") })

		require.NoError(t, LoadEnv(path))
		assert.Equal(t, "from-file", os.Getenv("COHORT_TEST_NEW"))
		assert.Equal(t, "from-env", os.Getenv("COHORT_TEST_EXISTING"))
	})
}

func TestEnvDuration(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "Go格式", value: "10m", expected: 10 * time.Minute},
		{name: "纯秒数", value: "600", expected: 600 * time.Second},
		{name: "空值使用默认值", value: "", expected: time.Second},
		{name: "非法值", value: "soon", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("COHORT_TEST_DURATION", tc.value)
			d, err := envDuration("COHORT_TEST_DURATION", time.Second)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestEnvBoolAndInt(t *testing.T) {
	t.Setenv("COHORT_TEST_BOOL", "true")
	t.Setenv("COHORT_TEST_INT", "abc")

	b, err := envBool("COHORT_TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = envInt("COHORT_TEST_INT", 1)
	assert.Error(t, err)
}
