package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile 在临时目录写入一个 YAML 配置文件，返回目录
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644)
	require.NoError(t, err)
	return dir
}

func newLoadedLoader(t *testing.T, content string) Loader {
	t.Helper()

	dir := writeConfigFile(t, content)
	loader, err := New(&Config{
		Name:      "config",
		Paths:     []string{dir},
		EnvPrefix: "FUSETEST",
	})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))
	return loader
}

const sampleYAML = `
app:
  name: fuse-demo
  debug: true
breakers:
  user-service:
    preset: strict
    timeout: 2s
  search-service:
    failure_threshold: 20
`

func TestNewDefaults(t *testing.T) {
	loader, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, loader)
}

func TestLoadAndGet(t *testing.T) {
	loader := newLoadedLoader(t, sampleYAML)

	t.Run("Get 返回原始值", func(t *testing.T) {
		assert.Equal(t, "fuse-demo", loader.Get("app.name"))
		assert.Equal(t, true, loader.Get("app.debug"))
		assert.Nil(t, loader.Get("app.missing"))
	})

	t.Run("UnmarshalKey 嵌套结构", func(t *testing.T) {
		type breakerOverride struct {
			Preset           string        `mapstructure:"preset"`
			Timeout          time.Duration `mapstructure:"timeout"`
			FailureThreshold int           `mapstructure:"failure_threshold"`
		}
		var entries map[string]breakerOverride
		require.NoError(t, loader.UnmarshalKey("breakers", &entries))

		require.Len(t, entries, 2)
		assert.Equal(t, "strict", entries["user-service"].Preset)
		assert.Equal(t, 2*time.Second, entries["user-service"].Timeout)
		assert.Equal(t, 20, entries["search-service"].FailureThreshold)
	})

	t.Run("Unmarshal 整体结构", func(t *testing.T) {
		var cfg struct {
			App struct {
				Name  string `mapstructure:"name"`
				Debug bool   `mapstructure:"debug"`
			} `mapstructure:"app"`
		}
		require.NoError(t, loader.Unmarshal(&cfg))
		assert.Equal(t, "fuse-demo", cfg.App.Name)
		assert.True(t, cfg.App.Debug)
	})
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FUSETEST_APP_NAME", "from-env")

	loader := newLoadedLoader(t, sampleYAML)
	assert.Equal(t, "from-env", loader.Get("app.name"), "环境变量优先于配置文件")
}

func TestValidateEmpty(t *testing.T) {
	dir := t.TempDir()
	loader, err := New(&Config{Paths: []string{dir}, EnvPrefix: "FUSEEMPTY"})
	require.NoError(t, err)

	err = loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed, "空配置应该校验失败")
}

func TestWatch(t *testing.T) {
	dir := writeConfigFile(t, sampleYAML)
	loader, err := New(&Config{Paths: []string{dir}, EnvPrefix: "FUSEWATCH"})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := loader.Watch(ctx, "app.name")
	require.NoError(t, err)

	// 修改配置文件触发变更事件
	updated := []byte("app:\n  name: renamed\n  debug: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), updated, 0o644))

	select {
	case event := <-ch:
		assert.Equal(t, "app.name", event.Key)
		assert.Equal(t, "renamed", event.Value)
		assert.Equal(t, "fuse-demo", event.OldValue)
		assert.Equal(t, "file", event.Source)
	case <-time.After(3 * time.Second):
		t.Skip("文件系统事件在当前环境不可用")
	}
}
