package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 测试从YAML文件加载配置
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
groq:
  api_key: "file_key"
  model: "llama-3.3-70b-versatile"
  temperature: 0.1
mysql:
  host: "db.example.com"
  port: 3307
  database: "screening"
redis:
  address: "cache.example.com:6379"
server:
  address: ":9090"
  api_keys:
    - "key-a"
    - "key-b"
catalog:
  roles_file: "roles.yaml"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "db.example.com", cfg.MySQL.Host)
	assert.Equal(t, 3307, cfg.MySQL.Port)
	assert.Equal(t, "screening", cfg.MySQL.Database)
	assert.Equal(t, "cache.example.com:6379", cfg.Redis.Address)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Server.APIKeys)
	assert.Equal(t, "roles.yaml", cfg.Catalog.RolesFile)
}

// TestLoadConfigAppliesDefaults 测试缺省字段的默认值填充
func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mysql:\n  host: localhost\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "5s", cfg.RabbitMQ.RetryInterval)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Groq.Model)
	assert.Equal(t, "groq-llm-v1", cfg.ActiveParserVersion)
}

// TestLoadConfigEnvOverride 测试环境变量覆盖文件配置
func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groq:\n  api_key: from_file\n"), 0644))

	t.Setenv("GROQ_API_KEY", "from_env")
	t.Setenv("GROQ_MODEL", "llama-guard")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Groq.APIKey)
	assert.Equal(t, "llama-guard", cfg.Groq.Model)
}

// TestLoadConfigMissingFileInTestEnv 测试环境下文件缺失时返回默认配置
func TestLoadConfigMissingFileInTestEnv(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "no_such_config.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "resume_screening", cfg.MySQL.Database)
	assert.NotEmpty(t, cfg.RabbitMQ.ResumeEventsExchange)
}

// TestCreateSampleConfig 测试生成示例配置文件
func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")

	require.NoError(t, CreateSampleConfig(path))

	// 已存在时不覆盖
	err := CreateSampleConfig(path)
	assert.Error(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.MinIO.Endpoint)
}

// TestGetDuration 测试时长解析及非法输入的默认值回退
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", time.Minute))
	assert.Equal(t, 2*time.Minute, GetDuration("2m", time.Second))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("not-a-duration", time.Minute))
}
