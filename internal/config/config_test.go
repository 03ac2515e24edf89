package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
database:
  driver: sqlite
  dbname: test.db
lark:
  assistant_user_id: assistant
  app_id: cli_a
  app_secret: secret
  encrypt_key: key
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("读取文件并补齐默认值", func(t *testing.T) {
		cfg, err := Load("test", writeConfig(t, sampleYAML))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "https://open.feishu.cn", cfg.Lark.Domain)
		assert.Equal(t, DispatchModeInline, cfg.Dispatch.Mode)
		assert.Equal(t, 5, cfg.Dispatch.CollaboratorTimeoutSeconds)
		assert.Equal(t, LeaderBackendPort, cfg.Leader.Backend)
		assert.Same(t, cfg, Get())
	})

	t.Run("环境变量覆盖文件", func(t *testing.T) {
		t.Setenv("APP_LARK_APP_SECRET", "from-env")
		t.Setenv("APP_SERVER_PORT", "7070")

		cfg, err := Load("test", writeConfig(t, sampleYAML))
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Lark.AppSecret)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("缺少飞书配置", func(t *testing.T) {
		_, err := Load("test", writeConfig(t, "database:\n  driver: sqlite\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lark.app_id")
		assert.Contains(t, err.Error(), "lark.encrypt_key")
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := Load("test", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: "mysql"},
			Lark:     LarkConfig{AssistantUserID: "u", AppID: "a", AppSecret: "s", EncryptKey: "k"},
			Leader:   LeaderConfig{Backend: LeaderBackendPort},
			Dispatch: DispatchConfig{Mode: DispatchModeInline},
		}
	}

	t.Run("合法配置", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("队列模式需要 redis", func(t *testing.T) {
		cfg := base()
		cfg.Dispatch.Mode = DispatchModeQueue
		assert.ErrorContains(t, cfg.Validate(), "redis")

		cfg.Redis.Enabled = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("未知枚举值", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "oracle"
		cfg.Leader.Backend = "zookeeper"
		err := cfg.Validate()
		assert.ErrorContains(t, err, "oracle")
		assert.ErrorContains(t, err, "zookeeper")
	})

	t.Run("webhook 报警需要地址", func(t *testing.T) {
		cfg := base()
		cfg.Alarm = AlarmConfig{Open: true, NotificationType: AlarmTypeWebhook}
		assert.Error(t, cfg.Validate())
	})
}

func TestGetDSN(t *testing.T) {
	t.Run("mysql", func(t *testing.T) {
		c := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", DBName: "lark"}
		assert.Equal(t, "u:p@tcp(db:3306)/lark?charset=utf8mb4&parseTime=True&loc=Local", c.GetDSN())
	})

	t.Run("postgres", func(t *testing.T) {
		c := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "lark", SSLMode: "disable"}
		assert.Equal(t, "host=db port=5432 user=u password=p dbname=lark sslmode=disable", c.GetDSN())
	})

	t.Run("显式 dsn 优先", func(t *testing.T) {
		c := DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", DBName: "ignored.db"}
		assert.Equal(t, "file::memory:", c.GetDSN())
	})
}
