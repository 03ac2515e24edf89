package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Alarm    AlarmConfig    `mapstructure:"alarm"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // mysql, postgres, sqlite
	DSN             string `mapstructure:"dsn"`    // 设置后优先于 host/port 等字段
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName    string   `mapstructure:"master_name"`
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
	ClusterAddrs  []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// LarkConfig 飞书应用配置
type LarkConfig struct {
	AssistantUserID   string `mapstructure:"assistant_user_id"` // 审批助手 user_id，同时作为通过/拒绝的操作人
	Domain            string `mapstructure:"domain"`
	AppID             string `mapstructure:"app_id"`
	AppSecret         string `mapstructure:"app_secret"`
	EncryptKey        string `mapstructure:"encrypt_key"`
	VerificationToken string `mapstructure:"verification_token"` // 为空时不校验
}

// AlarmConfig 报警配置
type AlarmConfig struct {
	Open             bool   `mapstructure:"open"`
	NotificationType string `mapstructure:"notification_type"` // log, webhook
	WebhookURL       string `mapstructure:"webhook_url"`
}

// LeaderConfig 启动期选主配置，只有主实例执行建表
type LeaderConfig struct {
	Backend    string `mapstructure:"backend"` // port, redis
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Key        string `mapstructure:"key"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// DispatchConfig 回调分发配置
type DispatchConfig struct {
	Mode                       string `mapstructure:"mode"` // inline, queue
	TimeoutSeconds             int    `mapstructure:"timeout_seconds"`
	CollaboratorTimeoutSeconds int    `mapstructure:"collaborator_timeout_seconds"`
}

const (
	DispatchModeInline = "inline"
	DispatchModeQueue  = "queue"

	LeaderBackendPort  = "port"
	LeaderBackendRedis = "redis"

	AlarmTypeLog     = "log"
	AlarmTypeWebhook = "webhook"
)

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env)
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")
	setDefaults(v)

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_LARK_APP_SECRET

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 注册默认值，同时让 AutomaticEnv 能识别到这些键
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("lark.domain", "https://open.feishu.cn")
	v.SetDefault("lark.assistant_user_id", "")
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.encrypt_key", "")
	v.SetDefault("lark.verification_token", "")

	v.SetDefault("alarm.open", false)
	v.SetDefault("alarm.notification_type", AlarmTypeLog)
	v.SetDefault("alarm.webhook_url", "")

	v.SetDefault("leader.backend", LeaderBackendPort)
	v.SetDefault("leader.host", "127.0.0.1")
	v.SetDefault("leader.port", 18089)
	v.SetDefault("leader.key", "lark-ticket:leader")
	v.SetDefault("leader.ttl_seconds", 30)

	v.SetDefault("dispatch.mode", DispatchModeInline)
	v.SetDefault("dispatch.timeout_seconds", 60)
	v.SetDefault("dispatch.collaborator_timeout_seconds", 5)
}

// Validate 校验必填项与枚举值
func (c *Config) Validate() error {
	var errs []error

	required := map[string]string{
		"lark.app_id":            c.Lark.AppID,
		"lark.app_secret":        c.Lark.AppSecret,
		"lark.encrypt_key":       c.Lark.EncryptKey,
		"lark.assistant_user_id": c.Lark.AssistantUserID,
	}
	for _, key := range []string{"lark.app_id", "lark.app_secret", "lark.encrypt_key", "lark.assistant_user_id"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("缺少配置项: %s", key))
		}
	}

	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver))
	}

	switch c.Dispatch.Mode {
	case DispatchModeInline:
	case DispatchModeQueue:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("dispatch.mode=queue 需要开启 redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的分发模式: %q", c.Dispatch.Mode))
	}

	switch c.Leader.Backend {
	case LeaderBackendPort:
	case LeaderBackendRedis:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("leader.backend=redis 需要开启 redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的选主方式: %q", c.Leader.Backend))
	}

	if c.Alarm.Open && c.Alarm.NotificationType == AlarmTypeWebhook && c.Alarm.WebhookURL == "" {
		errs = append(errs, errors.New("alarm.notification_type=webhook 需要配置 alarm.webhook_url"))
	}

	return errors.Join(errs...)
}


// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
		)
	case "sqlite":
		return c.DBName
	default:
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName,
		)
	}
}

// Addr 单节点 Redis 地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
