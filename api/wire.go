package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	larkHandlers "larkticket/api/handlers/lark"
	webHandlers "larkticket/api/handlers/web"
	"larkticket/internal/alert"
	"larkticket/internal/approvalconfig"
	"larkticket/internal/config"
	"larkticket/internal/dispatch"
	"larkticket/internal/infra"
	"larkticket/internal/infra/queue"
	"larkticket/internal/lark"
	"larkticket/internal/worker"
	"larkticket/pkg/httputil"
)

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	// 基础设施
	DB          *gorm.DB
	Config      *config.Config
	Logger      *zap.Logger
	RedisClient redis.UniversalClient
	QueueClient queue.Client
	Elector     infra.Elector

	// 飞书
	Cipher  *lark.Cipher
	Gateway *lark.Gateway

	// 核心服务
	ConfigService *approvalconfig.Service
	Alerter       alert.Alerter
	Dispatcher    *dispatch.Dispatcher
	Runner        dispatch.Runner

	// 队列模式下的 Worker
	WorkerServer *worker.Server
}

// Handlers 所有 HTTP Handler
type Handlers struct {
	Lark *larkHandlers.Handler
	Web  *webHandlers.Handler
}

// InitContainer 初始化应用容器
func InitContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, l *zap.Logger) (*AppContainer, error) {
	if l == nil {
		l = zap.NewNop()
	}
	container := &AppContainer{
		DB:     db,
		Config: cfg,
		Logger: l,
	}

	// 初始化 Redis
	if err := container.initRedis(ctx); err != nil {
		return nil, err
	}

	// 初始化飞书网关
	container.initLark()

	// 初始化配置管理与分发
	if err := container.initDispatch(); err != nil {
		return nil, err
	}

	// 初始化 Worker
	container.initWorker()

	return container, nil
}

// InitHandlers 初始化所有 Handlers
func (c *AppContainer) InitHandlers() *Handlers {
	return &Handlers{
		Lark: larkHandlers.NewHandler(c.Cipher, c.Dispatcher, c.Runner, c.Config.Lark.VerificationToken, c.Logger),
		Web:  webHandlers.NewHandler(c.ConfigService, c.Logger),
	}
}

// shouldAutoMigrate 检查是否应该执行自动迁移
func (c *AppContainer) shouldAutoMigrate() bool {
	return c.Config != nil && c.Config.Database.AutoMigrate
}

// AutoMigrate 配置开启时由主实例建表
func (c *AppContainer) AutoMigrate(ctx context.Context) error {
	if !c.shouldAutoMigrate() {
		return nil
	}
	return c.Migrate(ctx)
}

// Migrate 选主后建表，非主实例直接跳过
func (c *AppContainer) Migrate(ctx context.Context) error {
	if c.Elector == nil {
		e, err := infra.NewElector(c.Config.Leader, c.RedisClient, c.Logger)
		if err != nil {
			return err
		}
		c.Elector = e
	}
	return infra.RunIfLeader(ctx, c.Elector, c.Logger, "auto_migrate", func(ctx context.Context) error {
		if err := approvalconfig.AutoMigrate(c.DB.WithContext(ctx)); err != nil {
			return fmt.Errorf("表迁移失败: %w", err)
		}
		c.Logger.Info("表迁移完成")
		return nil
	})
}

// Close 等待后台任务结束并释放资源
func (c *AppContainer) Close(ctx context.Context) error {
	var errs []error
	if c.Runner != nil {
		if err := c.Runner.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("等待后台任务超时: %w", err))
		}
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Elector != nil {
		if err := c.Elector.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// --- 内部初始化方法 ---

func (c *AppContainer) initRedis(ctx context.Context) error {
	if !c.Config.Redis.Enabled {
		c.Logger.Info("Redis 未启用")
		return nil
	}
	rdb, err := infra.NewRedis(ctx, &c.Config.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("初始化 Redis 失败: %w", err)
	}
	c.RedisClient = rdb
	return nil
}

func (c *AppContainer) initLark() {
	lc := c.Config.Lark
	c.Cipher = lark.NewCipher(lc.EncryptKey)
	c.Gateway = lark.NewGateway(lark.GatewayConfig{
		Domain:    lc.Domain,
		AppID:     lc.AppID,
		AppSecret: lc.AppSecret,
	})
}

func (c *AppContainer) initDispatch() error {
	c.ConfigService = approvalconfig.NewService(approvalconfig.NewStore(c.DB), c.Gateway, c.Logger)
	c.Alerter = alert.New(c.Config.Alarm, c.Logger)

	dc := c.Config.Dispatch
	invoker := dispatch.NewInvoker(httputil.NewClient(
		httputil.WithTimeout(time.Duration(dc.CollaboratorTimeoutSeconds) * time.Second),
	))
	d, err := dispatch.New(c.Gateway, c.ConfigService.Store(), invoker, dispatch.Options{
		AssistantUserID: c.Config.Lark.AssistantUserID,
		Logger:          c.Logger,
		Alerter:         c.Alerter,
	})
	if err != nil {
		return fmt.Errorf("初始化分发器失败: %w", err)
	}
	c.Dispatcher = d

	timeout := time.Duration(dc.TimeoutSeconds) * time.Second
	switch dc.Mode {
	case config.DispatchModeQueue:
		c.QueueClient = queue.NewClient(c.Config.Redis, timeout)
		c.Runner = dispatch.NewQueueRunner(c.QueueClient, c.Logger)
		c.Logger.Info("回调分发使用队列模式")
	default:
		c.Runner = dispatch.NewGoroutineRunner(c.Dispatcher, timeout)
	}
	return nil
}

func (c *AppContainer) initWorker() {
	if c.Config.Dispatch.Mode != config.DispatchModeQueue {
		return
	}
	c.WorkerServer = worker.NewServer(c.Config.Redis, c.Dispatcher, c.Dispatcher.Registry().Types(), c.Logger)
}
