package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"larkticket/internal/config"
	"larkticket/internal/worker/tasks"
)

// DefaultTaskTimeout 单个任务的执行上限
const DefaultTaskTimeout = 60 * time.Second

// Client 任务队列客户端接口
type Client interface {
	Enqueue(ctx context.Context, taskType string, payload []byte) error
	Close() error
}

type asynqClient struct {
	client  *asynq.Client
	timeout time.Duration
}

// RedisConnOpt 按 redis 部署模式生成 asynq 连接参数
func RedisConnOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			PoolSize:      cfg.PoolSize,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}
	}
}

// NewClient 创建任务队列客户端，timeout 为任务执行上限
func NewClient(cfg config.RedisConfig, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &asynqClient{client: asynq.NewClient(RedisConnOpt(cfg)), timeout: timeout}
}

// Enqueue 入队，不重试
func (c *asynqClient) Enqueue(ctx context.Context, taskType string, payload []byte) error {
	task := asynq.NewTask(taskType, payload)
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
		asynq.Queue(tasks.QueueName),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
