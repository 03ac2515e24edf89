package infra

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"larkticket/internal/config"
)

// Elector 启动期选主，只有主实例执行建表等一次性工作
type Elector interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NewElector 按配置创建选主实现，redis 后端需要传入客户端
func NewElector(cfg config.LeaderConfig, rdb redis.UniversalClient, l *zap.Logger) (Elector, error) {
	switch cfg.Backend {
	case config.LeaderBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis 选主需要启用 redis")
		}
		return NewRedisElector(rdb, cfg.Key, time.Duration(cfg.TTLSeconds)*time.Second, l), nil
	case config.LeaderBackendPort, "":
		return NewPortElector(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))), nil
	default:
		return nil, fmt.Errorf("不支持的选主后端: %s (可选: port, redis)", cfg.Backend)
	}
}

// RunIfLeader 成为主实例时执行 fn，否则跳过
func RunIfLeader(ctx context.Context, e Elector, l *zap.Logger, name string, fn func(ctx context.Context) error) error {
	ok, err := e.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("选主失败: %w", err)
	}
	if !ok {
		l.Info("非主实例，跳过", zap.String("task", name))
		return nil
	}
	l.Info("已成为主实例", zap.String("task", name))
	return fn(ctx)
}

var (
	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)
)

// RedisElector 基于 SET NX 的选主，持有期间每 ttl/3 续期
type RedisElector struct {
	client redis.UniversalClient
	key    string
	value  string
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisElector 创建 redis 选主
func NewRedisElector(client redis.UniversalClient, key string, ttl time.Duration, l *zap.Logger) *RedisElector {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &RedisElector{
		client: client,
		key:    key,
		value:  uuid.New().String(),
		ttl:    ttl,
		logger: l,
	}
}

// TryAcquire 非阻塞获取，成功后开始自动续期
func (e *RedisElector) TryAcquire(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return true, nil
	}

	ok, err := e.client.SetNX(ctx, e.key, e.value, e.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader key: %w", err)
	}
	if !ok {
		return false, nil
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.renew(renewCtx, e.done)
	return true, nil
}

func (e *RedisElector) renew(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := renewScript.Run(ctx, e.client, []string{e.key}, e.value, e.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Warn("续期主实例失败", zap.String("key", e.key), zap.Error(err))
				continue
			}
			if res == 0 {
				e.logger.Warn("主实例身份已丢失", zap.String("key", e.key))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Release 仅删除自己持有的 key
func (e *RedisElector) Release(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	if err := releaseScript.Run(ctx, e.client, []string{e.key}, e.value).Err(); err != nil {
		return fmt.Errorf("failed to release leader key: %w", err)
	}
	return nil
}

// PortElector 独占监听本机端口，同一主机上只有一个进程能成为主实例
type PortElector struct {
	addr string

	mu       sync.Mutex
	listener net.Listener
}

// NewPortElector 创建端口选主
func NewPortElector(addr string) *PortElector {
	return &PortElector{addr: addr}
}

// TryAcquire 端口被占用时返回 false
func (e *PortElector) TryAcquire(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return true, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return false, nil
		}
		return false, fmt.Errorf("failed to listen on %s: %w", e.addr, err)
	}
	e.listener = ln
	return true, nil
}

// Addr 实际监听地址，未成为主实例时为空
func (e *PortElector) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Release 关闭监听
func (e *PortElector) Release(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	err := e.listener.Close()
	e.listener = nil
	return err
}
