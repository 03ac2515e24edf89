package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"larkticket/internal/infra/queue"
	"larkticket/internal/lark"
	"larkticket/internal/logger"
	"larkticket/internal/worker/tasks"
)

// Job 一次后台执行
type Job struct {
	Kind      string             `json:"kind"` // 事件类型，或 check_callback / execute_callback
	Event     *lark.EventContext `json:"event,omitempty"`
	Result    *Result            `json:"result,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// EventJob 事件回调任务
func EventJob(ctx context.Context, ev *lark.EventContext) Job {
	return Job{Kind: ev.Type, Event: ev, RequestID: logger.GetRequestID(ctx)}
}

// CheckJob 检查结果回写任务
func CheckJob(ctx context.Context, r Result) Job {
	return Job{Kind: tasks.KindCheckCallback, Result: &r, RequestID: logger.GetRequestID(ctx)}
}

// ExecuteJob 执行结果回写任务
func ExecuteJob(ctx context.Context, r Result) Job {
	return Job{Kind: tasks.KindExecuteCallback, Result: &r, RequestID: logger.GetRequestID(ctx)}
}

// Flow 任务对应的流程名称
func (j Job) Flow() string {
	switch j.Kind {
	case tasks.KindCheckCallback, tasks.KindExecuteCallback:
		return j.Kind
	default:
		return "callback_" + j.Kind
	}
}

// Execute 在 Guard 中执行任务，错误已上报，返回值仅供调用方记录
func (d *Dispatcher) Execute(ctx context.Context, job Job) error {
	if job.RequestID != "" && logger.GetRequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, job.RequestID)
	}
	return Guard(ctx, job.Flow(), d.logger, d.alerter, func(ctx context.Context) error {
		switch job.Kind {
		case tasks.KindCheckCallback, tasks.KindExecuteCallback:
			if job.Result == nil {
				return fmt.Errorf("job %s has no result", job.Kind)
			}
			if job.Kind == tasks.KindCheckCallback {
				return d.CheckCallback(ctx, *job.Result)
			}
			return d.ExecuteCallback(ctx, *job.Result)
		default:
			if job.Event == nil {
				return fmt.Errorf("job %s has no event", job.Kind)
			}
			return d.HandleEvent(ctx, job.Event)
		}
	})
}

// Executor 执行后台任务
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// Runner 将任务移出请求路径
type Runner interface {
	Submit(ctx context.Context, job Job) error
	Wait(ctx context.Context) error
}

// GoroutineRunner 进程内 goroutine 执行，与请求的取消解耦
type GoroutineRunner struct {
	exec    Executor
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewGoroutineRunner 创建进程内执行器，timeout 为单个任务的最长执行时间
func NewGoroutineRunner(exec Executor, timeout time.Duration) *GoroutineRunner {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GoroutineRunner{exec: exec, timeout: timeout}
}

// Submit 立即返回，任务在新 goroutine 中执行
func (r *GoroutineRunner) Submit(ctx context.Context, job Job) error {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		_ = r.exec.Execute(runCtx, job)
	}()
	return nil
}

// Wait 等待已提交的任务结束，ctx 结束时提前返回
func (r *GoroutineRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueRunner 投递到 asynq 队列，由 worker 执行
type QueueRunner struct {
	client queue.Client
	logger *zap.Logger
}

// NewQueueRunner 创建队列执行器
func NewQueueRunner(client queue.Client, l *zap.Logger) *QueueRunner {
	if l == nil {
		l = zap.NewNop()
	}
	return &QueueRunner{client: client, logger: l}
}

// Submit 序列化任务并入队
func (r *QueueRunner) Submit(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job failed: %w", err)
	}
	if err := r.client.Enqueue(ctx, tasks.TypeOf(job.Kind), payload); err != nil {
		logger.WithContext(ctx, r.logger).Error("任务入队失败", zap.String("kind", job.Kind), zap.Error(err))
		return err
	}
	return nil
}

// Wait 队列任务由 worker 负责，无需等待
func (r *QueueRunner) Wait(ctx context.Context) error {
	return nil
}

// DecodeJob 解析队列中的任务
func DecodeJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job failed: %w", err)
	}
	return job, nil
}
