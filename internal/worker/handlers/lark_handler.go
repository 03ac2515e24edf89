package handlers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"larkticket/internal/dispatch"
	"larkticket/internal/worker/tasks"
)

// LarkHandler 执行队列中的飞书回调任务
type LarkHandler struct {
	exec   dispatch.Executor
	logger *zap.Logger
}

func NewLarkHandler(exec dispatch.Executor, logger *zap.Logger) *LarkHandler {
	return &LarkHandler{
		exec:   exec,
		logger: logger,
	}
}

// HandleTask 任务载荷为 dispatch.Job，失败不重试
func (h *LarkHandler) HandleTask(ctx context.Context, t *asynq.Task) error {
	job, err := dispatch.DecodeJob(t.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if kind := tasks.KindOf(t.Type()); job.Kind != kind {
		return fmt.Errorf("task type %s does not match job kind %s: %w", t.Type(), job.Kind, asynq.SkipRetry)
	}

	h.logger.Info("开始执行回调任务",
		zap.String("type", t.Type()),
		zap.String("request_id", job.RequestID),
	)

	if err := h.exec.Execute(ctx, job); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("回调任务执行完成", zap.String("type", t.Type()))
	return nil
}
