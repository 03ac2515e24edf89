package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"larkticket/internal/alert"
	"larkticket/internal/logger"
	"larkticket/internal/metrics"
)

// ErrPanic 后台流程发生 panic
var ErrPanic = errors.New("panic in background flow")

// alertTimeout 告警推送上限，与流程自身的超时无关
const alertTimeout = 5 * time.Second

// Guard 执行 fn，panic 转为错误。失败统一交给 alerter，不向上抛出 panic
func Guard(ctx context.Context, flow string, l *zap.Logger, a alert.Alerter, fn func(ctx context.Context) error) (err error) {
	if l == nil {
		l = zap.NewNop()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			logger.WithContext(ctx, l).Error("后台流程 panic", zap.String("flow", flow), zap.Any("panic", r), zap.Stack("stack"))
		}
		metrics.DispatchTotal.WithLabelValues(flow, metrics.Outcome(err)).Inc()
		metrics.DispatchDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
		if err == nil {
			return
		}
		if a == nil {
			logger.WithContext(ctx, l).Error("后台流程执行失败", zap.String("flow", flow), zap.Error(err))
			return
		}
		// 流程可能因 ctx 超时失败，告警不能沿用已取消的 ctx
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		a.Report(actx, flow, err)
	}()
	return fn(ctx)
}
