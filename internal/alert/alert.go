// Package alert 后台流程失败时的告警出口
package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"larkticket/internal/config"
	"larkticket/internal/logger"
	"larkticket/internal/metrics"
	"larkticket/pkg/httputil"
)

// Alerter 告警接口
type Alerter interface {
	Report(ctx context.Context, flow string, err error)
}

// LogAlerter 以 error 级别写日志
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter 创建日志告警
func NewLogAlerter(l *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: l}
}

// Report 实现 Alerter
func (a *LogAlerter) Report(ctx context.Context, flow string, err error) {
	logger.WithContext(ctx, a.logger).Error("后台流程执行失败", zap.String("flow", flow), zap.Error(err))
}

// Event 推送到告警 webhook 的内容
type Event struct {
	Service   string    `json:"service"`
	Flow      string    `json:"flow"`
	Error     string    `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Time      time.Time `json:"time"`
}

// WebhookAlerter 推送到告警 webhook，不重试
type WebhookAlerter struct {
	url    string
	client *httputil.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookAlerter 创建 webhook 告警
func NewWebhookAlerter(url string, client *httputil.Client, l *zap.Logger) *WebhookAlerter {
	if client == nil {
		client = httputil.NewClient()
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &WebhookAlerter{url: url, client: client, logger: l, now: time.Now}
}

// Report 实现 Alerter，推送失败只记日志
func (a *WebhookAlerter) Report(ctx context.Context, flow string, err error) {
	event := Event{
		Service:   "lark-ticket",
		Flow:      flow,
		Error:     err.Error(),
		RequestID: logger.GetRequestID(ctx),
		Time:      a.now(),
	}
	perr := a.client.PostJSON(ctx, a.url, event, nil)
	metrics.RecordRemoteCall("alarm", "webhook", perr)
	if perr != nil {
		a.logger.Warn("告警推送失败", zap.String("flow", flow), zap.Error(perr))
	}
}

// Multi 依次调用多个 Alerter，并累计告警次数
type Multi []Alerter

// Report 实现 Alerter
func (m Multi) Report(ctx context.Context, flow string, err error) {
	metrics.AlertsTotal.WithLabelValues(flow).Inc()
	for _, a := range m {
		a.Report(ctx, flow, err)
	}
}

// New 按配置组装告警出口，日志告警始终开启
func New(cfg config.AlarmConfig, l *zap.Logger) Alerter {
	if l == nil {
		l = zap.NewNop()
	}
	alerters := Multi{NewLogAlerter(l)}
	if cfg.Open && cfg.NotificationType == config.AlarmTypeWebhook {
		alerters = append(alerters, NewWebhookAlerter(cfg.WebhookURL, nil, l))
	}
	return alerters
}
