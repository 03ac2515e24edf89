package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签取值
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeIgnored = "ignored"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkticket_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "larkticket_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIResponseSize API 响应体大小（字节）
	APIResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "larkticket_api_response_size_bytes",
			Help:    "API 响应体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000},
		},
		[]string{"method", "path"},
	)
)

// 回调与分发指标
var (
	// CallbacksTotal 飞书回调数，outcome 为 success / ignored / failure
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkticket_callbacks_total",
			Help: "飞书回调总数",
		},
		[]string{"event_type", "outcome"},
	)

	// DispatchTotal 后台流程执行数
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkticket_dispatch_total",
			Help: "后台流程执行总数",
		},
		[]string{"flow", "outcome"},
	)

	// DispatchDuration 后台流程耗时（秒）
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "larkticket_dispatch_duration_seconds",
			Help:    "后台流程耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"flow"},
	)

	// RemoteCallsTotal 外部调用数，target 为 lark 或 collaborator
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkticket_remote_calls_total",
			Help: "外部调用总数",
		},
		[]string{"target", "op", "outcome"},
	)

	// AlertsTotal 告警次数
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkticket_alerts_total",
			Help: "告警总数",
		},
		[]string{"flow"},
	)
)

// Outcome 根据错误返回结果标签
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// RecordRemoteCall 记录一次外部调用
func RecordRemoteCall(target, op string, err error) {
	RemoteCallsTotal.WithLabelValues(target, op, Outcome(err)).Inc()
}
