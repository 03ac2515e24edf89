package dispatch

import (
	"context"
	"fmt"

	"larkticket/internal/approvalconfig"
	"larkticket/internal/metrics"
	"larkticket/pkg/httputil"
)

// CallStyle 外部接口调用方式，取值为 Sync 或 Async
type CallStyle interface {
	callStyle()
}

// Sync 同步调用，响应即结果
type Sync struct{ URL string }

// Async 异步调用，结果由对方回调
type Async struct{ URL string }

func (Sync) callStyle()  {}
func (Async) callStyle() {}

// StyleOf 由节点配置得到调用方式
func StyleOf(cfg approvalconfig.StageConfig) (CallStyle, error) {
	switch cfg.CallType {
	case approvalconfig.CallTypeSync:
		return Sync{URL: cfg.URL}, nil
	case approvalconfig.CallTypeAsync:
		return Async{URL: cfg.URL}, nil
	default:
		return nil, fmt.Errorf("unknown call_type %q", cfg.CallType)
	}
}

// Invoker 调用外部检查或执行接口
type Invoker struct {
	client *httputil.Client
}

// NewInvoker 创建 Invoker
func NewInvoker(client *httputil.Client) *Invoker {
	if client == nil {
		client = httputil.NewClient()
	}
	return &Invoker{client: client}
}

// Invoke 以 JSON 推送 metadata。同步调用返回解析后的结果，异步调用返回 nil
func (i *Invoker) Invoke(ctx context.Context, style CallStyle, metadata map[string]any) (*Result, error) {
	switch s := style.(type) {
	case Sync:
		var res Result
		err := i.client.PostJSON(ctx, s.URL, metadata, &res)
		metrics.RecordRemoteCall("collaborator", "sync", err)
		if err != nil {
			return nil, fmt.Errorf("同步调用 %s 失败: %w", s.URL, err)
		}
		return &res, nil
	case Async:
		err := i.client.PostJSON(ctx, s.URL, metadata, nil)
		metrics.RecordRemoteCall("collaborator", "async", err)
		if err != nil {
			return nil, fmt.Errorf("异步调用 %s 失败: %w", s.URL, err)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported call style %T", style)
	}
}

// Passthrough 推送参数并原样返回响应
func (i *Invoker) Passthrough(ctx context.Context, url string, params any) ([]byte, error) {
	raw, err := i.client.PostRaw(ctx, url, params)
	metrics.RecordRemoteCall("collaborator", "field", err)
	if err != nil {
		return nil, fmt.Errorf("调用外部字段接口失败: %w", err)
	}
	return raw, nil
}
