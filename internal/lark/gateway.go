package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"larkticket/internal/metrics"
	"larkticket/pkg/httputil"
)

// HeaderLogID 飞书响应中的请求 ID
const HeaderLogID = "X-Tt-Logid"

// 飞书 token 失效相关错误码，命中后丢弃缓存的 token
var tokenInvalidCodes = map[int]bool{
	99991661: true,
	99991663: true,
	99991668: true,
}

var tracer = otel.Tracer("larkticket/internal/lark")

// RemoteError 飞书开放平台调用失败
type RemoteError struct {
	Op         string
	StatusCode int
	Code       int
	Msg        string
	RequestID  string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lark %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("lark %s failed: status=%d code=%d msg=%s log_id=%s", e.Op, e.StatusCode, e.Code, e.Msg, e.RequestID)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// GatewayConfig 开放平台凭证
type GatewayConfig struct {
	Domain    string // 如 https://open.feishu.cn
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// Gateway 飞书审批开放接口客户端
type Gateway struct {
	baseURL   string
	appID     string
	appSecret string
	client    *httputil.Client
	now       func() time.Time

	mu       sync.Mutex
	token    string
	expireAt time.Time
}

// NewGateway 创建客户端
func NewGateway(cfg GatewayConfig, opts ...httputil.ClientOption) *Gateway {
	domain := cfg.Domain
	if domain == "" {
		domain = "https://open.feishu.cn"
	}
	if cfg.Timeout > 0 {
		opts = append([]httputil.ClientOption{httputil.WithTimeout(cfg.Timeout)}, opts...)
	}
	return &Gateway{
		baseURL:   strings.TrimRight(domain, "/") + "/open-apis",
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		client:    httputil.NewClient(opts...),
		now:       time.Now,
	}
}

// Task 审批任务
type Task struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	OpenID       string `json:"open_id"`
	Status       string `json:"status"`
	NodeID       string `json:"node_id"`
	NodeName     string `json:"node_name"`
	CustomNodeID string `json:"custom_node_id"`
	Type         string `json:"type"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// InstanceDetail 审批实例详情
type InstanceDetail struct {
	ApprovalCode string `json:"approval_code"`
	ApprovalName string `json:"approval_name"`
	InstanceCode string `json:"instance_code"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
	UserID       string `json:"user_id"`
	OpenID       string `json:"open_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Form         string `json:"form"` // 控件列表的 JSON 字符串
	TaskList     []Task `json:"task_list"`
}

// FormComponents 解析表单控件，保持原始顺序
func (d *InstanceDetail) FormComponents() ([]map[string]any, error) {
	return parseForm(d.Form)
}

// CurrentTask 任务列表中的最后一个任务
func (d *InstanceDetail) CurrentTask() (Task, bool) {
	if len(d.TaskList) == 0 {
		return Task{}, false
	}
	return d.TaskList[len(d.TaskList)-1], true
}

// ApprovalDetail 审批定义详情
type ApprovalDetail struct {
	ApprovalName string `json:"approval_name"`
	Status       string `json:"status"`
	Form         string `json:"form"`
}

// FormField 审批定义中的控件
type FormField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// FormFields 解析审批定义的控件列表
func (d *ApprovalDetail) FormFields() ([]FormField, error) {
	var fields []FormField
	if d.Form == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(d.Form), &fields); err != nil {
		return nil, fmt.Errorf("解析审批定义表单失败: %w", err)
	}
	return fields, nil
}

// TaskAction 同意或拒绝任务的参数
type TaskAction struct {
	ApprovalCode string `json:"approval_code"`
	InstanceCode string `json:"instance_code"`
	TaskID       string `json:"task_id"`
	UserID       string `json:"user_id"`
	Comment      string `json:"comment,omitempty"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// GetInstance 获取审批实例详情
func (g *Gateway) GetInstance(ctx context.Context, instanceCode string) (*InstanceDetail, error) {
	var out InstanceDetail
	path := "/approval/v4/instances/" + url.PathEscape(instanceCode)
	if err := g.call(ctx, "get_instance", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetApproval 获取审批定义详情
func (g *Gateway) GetApproval(ctx context.Context, approvalCode string) (*ApprovalDetail, error) {
	var out ApprovalDetail
	path := "/approval/v4/approvals/" + url.PathEscape(approvalCode)
	if err := g.call(ctx, "get_approval", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveTask 同意审批任务
func (g *Gateway) ApproveTask(ctx context.Context, action TaskAction) error {
	return g.call(ctx, "approve_task", http.MethodPost, "/approval/v4/tasks/approve",
		url.Values{"user_id_type": {"user_id"}}, action, nil)
}

// RejectTask 拒绝审批任务
func (g *Gateway) RejectTask(ctx context.Context, action TaskAction) error {
	return g.call(ctx, "reject_task", http.MethodPost, "/approval/v4/tasks/reject",
		url.Values{"user_id_type": {"user_id"}}, action, nil)
}

// Subscribe 订阅审批定义的事件
func (g *Gateway) Subscribe(ctx context.Context, approvalCode string) error {
	path := "/approval/v4/approvals/" + url.PathEscape(approvalCode) + "/subscribe"
	return g.call(ctx, "subscribe", http.MethodPost, path, nil, nil, nil)
}

// Unsubscribe 取消订阅
func (g *Gateway) Unsubscribe(ctx context.Context, approvalCode string) error {
	path := "/approval/v4/approvals/" + url.PathEscape(approvalCode) + "/unsubscribe"
	return g.call(ctx, "unsubscribe", http.MethodPost, path, nil, nil, nil)
}

func (g *Gateway) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, span := tracer.Start(ctx, "lark."+op)
	defer span.End()
	span.SetAttributes(attribute.String("lark.path", path))

	err := g.do(ctx, op, method, path, query, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordRemoteCall("lark", op, err)
	return err
}

func (g *Gateway) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := g.tenantAccessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := g.client.Send(ctx, &httputil.Request{
		Method: method,
		URL:    g.baseURL + path,
		Query:  query,
		Header: map[string]string{"Authorization": "Bearer " + token},
		Body:   body,
	})
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}

	env, rerr := parseEnvelope(op, resp)
	if rerr != nil {
		if tokenInvalidCodes[rerr.Code] {
			g.invalidateToken()
		}
		return rerr
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &RemoteError{Op: op, RequestID: resp.Header.Get(HeaderLogID), Err: fmt.Errorf("解析响应数据失败: %w", err)}
		}
	}
	return nil
}

// tenantAccessToken 获取租户访问令牌，过期前一分钟刷新
func (g *Gateway) tenantAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.now().Before(g.expireAt) {
		return g.token, nil
	}

	resp, err := g.client.Send(ctx, &httputil.Request{
		Method: http.MethodPost,
		URL:    g.baseURL + "/auth/v3/tenant_access_token/internal",
		Body: map[string]string{
			"app_id":     g.appID,
			"app_secret": g.appSecret,
		},
	})
	if err != nil {
		rerr := &RemoteError{Op: "tenant_access_token", Err: err}
		metrics.RecordRemoteCall("lark", rerr.Op, rerr)
		return "", rerr
	}

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	logID := resp.Header.Get(HeaderLogID)
	if err := json.Unmarshal(resp.Body, &result); err != nil || resp.StatusCode != http.StatusOK || result.Code != 0 || result.TenantAccessToken == "" {
		rerr := &RemoteError{Op: "tenant_access_token", StatusCode: resp.StatusCode, Code: result.Code, Msg: result.Msg, RequestID: logID, Err: err}
		metrics.RecordRemoteCall("lark", rerr.Op, rerr)
		return "", rerr
	}
	metrics.RecordRemoteCall("lark", "tenant_access_token", nil)

	ttl := time.Duration(result.Expire)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	g.token = result.TenantAccessToken
	g.expireAt = g.now().Add(ttl)
	return g.token, nil
}

func (g *Gateway) invalidateToken() {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
}

func parseEnvelope(op string, resp *httputil.Response) (*envelope, *RemoteError) {
	logID := resp.Header.Get(HeaderLogID)
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, RequestID: logID, Msg: string(resp.Body), Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Code: env.Code, Msg: env.Msg, RequestID: logID}
	}
	return &env, nil
}

func parseForm(form string) ([]map[string]any, error) {
	var components []map[string]any
	if form == "" {
		return components, nil
	}
	if err := json.Unmarshal([]byte(form), &components); err != nil {
		return nil, fmt.Errorf("解析实例表单失败: %w", err)
	}
	return components, nil
}
