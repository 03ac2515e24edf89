package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout 外部服务调用默认超时
const DefaultTimeout = 5 * time.Second

// StatusError 非 200 响应
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s 返回状态码 %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client HTTP客户端包装器，所有请求不重试
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithTimeout 设置请求超时时间，非正数时保持默认值
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout <= 0 {
			return
		}
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// NewClient 创建HTTP客户端
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		timeout:    DefaultTimeout,
		headers: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   "lark-ticket/1.0",
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Request 单次请求参数
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header map[string]string
	Body   any // 非 nil 时序列化为 JSON
}

// Response 原始响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Send 发送请求并读取完整响应体，不检查状态码
func (c *Client) Send(ctx context.Context, r *Request) (*Response, error) {
	target := r.URL
	if len(r.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("解析 URL 失败: %w", err)
		}
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("创建%s请求失败: %w", r.Method, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s请求失败: %w", r.Method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Do 发送请求，仅 200 视为成功，返回响应体
func (c *Client) Do(ctx context.Context, r *Request) ([]byte, error) {
	resp, err := c.Send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: r.Method, URL: r.URL, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp.Body, nil
}

// PostJSON 发送POST请求（JSON格式）并解析JSON响应，result 为 nil 时不解析
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, result any) error {
	data, err := c.Do(ctx, &Request{Method: http.MethodPost, URL: rawURL, Body: body})
	if err != nil {
		return err
	}
	return decode(data, result)
}

// PostRaw 发送POST请求并原样返回JSON响应
func (c *Client) PostRaw(ctx context.Context, rawURL string, body any) (json.RawMessage, error) {
	data, err := c.Do(ctx, &Request{Method: http.MethodPost, URL: rawURL, Body: body})
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("解析JSON响应失败: 响应不是合法 JSON")
	}
	return json.RawMessage(data), nil
}

func decode(data []byte, result any) error {
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}
