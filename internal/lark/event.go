package lark

import (
	"encoding/json"
	"fmt"
)

// URLVerification 飞书首次配置回调地址时的握手类型
const URLVerification = "url_verification"

// EventHeader v2 回调的元数据
type EventHeader struct {
	EventID    string `json:"event_id,omitempty"`
	Token      string `json:"token,omitempty"`
	CreateTime string `json:"create_time,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	TenantKey  string `json:"tenant_key,omitempty"`
	AppID      string `json:"app_id,omitempty"`
}

// EventContext 解密后的回调结构，兼容 v1 与 v2
type EventContext struct {
	Challenge string `json:"challenge,omitempty"`

	// v1
	TS    string `json:"ts,omitempty"`
	UUID  string `json:"uuid,omitempty"`
	Token string `json:"token,omitempty"`
	Type  string `json:"type,omitempty"`

	// v2
	Schema string       `json:"schema,omitempty"`
	Header *EventHeader `json:"header,omitempty"`

	Event map[string]any `json:"event"`
}

// ParseEvent 解析明文 JSON
func ParseEvent(data []byte) (*EventContext, error) {
	var ev EventContext
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if ev.Event == nil {
		ev.Event = map[string]any{}
	}
	return &ev, nil
}

// IsHandshake 是否为握手请求，需在 Normalize 之前判断
func (e *EventContext) IsHandshake() bool {
	return e.Type == URLVerification
}

// Normalize 统一事件类型：v2 取 header.event_type，v1 取 event.type
func (e *EventContext) Normalize() string {
	if e.Schema != "" {
		e.Type = ""
		if e.Header != nil {
			e.Type = e.Header.EventType
		}
	} else {
		e.Type = e.EventString("type")
	}
	return e.Type
}

// VerificationToken 回调携带的校验 token
func (e *EventContext) VerificationToken() string {
	if e.Schema != "" && e.Header != nil {
		return e.Header.Token
	}
	return e.Token
}

// EventString 读取 event 中的字符串字段，缺失或类型不符时返回空串
func (e *EventContext) EventString(key string) string {
	if v, ok := e.Event[key].(string); ok {
		return v
	}
	return ""
}

// ApprovalCode 事件所属的审批定义 code
func (e *EventContext) ApprovalCode() string {
	return e.EventString("approval_code")
}
