package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"larkticket/internal/lark"
)

// EventApprovalTask 审批任务状态变更事件
const EventApprovalTask = "approval_task"

// EventHandler 处理一种飞书事件
type EventHandler func(ctx context.Context, ev *lark.EventContext) error

// Registry 事件类型到处理函数的映射
type Registry map[string]EventHandler

// Validate 启动时校验注册表
func (r Registry) Validate() error {
	if len(r) == 0 {
		return errors.New("event registry is empty")
	}
	var errs []error
	for name, h := range r {
		if name == "" {
			errs = append(errs, errors.New("event registry has an empty event type"))
		}
		if h == nil {
			errs = append(errs, fmt.Errorf("event %q has no handler", name))
		}
	}
	return errors.Join(errs...)
}

// Types 已注册的事件类型，按字典序
func (r Registry) Types() []string {
	types := make([]string, 0, len(r))
	for name := range r {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
