// Package ticket 负责工单 ID 的编码与解码。
//
// 工单 ID 把审批定义 code、审批实例 code 与任务 ID 拼成一个字符串，
// 外部检查/执行服务回调时原样带回，用来定位需要通过或拒绝的飞书任务。
package ticket

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter 工单 ID 分隔符，三个字段中都不允许出现
const Delimiter = "|"

// ErrMalformedTicket 工单 ID 格式错误
var ErrMalformedTicket = errors.New("malformed ticket id")

// ID 解码后的工单 ID
type ID struct {
	ApprovalCode string
	InstanceCode string
	TaskID       string
}

// Encode 按 approval_code|instance_code|task_id 的固定顺序拼接
func Encode(approvalCode, instanceCode, taskID string) (string, error) {
	for name, part := range map[string]string{
		"approval_code": approvalCode,
		"instance_code": instanceCode,
		"task_id":       taskID,
	} {
		if strings.Contains(part, Delimiter) {
			return "", fmt.Errorf("%w: %s contains %q", ErrMalformedTicket, name, Delimiter)
		}
	}
	return approvalCode + Delimiter + instanceCode + Delimiter + taskID, nil
}

// Decode 拆分工单 ID，必须恰好得到三段
func Decode(ticketID string) (ID, error) {
	parts := strings.Split(ticketID, Delimiter)
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformedTicket, ticketID)
	}
	return ID{ApprovalCode: parts[0], InstanceCode: parts[1], TaskID: parts[2]}, nil
}

// String 重新编码
func (id ID) String() string {
	return id.ApprovalCode + Delimiter + id.InstanceCode + Delimiter + id.TaskID
}
