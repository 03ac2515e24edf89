package tasks

import "strings"

// QueueName 飞书回调队列
const QueueName = "lark"

// 任务类型前缀与类别
const (
	TypePrefix          = "lark:"
	KindCheckCallback   = "check_callback"
	KindExecuteCallback = "execute_callback"
)

// Task Types
const (
	TypeApprovalTask    = TypePrefix + "approval_task"
	TypeCheckCallback   = TypePrefix + KindCheckCallback
	TypeExecuteCallback = TypePrefix + KindExecuteCallback
)

// TypeOf 由任务类别得到 asynq 任务类型
func TypeOf(kind string) string {
	return TypePrefix + kind
}

// KindOf TypeOf 的逆
func KindOf(taskType string) string {
	return strings.TrimPrefix(taskType, TypePrefix)
}
