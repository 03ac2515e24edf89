package dispatch

import "larkticket/internal/approvalconfig"

// StatusPending 审批中
const StatusPending = "PENDING"

// Stage 检查或执行节点
type Stage struct {
	Name           string // 流程名称，用于日志、告警与指标
	NodeName       string
	NodeStatus     string
	SuccessComment string
	FailureComment string
}

var (
	// CheckStage 检查节点
	CheckStage = Stage{
		Name:           "check_callback",
		NodeName:       "check_node",
		NodeStatus:     StatusPending,
		SuccessComment: "检查成功。",
		FailureComment: "检查失败。",
	}
	// ExecuteStage 执行节点
	ExecuteStage = Stage{
		Name:           "execute_callback",
		NodeName:       "execute_node",
		NodeStatus:     StatusPending,
		SuccessComment: "执行成功。",
		FailureComment: "执行失败。",
	}
)

// Comment 按结果选取审批意见，调用方未提供时使用默认文案
func (s Stage) Comment(r Result) string {
	if r.Result {
		if r.Msg != "" {
			return r.Msg
		}
		return s.SuccessComment
	}
	if r.Error != "" {
		return r.Error
	}
	return s.FailureComment
}

// config 取出该节点对应的配置
func (s Stage) config(r *approvalconfig.Routing) approvalconfig.StageConfig {
	if s.NodeName == ExecuteStage.NodeName {
		return r.Execute
	}
	return r.Check
}

// matchStage 根据当前任务的节点名与状态确定所处节点
func matchStage(nodeName, status string) (Stage, bool) {
	for _, s := range []Stage{CheckStage, ExecuteStage} {
		if s.NodeName == nodeName && s.NodeStatus == status {
			return s, true
		}
	}
	return Stage{}, false
}
