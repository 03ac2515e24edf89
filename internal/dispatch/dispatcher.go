// Package dispatch 处理飞书审批回调：拉取实例、路由到外部检查或执行接口，并回写审批结果
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"larkticket/internal/alert"
	"larkticket/internal/approvalconfig"
	"larkticket/internal/lark"
	"larkticket/internal/logger"
	"larkticket/internal/ticket"
)

// ErrEmptyTaskList 审批实例没有任务
var ErrEmptyTaskList = errors.New("approval instance has no task")

var tracer = otel.Tracer("larkticket/internal/dispatch")

// Provider 分发流程依赖的飞书接口
type Provider interface {
	GetInstance(ctx context.Context, instanceCode string) (*lark.InstanceDetail, error)
	ApproveTask(ctx context.Context, action lark.TaskAction) error
	RejectTask(ctx context.Context, action lark.TaskAction) error
}

// ConfigSource 路由配置读取
type ConfigSource interface {
	Get(ctx context.Context, approvalCode string) (*approvalconfig.Routing, error)
	Exists(ctx context.Context, approvalCode string) (bool, error)
}

// Options 分发器配置
type Options struct {
	AssistantUserID string
	Logger          *zap.Logger
	Alerter         alert.Alerter
}

// Dispatcher 回调分发器
type Dispatcher struct {
	provider  Provider
	configs   ConfigSource
	invoker   *Invoker
	assistant string
	logger    *zap.Logger
	alerter   alert.Alerter
	registry  Registry
}

// New 创建分发器并校验事件注册表
func New(provider Provider, configs ConfigSource, invoker *Invoker, opts Options) (*Dispatcher, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Alerter == nil {
		opts.Alerter = alert.NewLogAlerter(opts.Logger)
	}
	if invoker == nil {
		invoker = NewInvoker(nil)
	}
	d := &Dispatcher{
		provider:  provider,
		configs:   configs,
		invoker:   invoker,
		assistant: opts.AssistantUserID,
		logger:    opts.Logger,
		alerter:   opts.Alerter,
	}
	d.registry = Registry{
		EventApprovalTask: d.CallbackApprovalTask,
	}
	if err := d.registry.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Registry 已注册的事件处理函数
func (d *Dispatcher) Registry() Registry {
	return d.registry
}

// Authorized 事件所属审批定义是否已配置
func (d *Dispatcher) Authorized(ctx context.Context, approvalCode string) (bool, error) {
	if approvalCode == "" {
		return false, nil
	}
	return d.configs.Exists(ctx, approvalCode)
}

// HandleEvent 按事件类型分发，未注册的类型直接忽略
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *lark.EventContext) error {
	h, ok := d.registry[ev.Type]
	if !ok {
		logger.WithContext(ctx, d.logger).Info("忽略未注册的事件类型", zap.String("event_type", ev.Type))
		return nil
	}
	return h(ctx, ev)
}

// CallbackApprovalTask 审批任务状态变更：仅处理指派给审批助手且处于审批中的任务
func (d *Dispatcher) CallbackApprovalTask(ctx context.Context, ev *lark.EventContext) (err error) {
	log := logger.WithContext(ctx, d.logger)

	if ev.EventString("user_id") != d.assistant || ev.EventString("status") != StatusPending {
		log.Debug("忽略非审批助手或非审批中的任务",
			zap.String("user_id", ev.EventString("user_id")),
			zap.String("status", ev.EventString("status")))
		return nil
	}

	ctx, span := tracer.Start(ctx, "dispatch.callback_approval_task")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	detail, err := d.provider.GetInstance(ctx, ev.EventString("instance_code"))
	if err != nil {
		return fmt.Errorf("获取审批实例失败: %w", err)
	}
	span.SetAttributes(
		attribute.String("lark.approval_code", detail.ApprovalCode),
		attribute.String("lark.instance_code", detail.InstanceCode),
	)

	routing, err := d.configs.Get(ctx, detail.ApprovalCode)
	if err != nil {
		return err
	}

	metadata := make(map[string]any)
	if routing.Relation.IsOpen {
		components, err := detail.FormComponents()
		if err != nil {
			return err
		}
		mapped, dropped, unmatched := remapFields(components, routing.Relation.Data)
		metadata = mapped
		if len(dropped) > 0 {
			log.Debug("未关联的表单控件已丢弃", zap.Strings("component_ids", dropped))
		}
		if len(unmatched) > 0 {
			log.Warn("关联配置未匹配到表单控件",
				zap.String("approval_code", detail.ApprovalCode),
				zap.Strings("codes", unmatched))
		}
	}

	task, ok := detail.CurrentTask()
	if !ok {
		return fmt.Errorf("%w: instance_code %s", ErrEmptyTaskList, detail.InstanceCode)
	}

	ticketID, err := ticket.Encode(detail.ApprovalCode, detail.InstanceCode, task.ID)
	if err != nil {
		return err
	}
	metadata["ticket_id"] = ticketID

	stage, ok := matchStage(task.NodeName, task.Status)
	if !ok {
		log.Debug("当前任务不在检查或执行节点",
			zap.String("ticket_id", ticketID),
			zap.String("node_name", task.NodeName),
			zap.String("status", task.Status))
		return nil
	}
	span.SetAttributes(attribute.String("dispatch.stage", stage.Name))

	cfg := stage.config(routing)
	if !cfg.IsOpen {
		return d.finish(ctx, stage, Result{TicketID: ticketID, Result: true})
	}

	style, err := StyleOf(cfg)
	if err != nil {
		return err
	}
	res, err := d.invoker.Invoke(ctx, style, metadata)
	if err != nil {
		return err
	}
	if res == nil {
		log.Info("已异步推送，等待回调", zap.String("ticket_id", ticketID), zap.String("stage", stage.Name))
		return nil
	}
	if res.TicketID == "" {
		res.TicketID = ticketID
	}
	return d.finish(ctx, stage, *res)
}

// CheckCallback 检查结果回写
func (d *Dispatcher) CheckCallback(ctx context.Context, r Result) error {
	return d.finish(ctx, CheckStage, r)
}

// ExecuteCallback 执行结果回写
func (d *Dispatcher) ExecuteCallback(ctx context.Context, r Result) error {
	return d.finish(ctx, ExecuteStage, r)
}

// finish 成功则同意任务，否则拒绝，操作人为审批助手
func (d *Dispatcher) finish(ctx context.Context, stage Stage, r Result) (err error) {
	ctx, span := tracer.Start(ctx, "dispatch."+stage.Name)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	id, err := ticket.Decode(r.TicketID)
	if err != nil {
		return err
	}
	action := lark.TaskAction{
		ApprovalCode: id.ApprovalCode,
		InstanceCode: id.InstanceCode,
		TaskID:       id.TaskID,
		UserID:       d.assistant,
		Comment:      stage.Comment(r),
	}

	log := logger.WithContext(ctx, d.logger).With(
		zap.Stringer("ticket_id", id),
		zap.String("stage", stage.Name),
		zap.Bool("result", r.Result))
	if r.Result {
		if err := d.provider.ApproveTask(ctx, action); err != nil {
			return fmt.Errorf("同意审批任务失败: %w", err)
		}
		log.Info("审批任务已同意")
		return nil
	}
	if err := d.provider.RejectTask(ctx, action); err != nil {
		return fmt.Errorf("拒绝审批任务失败: %w", err)
	}
	log.Info("审批任务已拒绝")
	return nil
}

// ExternalField 将外部字段请求转发到配置的数据源
func (d *Dispatcher) ExternalField(ctx context.Context, approvalCode, fieldCode string, params any) ([]byte, error) {
	routing, err := d.configs.Get(ctx, approvalCode)
	if err != nil {
		return nil, err
	}
	return d.invoker.Passthrough(ctx, routing.FieldURL(fieldCode), params)
}
