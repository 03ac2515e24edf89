package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"larkticket/api/handlers/common"
	"larkticket/internal/dispatch"
	larkevent "larkticket/internal/lark"
	"larkticket/internal/logger"
	"larkticket/internal/metrics"
)

// Dispatcher 回调入口依赖的分发能力
type Dispatcher interface {
	Authorized(ctx context.Context, approvalCode string) (bool, error)
	ExternalField(ctx context.Context, approvalCode, fieldCode string, params any) ([]byte, error)
}

// Handler 飞书侧接口
type Handler struct {
	cipher            *larkevent.Cipher
	dispatcher        Dispatcher
	runner            dispatch.Runner
	verificationToken string
	logger            *zap.Logger
}

// NewHandler 创建 Handler，verificationToken 为空时不校验
func NewHandler(cipher *larkevent.Cipher, d Dispatcher, runner dispatch.Runner, verificationToken string, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{
		cipher:            cipher,
		dispatcher:        d,
		runner:            runner,
		verificationToken: verificationToken,
		logger:            l,
	}
}

// EncryptRequest 飞书加密回调
type EncryptRequest struct {
	Encrypt string `json:"encrypt" binding:"required"`
}

// ResultRequest 外部系统回传的检查或执行结果
type ResultRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
	Result   *bool  `json:"result" binding:"required"`
	Msg      string `json:"msg"`
	Error    string `json:"error"`
}

func (r ResultRequest) toResult() dispatch.Result {
	return dispatch.Result{TicketID: r.TicketID, Result: *r.Result, Msg: r.Msg, Error: r.Error}
}

// FieldRequest 外部字段取值参数
type FieldRequest struct {
	LinkageParams map[string]any `json:"linkage_params"`
	Token         string         `json:"token,omitempty"`
	PageToken     string         `json:"page_token,omitempty"`
	Query         string         `json:"query,omitempty"`
}

type fieldQuery struct {
	LinkageParams string `form:"linkage_params"` // JSON 字符串
	Token         string `form:"token"`
	PageToken     string `form:"page_token"`
	Query         string `form:"query"`
}

// Callback 飞书事件回调
// POST /api/v1/lark/callback
func (h *Handler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx, h.logger)

	var req EncryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindFailed(c, err)
		return
	}

	ev, err := h.cipher.DecryptEvent(req.Encrypt)
	if err != nil {
		log.Warn("回调解密失败", zap.Error(err))
		metrics.CallbacksTotal.WithLabelValues("", metrics.OutcomeFailure).Inc()
		common.Fail(c, http.StatusOK, err)
		return
	}

	if ev.IsHandshake() {
		log.Info("飞书回调地址校验")
		c.JSON(http.StatusOK, gin.H{"challenge": ev.Challenge})
		return
	}

	eventType := ev.Normalize()
	approvalCode := ev.ApprovalCode()
	log = log.With(zap.String("event_type", eventType), zap.String("approval_code", approvalCode))
	log.Info("收到飞书回调")

	if h.verificationToken != "" && ev.VerificationToken() != h.verificationToken {
		log.Warn("回调 token 校验失败，已忽略")
		metrics.CallbacksTotal.WithLabelValues(eventType, metrics.OutcomeIgnored).Inc()
		c.JSON(http.StatusOK, gin.H{"msg": common.MsgSuccess})
		return
	}

	ok, err := h.dispatcher.Authorized(ctx, approvalCode)
	if err != nil {
		log.Error("查询审批配置失败", zap.Error(err))
		metrics.CallbacksTotal.WithLabelValues(eventType, metrics.OutcomeFailure).Inc()
		common.Fail(c, http.StatusOK, err)
		return
	}
	if !ok {
		log.Info("忽略未授权的审批回调")
		metrics.CallbacksTotal.WithLabelValues(eventType, metrics.OutcomeIgnored).Inc()
		c.JSON(http.StatusOK, gin.H{"msg": common.MsgSuccess})
		return
	}

	if err := h.runner.Submit(ctx, dispatch.EventJob(ctx, ev)); err != nil {
		log.Error("提交后台任务失败", zap.Error(err))
		metrics.CallbacksTotal.WithLabelValues(eventType, metrics.OutcomeFailure).Inc()
		common.Fail(c, http.StatusOK, err)
		return
	}
	metrics.CallbacksTotal.WithLabelValues(eventType, metrics.OutcomeSuccess).Inc()
	c.JSON(http.StatusOK, gin.H{"msg": common.MsgSuccess})
}

// CheckCallback 检查结果回调
// POST /api/v1/lark/check/callback
func (h *Handler) CheckCallback(c *gin.Context) {
	h.submitResult(c, "检查", dispatch.CheckJob)
}

// ExecuteCallback 执行结果回调
// POST /api/v1/lark/execute/callback
func (h *Handler) ExecuteCallback(c *gin.Context) {
	h.submitResult(c, "执行", dispatch.ExecuteJob)
}

func (h *Handler) submitResult(c *gin.Context, stage string, newJob func(context.Context, dispatch.Result) dispatch.Job) {
	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx, h.logger).Info("收到"+stage+"结果回调",
		zap.String("ticket_id", req.TicketID), zap.Bool("result", *req.Result))

	if err := h.runner.Submit(ctx, newJob(ctx, req.toResult())); err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, nil)
}

// Field 外部字段数据源，响应原样透传
// GET|POST /api/v1/lark/field/:approval_code/:field_code
func (h *Handler) Field(c *gin.Context) {
	approvalCode := c.Param("approval_code")
	fieldCode := c.Param("field_code")

	req, err := bindField(c)
	if err != nil {
		common.BindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx, h.logger).Info("收到外部字段请求",
		zap.String("approval_code", approvalCode), zap.String("field_code", fieldCode))

	raw, err := h.dispatcher.ExternalField(ctx, approvalCode, fieldCode, req)
	if err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func bindField(c *gin.Context) (*FieldRequest, error) {
	req := &FieldRequest{}
	if c.Request.Method == http.MethodGet {
		var q fieldQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			return nil, err
		}
		req.Token, req.PageToken, req.Query = q.Token, q.PageToken, q.Query
		if q.LinkageParams != "" {
			if err := json.Unmarshal([]byte(q.LinkageParams), &req.LinkageParams); err != nil {
				return nil, fmt.Errorf("linkage_params 不是合法的 JSON 对象: %w", err)
			}
		}
	} else if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if req.LinkageParams == nil {
		req.LinkageParams = map[string]any{}
	}
	return req, nil
}
