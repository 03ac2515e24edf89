package web

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"larkticket/api/handlers/common"
	"larkticket/internal/approvalconfig"
	"larkticket/internal/logger"
)

// ConfigService 审批配置管理
type ConfigService interface {
	List(ctx context.Context) ([]approvalconfig.Summary, error)
	Get(ctx context.Context, approvalCode string) (*approvalconfig.Routing, error)
	Create(ctx context.Context, r *approvalconfig.Routing) error
	Update(ctx context.Context, r *approvalconfig.Routing) error
	Delete(ctx context.Context, approvalCode string) error
	ApprovalFields(ctx context.Context, approvalCode string) ([]approvalconfig.FieldOption, error)
}

// Handler 管理后台接口
type Handler struct {
	service ConfigService
	logger  *zap.Logger
}

// NewHandler 创建 Handler
func NewHandler(service ConfigService, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{service: service, logger: l}
}

// FieldsQuery 审批定义字段查询参数
type FieldsQuery struct {
	ApprovalCode string `form:"approval_code" binding:"required"`
}

// ListConfigs 配置列表，按创建时间排序
// GET /api/v1/web/configs
func (h *Handler) ListConfigs(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, common.ListBody{Body: list})
}

// GetConfig 查询单个配置
// GET /api/v1/web/config/:approval_code
func (h *Handler) GetConfig(c *gin.Context) {
	routing, err := h.service.Get(c.Request.Context(), c.Param("approval_code"))
	if err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, routing)
}

// CreateConfig 创建配置并订阅审批事件
// POST /api/v1/web/config
func (h *Handler) CreateConfig(c *gin.Context) {
	var req approvalconfig.Routing
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx, h.logger).Info("创建审批配置", zap.String("approval_code", req.ApprovalCode))
	if err := h.service.Create(ctx, &req); err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, nil)
}

// UpdateConfig 替换配置
// PUT /api/v1/web/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req approvalconfig.Routing
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	logger.WithContext(ctx, h.logger).Info("更新审批配置", zap.String("approval_code", req.ApprovalCode))
	if err := h.service.Update(ctx, &req); err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, nil)
}

// DeleteConfig 删除配置并取消订阅
// DELETE /api/v1/web/config/:approval_code
func (h *Handler) DeleteConfig(c *gin.Context) {
	ctx := c.Request.Context()
	approvalCode := c.Param("approval_code")

	logger.WithContext(ctx, h.logger).Info("删除审批配置", zap.String("approval_code", approvalCode))
	if err := h.service.Delete(ctx, approvalCode); err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, nil)
}

// ApprovalFields 飞书审批定义的表单控件
// GET /api/v1/web/lark/approval/fields?approval_code=
func (h *Handler) ApprovalFields(c *gin.Context) {
	var q FieldsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.BindFailed(c, err)
		return
	}

	fields, err := h.service.ApprovalFields(c.Request.Context(), q.ApprovalCode)
	if err != nil {
		common.ServiceFailed(c, h.logger, err)
		return
	}
	common.OK(c, common.ListBody{Body: fields})
}
