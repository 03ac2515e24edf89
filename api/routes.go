package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	apiV1 := router.Group("/api/v1")

	// 飞书回调与外部系统结果回传
	registerLarkRoutes(apiV1, handlers)

	// 管理后台
	registerWebRoutes(apiV1, handlers)
}

// registerLarkRoutes 飞书侧路由
func registerLarkRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	larkGroup := apiGroup.Group("/lark")
	{
		larkGroup.POST("/callback", h.Lark.Callback)
		larkGroup.POST("/check/callback", h.Lark.CheckCallback)
		larkGroup.POST("/execute/callback", h.Lark.ExecuteCallback)
		larkGroup.GET("/field/:approval_code/:field_code", h.Lark.Field)
		larkGroup.POST("/field/:approval_code/:field_code", h.Lark.Field)
	}
}

// registerWebRoutes 审批配置管理路由
func registerWebRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	webGroup := apiGroup.Group("/web")
	{
		webGroup.GET("/configs", h.Web.ListConfigs)
		webGroup.GET("/config/:approval_code", h.Web.GetConfig)
		webGroup.POST("/config", h.Web.CreateConfig)
		webGroup.PUT("/config", h.Web.UpdateConfig)
		webGroup.DELETE("/config/:approval_code", h.Web.DeleteConfig)
		webGroup.GET("/lark/approval/fields", h.Web.ApprovalFields)
	}
}
