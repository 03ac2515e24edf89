package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"larkticket/api/handlers/common"
	"larkticket/internal/metrics"
	"larkticket/internal/middleware"
)

// SetupRouter 组装 gin 引擎：中间件、系统端点与业务路由
func SetupRouter(container *AppContainer) *gin.Engine {
	switch mode := container.Config.Server.Mode; mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(mode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// 全局中间件
	router.Use(Recovery(container.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger(container.Logger))
	router.Use(CORS())

	// Prometheus 指标收集中间件
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点
	router.GET("/healthcheck", HealthCheck())
	router.GET("/ready", ReadinessCheck(container.DB, container.RedisClient))

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, fmt.Errorf("[%s] Not Found", c.Request.URL.Path))
	})
	router.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, fmt.Errorf("%s [%s] Method Not Allowed", c.Request.Method, c.Request.URL.Path))
	})

	RegisterRoutes(router, container.InitHandlers())
	return router
}
