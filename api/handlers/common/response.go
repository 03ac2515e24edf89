package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"larkticket/internal/approvalconfig"
	"larkticket/internal/logger"
)

// 业务状态码
const (
	RetcodeSuccess = 0
	RetcodeFailure = -1

	MsgSuccess = "success"
)

// Response 通用响应结构
type Response struct {
	Retcode int    `json:"retcode"` // 0 成功，-1 失败
	Msg     string `json:"msg"`
	Error   string `json:"error"`
	Resp    any    `json:"resp"`
}

// ListBody 列表数据统一放在 resp.body 中
type ListBody struct {
	Body any `json:"body"`
}

// OK 成功响应，resp 为 nil 时返回空对象
func OK(c *gin.Context, resp any) {
	if resp == nil {
		resp = gin.H{}
	}
	c.JSON(http.StatusOK, Response{Retcode: RetcodeSuccess, Msg: MsgSuccess, Resp: resp})
}

// Fail 失败响应
func Fail(c *gin.Context, status int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, Response{Retcode: RetcodeFailure, Error: msg, Resp: gin.H{}})
}

// AbortFail 失败响应并中断后续处理
func AbortFail(c *gin.Context, status int, err error) {
	Fail(c, status, err)
	c.Abort()
}

// BindFailed 参数校验失败
func BindFailed(c *gin.Context, err error) {
	Fail(c, http.StatusUnprocessableEntity, err)
}

// Expected 资源重复或不存在属于预期内错误
func Expected(err error) bool {
	return errors.Is(err, approvalconfig.ErrAlreadyExists) || errors.Is(err, approvalconfig.ErrNotFound)
}

// ServiceFailed 业务失败，预期内错误记 info，其余记 error
func ServiceFailed(c *gin.Context, l *zap.Logger, err error) {
	log := logger.WithContext(c.Request.Context(), l).With(
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	if Expected(err) {
		log.Info("请求未完成")
	} else {
		log.Error("请求处理失败")
	}
	Fail(c, http.StatusOK, err)
}
