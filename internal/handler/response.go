package handler

import (
	"errors"
	"net/http"

	"station_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
// HTTP 状态码恒为 200，业务结果由 code 区分
type ResponseData struct {
	Code int `json:"code"`           // 业务响应状态码
	Msg  any `json:"msg"`            // 提示信息
	Data any `json:"data,omitempty"` // 数据
}

func reply(c *gin.Context, code int, msg any, data any) {
	c.JSON(http.StatusOK, ResponseData{Code: code, Msg: msg, Data: data})
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	reply(c, errorx.CodeSuccess, "success", data)
}

// HandleError 通用错误处理
// errorx.CodeError 原样返回错误码和消息，其余错误记录日志后返回服务繁忙
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		if codeErr.Code == errorx.CodeDBError || codeErr.Code == errorx.CodeTransportError {
			zap.L().Error("request failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", c.GetString("user_id")),
				zap.Error(err),
			)
		}
		reply(c, codeErr.Code, codeErr.Msg, nil)
		return
	}

	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	reply(c, errorx.ErrServerBusy.Code, errorx.ErrServerBusy.Msg, nil)
}

// HandleParamError 处理参数绑定错误
// validator 错误按当前语言翻译，字段名使用 json tag
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && Trans != nil {
		reply(c, errorx.CodeInvalidParam, RemoveTopStruct(validationErrs.Translate(Trans)), nil)
		return
	}

	zap.L().Warn("param bind error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	reply(c, errorx.ErrInvalidParam.Code, errorx.ErrInvalidParam.Msg, nil)
}
