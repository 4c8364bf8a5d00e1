package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 当存在底层错误时返回 "消息: 底层错误"，否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeNotFound, "会话不存在")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// 业务状态码常量定义
const (
	CodeSuccess         = 1000 // 成功
	CodeInvalidParam    = 1001 // 请求参数错误（ValidationError）
	CodeServerBusy      = 1005 // 服务繁忙
	CodeUnauthenticated = 1006 // 未登录/Token 无效（AuthenticationError）
	CodeForbidden       = 1007 // 不是该小组成员（AuthorizationError）
	CodeNotFound        = 1008 // 资源不存在（NotFoundError）
	CodeDBError         = 1010 // 数据库错误（PersistenceError）
	CodeCacheError      = 1011 // 缓存错误
	CodeConflict        = 1012 // 非法状态迁移（ConflictError）
	CodeTransportError  = 1013 // 实时通道发布/订阅失败（TransportError）
)

// 预定义常用错误实例
// 这些实例既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam    = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy      = New(CodeServerBusy, "服务繁忙")
	ErrUnauthenticated = New(CodeUnauthenticated, "请先登录")
	ErrForbidden       = New(CodeForbidden, "你不属于该小组")
)

func hasCode(err error, code int) bool {
	var codeErr *CodeError
	return errors.As(err, &codeErr) && codeErr.Code == code
}

// IsNotFound 检查错误是否为"未找到"类型（包括 gorm.ErrRecordNotFound 的包装）
func IsNotFound(err error) bool {
	if hasCode(err, CodeNotFound) {
		return true
	}
	return err != nil && err.Error() == "record not found"
}

// IsValidation 检查是否为参数校验错误
func IsValidation(err error) bool { return hasCode(err, CodeInvalidParam) }

// IsUnauthenticated 检查是否为认证错误
func IsUnauthenticated(err error) bool { return hasCode(err, CodeUnauthenticated) }

// IsForbidden 检查是否为授权错误
func IsForbidden(err error) bool { return hasCode(err, CodeForbidden) }

// IsConflict 检查是否为状态冲突错误
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsTransport 检查是否为实时通道错误
func IsTransport(err error) bool { return hasCode(err, CodeTransportError) }

// IsPersistence 检查是否为持久化错误
func IsPersistence(err error) bool { return hasCode(err, CodeDBError) }
