package apihook

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParameters 表示缺少必填参数，刻意不提供字段级细节。
	ErrMissingParameters = errors.New("missing required parameters")
	// ErrInvalidResponse 表示 ValidateResponse 拒绝了响应数据。
	ErrInvalidResponse = errors.New("Invalid response data")
	// ErrSuperseded 表示调用被更新的调用或 Dispose 取代，其结果已被丢弃。
	ErrSuperseded = errors.New("call superseded")
	// ErrDisposed 表示 Instance 已被释放。
	ErrDisposed = errors.New("hook instance disposed")
	// ErrInvalidConfig 由 CreateHook 在配置不合法时返回。
	ErrInvalidConfig = errors.New("invalid hook configuration")
)

const defaultErrorMessage = "request failed"

// ErrorKind 区分错误来源，供调用方决定展示方式。
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindTransport     ErrorKind = "transport"
	KindResponseShape ErrorKind = "response_shape"
)

// HookError 是写入 State.Error 的归一化错误。
type HookError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *HookError) Error() string {
	return e.Message
}

func (e *HookError) Unwrap() error {
	return e.Cause
}

// TransportError 描述传输层失败：网络错误或非 2xx 状态码。
type TransportError struct {
	StatusCode int
	// ResponseBody 为解码后的响应体（JSON 解码失败时为字符串），网络错误时为空。
	ResponseBody any
	Message      string
	Err          error
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return defaultErrorMessage
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newValidationError() *HookError {
	return &HookError{
		Kind:    KindValidation,
		Message: ErrMissingParameters.Error(),
		Cause:   ErrMissingParameters,
	}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
