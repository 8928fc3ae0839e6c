package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/apihook/apihook/apihook"
)

// expectFields 要求响应是对象且包含全部字段，否则视为响应数据不合法。
func expectFields(fields []string) func(any) bool {
	return func(data any) bool {
		object, err := cast.ToStringMapE(data)
		if err != nil {
			return false
		}
		for _, field := range fields {
			if _, ok := object[field]; !ok {
				return false
			}
		}
		return true
	}
}

// selectField 返回响应中点分路径指向的值，例如 "data.items"。
func selectField(path string) func(any) (any, error) {
	return func(data any) (any, error) {
		value, ok := lookupPath(data, path)
		if !ok {
			return nil, fmt.Errorf("%w: field %s not found", apihook.ErrInvalidResponse, path)
		}
		return value, nil
	}
}

// errorFromField 从上游错误响应体中按点分路径提取错误信息；提取不到时返回 nil，交回默认逻辑。
func errorFromField(path string) func(error) error {
	return func(err error) error {
		var te *apihook.TransportError
		if !errors.As(err, &te) {
			return nil
		}
		value, ok := lookupPath(te.ResponseBody, path)
		if !ok {
			return nil
		}
		message, castErr := cast.ToStringE(value)
		if castErr != nil || message == "" {
			return nil
		}
		return &apihook.HookError{
			Kind:       apihook.KindTransport,
			Message:    message,
			StatusCode: te.StatusCode,
			Cause:      err,
		}
	}
}

func lookupPath(data any, path string) (any, bool) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		object, err := cast.ToStringMapE(current)
		if err != nil {
			return nil, false
		}
		value, ok := object[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}
