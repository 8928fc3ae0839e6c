package apihook

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// pipeline 负责成功响应的校验/转换以及失败调用的错误归一化。
type pipeline[T any] struct {
	validate  func(any) bool
	transform func(any) (T, error)
	onError   func(error) error
}

func (p pipeline[T]) process(data any) (T, error) {
	var zero T
	if p.validate != nil && !p.validate(data) {
		return zero, ErrInvalidResponse
	}
	if p.transform != nil {
		return p.transform(data)
	}
	return convertPayload[T](data)
}

// normalize 在配置了 onError 时完全交给它处理；返回 nil 时退回默认提取逻辑。
func (p pipeline[T]) normalize(err error) error {
	if p.onError != nil {
		if custom := p.onError(err); custom != nil {
			return custom
		}
	}
	return defaultNormalize(err)
}

func defaultNormalize(err error) error {
	out := &HookError{Kind: KindTransport, Cause: err}
	if errors.Is(err, ErrInvalidResponse) {
		out.Kind = KindResponseShape
	}

	var te *TransportError
	if errors.As(err, &te) {
		out.StatusCode = te.StatusCode
		if msg := messageField(te.ResponseBody); msg != "" {
			out.Message = msg
			return out
		}
	}
	out.Message = err.Error()
	if out.Message == "" {
		out.Message = defaultErrorMessage
	}
	return out
}

func messageField(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	msg, _ := m["message"].(string)
	return msg
}

// convertPayload 把原始载荷转换为 T：能直接断言时直接返回，否则按 json tag 走 mapstructure 解码。
func convertPayload[T any](data any) (T, error) {
	if out, ok := data.(T); ok {
		return out, nil
	}
	var out T
	if data == nil {
		return out, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(data); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return out, nil
}
