package apihook

import "strings"

// Location 描述参数在请求中的落点。
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationBody   Location = "body"
)

// ParseLocation 将配置中的字符串标准化为可声明的 Location（不含 path）。
func ParseLocation(raw string) (Location, bool) {
	switch loc := Location(strings.ToLower(strings.TrimSpace(raw))); loc {
	case LocationQuery, LocationHeader, LocationBody:
		return loc, true
	default:
		return "", false
	}
}

// Parameter 声明一个 query/header/body 参数。路径参数从 Endpoint 模板推导，不在此声明。
// Default 为 nil 表示没有默认值；存在默认值时 Required 不再生效。
type Parameter struct {
	Key      string
	In       Location
	Default  any
	Required bool
}

// Declare 原样返回声明，仅用于在字面量列表中获得统一的写法。
func Declare(p Parameter) Parameter {
	return p
}

// ParamOption 调整 Param 构造出的声明。
type ParamOption func(*Parameter)

// Param 以类型化的默认值构造声明，T 约束 WithDefault 传入的值类型。
func Param[T any](key string, in Location, opts ...ParamOption) Parameter {
	p := Parameter{Key: key, In: in}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithDefault 设置默认值。
func WithDefault[T any](value T) ParamOption {
	return func(p *Parameter) {
		p.Default = value
	}
}

// Required 将参数标记为必填。
func Required() ParamOption {
	return func(p *Parameter) {
		p.Required = true
	}
}
