package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有 Endpoint 共享同一份参数。
type GlobalConfig struct {
	ListenPort     int      `mapstructure:"ListenPort"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	RequestTimeout Duration `mapstructure:"RequestTimeout"`
	UserAgent      string   `mapstructure:"UserAgent"`
}

// ParamConfig 对应 [[Endpoint.Param]]，声明一个 query/header/body 参数。
type ParamConfig struct {
	Key      string      `mapstructure:"Key"`
	In       string      `mapstructure:"In"`
	Default  interface{} `mapstructure:"Default"`
	Required bool        `mapstructure:"Required"`
}

// EndpointConfig 描述一个 HTTP 接口，对应 [[Endpoint]]。
type EndpointConfig struct {
	Name         string            `mapstructure:"Name"`
	Method       string            `mapstructure:"Method"`
	BaseURL      string            `mapstructure:"BaseURL"`
	Path         string            `mapstructure:"Path"`
	FunctionName string            `mapstructure:"FunctionName"`
	Timeout      Duration          `mapstructure:"Timeout"`
	Headers      map[string]string `mapstructure:"Headers"`
	Params       []ParamConfig     `mapstructure:"Param"`
	// ExpectFields 要求成功响应是包含这些字段的对象，否则视为 "Invalid response data"。
	ExpectFields []string `mapstructure:"ExpectFields"`
	// ResponseField 以点号路径从成功响应中取出子字段作为最终结果。
	ResponseField string `mapstructure:"ResponseField"`
	// ErrorField 以点号路径从错误响应体中读取错误信息。
	ErrorField string `mapstructure:"ErrorField"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig     `mapstructure:",squash"`
	Endpoints []EndpointConfig `mapstructure:"Endpoint"`
}

// EffectiveTimeout 返回特定 Endpoint 生效的超时，未覆盖时回退至全局值。
func (c *Config) EffectiveTimeout(e EndpointConfig) time.Duration {
	if e.Timeout.DurationValue() > 0 {
		return e.Timeout.DurationValue()
	}
	return c.Global.RequestTimeout.DurationValue()
}

// EndpointNames 返回所有 Endpoint 的 name:method 摘要，供日志字段使用。
func EndpointNames(endpoints []EndpointConfig) []string {
	if len(endpoints) == 0 {
		return nil
	}
	result := make([]string, len(endpoints))
	for i, e := range endpoints {
		result[i] = fmt.Sprintf("%s:%s", e.Name, e.Method)
	}
	return result
}
