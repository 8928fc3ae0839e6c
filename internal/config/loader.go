package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 全局字段可以通过 APIHOOK_<字段名> 环境变量覆盖，例如 APIHOOK_LOGLEVEL。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APIHOOK")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectDeclaredPathParams(v); err != nil {
		return nil, err
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Endpoints {
		applyEndpointDefaults(&cfg.Endpoints[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("RequestTimeout", "30s")
	v.SetDefault("UserAgent", "")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(30 * time.Second)
	}
}

func applyEndpointDefaults(e *EndpointConfig) {
	e.Name = strings.TrimSpace(e.Name)
	e.Method = strings.ToUpper(strings.TrimSpace(e.Method))
	if e.Method == "" {
		e.Method = "GET"
	}
	if e.Timeout.DurationValue() < 0 {
		e.Timeout = Duration(0)
	}
	for i := range e.Params {
		p := &e.Params[i]
		p.Key = strings.TrimSpace(p.Key)
		p.In = strings.ToLower(strings.TrimSpace(p.In))
		if p.In == "" {
			p.In = "query"
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectDeclaredPathParams 在解码前拦截 In = "path" 的参数声明，路径参数只能来自 Path 模板。
func rejectDeclaredPathParams(v *viper.Viper) error {
	endpoints, ok := v.Get("Endpoint").([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range endpoints {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		name := fmt.Sprintf("#%d", idx)
		if rawName, ok := lookup(m, "Name").(string); ok && rawName != "" {
			name = rawName
		}
		params, _ := lookup(m, "Param").([]interface{})
		for pIdx, rawParam := range params {
			pm, ok := rawParam.(map[string]interface{})
			if !ok {
				continue
			}
			if in, _ := lookup(pm, "In").(string); strings.EqualFold(strings.TrimSpace(in), "path") {
				return newFieldError(paramField(name, pIdx, "In"), "路径参数由 Path 中的 :name 推导，请移除该声明")
			}
		}
	}

	return nil
}

// lookup 忽略大小写读取 map 字段，viper 对嵌套表的键名会做小写化处理。
func lookup(m map[string]interface{}, key string) interface{} {
	if value, ok := m[key]; ok {
		return value
	}
	for k, value := range m {
		if strings.EqualFold(k, key) {
			return value
		}
	}
	return nil
}
