package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/apihook/apihook/apihook"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 参数与路径占位符重名、同一位置重复声明不会被拒绝，后声明的默认值生效。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	if len(c.Endpoints) == 0 {
		return errors.New("至少需要配置一个 Endpoint")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		if e.Name == "" {
			return newFieldError("Endpoint[].Name", "不能为空")
		}
		if _, exists := seenNames[e.Name]; exists {
			return newFieldError(endpointField(e.Name, "Name"), "重复")
		}
		seenNames[e.Name] = struct{}{}

		method, ok := apihook.NormalizeMethod(e.Method)
		if !ok {
			return newFieldError(endpointField(e.Name, "Method"), "仅支持 GET|POST|PUT|PATCH|DELETE")
		}
		e.Method = method

		if err := validateBaseURL(e.BaseURL); err != nil {
			return fmt.Errorf("%s: %w", endpointField(e.Name, "BaseURL"), err)
		}
		if !strings.HasPrefix(e.Path, "/") {
			return newFieldError(endpointField(e.Name, "Path"), "必须以 / 开头")
		}
		if e.FunctionName != "" && !apihook.IsFunctionName(e.FunctionName) {
			return newFieldError(endpointField(e.Name, "FunctionName"), "仅支持 fetchData/postData/putData/patchData/deleteData")
		}
		if e.Timeout.DurationValue() < 0 {
			return newFieldError(endpointField(e.Name, "Timeout"), "不能为负数")
		}

		for idx, p := range e.Params {
			if p.Key == "" {
				return newFieldError(paramField(e.Name, idx, "Key"), "不能为空")
			}
			if _, ok := apihook.ParseLocation(p.In); !ok {
				return newFieldError(paramField(e.Name, idx, "In"), "仅支持 query/header/body")
			}
		}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少 BaseURL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，BaseURL: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("BaseURL 缺少 Host: %s", raw)
	}
	return nil
}
