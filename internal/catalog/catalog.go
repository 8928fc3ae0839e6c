// Package catalog 将配置中的 Endpoint 列表构建为可执行的 apihook.Hook，并按声明顺序提供查询。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/apihook/apihook/apihook"
	"github.com/apihook/apihook/internal/config"
	"github.com/apihook/apihook/internal/transport"
	"github.com/apihook/apihook/internal/version"
)

// Entry 将 Endpoint 配置与其 Hook 聚合在一起，供网关与 CLI 直接复用。
type Entry struct {
	// Config 是 config.toml 中声明的 Endpoint 字段副本。
	Config config.EndpointConfig
	Hook   *apihook.Hook[any]
}

// Catalog 提供 name 到 Entry 的查询能力。调用方应在启动阶段创建一次并复用。
type Catalog struct {
	entries map[string]*Entry
	ordered []*Entry
}

// Option 调整 Catalog 的构建方式。
type Option func(*options)

type options struct {
	newTransport func(cfg *config.Config, endpoint config.EndpointConfig) apihook.Transport
}

// WithTransport 替换默认的 HTTP Transport 工厂，主要用于测试。
func WithTransport(fn func(cfg *config.Config, endpoint config.EndpointConfig) apihook.Transport) Option {
	return func(o *options) {
		o.newTransport = fn
	}
}

// New 为每个 Endpoint 创建 Hook。名称重复或 Hook 配置非法时返回错误。
func New(cfg *config.Config, logger logrus.FieldLogger, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	o := options{newTransport: defaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	catalog := &Catalog{entries: make(map[string]*Entry, len(cfg.Endpoints))}
	for _, endpoint := range cfg.Endpoints {
		if _, exists := catalog.entries[endpoint.Name]; exists {
			return nil, fmt.Errorf("duplicate endpoint %s", endpoint.Name)
		}
		hook, err := buildHook(cfg, endpoint, logger, o)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", endpoint.Name, err)
		}
		entry := &Entry{Config: endpoint, Hook: hook}
		catalog.entries[endpoint.Name] = entry
		catalog.ordered = append(catalog.ordered, entry)
	}

	return catalog, nil
}

// Lookup 根据名称查找 Entry。
func (c *Catalog) Lookup(name string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries[name]
	return entry, ok
}

// List 按配置声明顺序返回 Entry。
func (c *Catalog) List() []*Entry {
	if c == nil || len(c.ordered) == 0 {
		return nil
	}
	return append([]*Entry(nil), c.ordered...)
}

func buildHook(cfg *config.Config, endpoint config.EndpointConfig, logger logrus.FieldLogger, o options) (*apihook.Hook[any], error) {
	params, err := Parameters(endpoint)
	if err != nil {
		return nil, err
	}

	hookCfg := apihook.Config[any]{
		Name:         endpoint.Name,
		Method:       endpoint.Method,
		BaseURL:      endpoint.BaseURL,
		Endpoint:     endpoint.Path,
		Params:       params,
		Headers:      endpoint.Headers,
		FunctionName: endpoint.FunctionName,
		Logger:       logger,
		NewTransport: func() apihook.Transport {
			return o.newTransport(cfg, endpoint)
		},
	}
	if len(endpoint.ExpectFields) > 0 {
		hookCfg.ValidateResponse = expectFields(endpoint.ExpectFields)
	}
	if endpoint.ResponseField != "" {
		hookCfg.TransformResponse = selectField(endpoint.ResponseField)
	}
	if endpoint.ErrorField != "" {
		hookCfg.OnError = errorFromField(endpoint.ErrorField)
	}

	return apihook.CreateHook(hookCfg)
}

// Parameters 将配置中的参数声明转换为 apihook.Parameter。
func Parameters(endpoint config.EndpointConfig) ([]apihook.Parameter, error) {
	if len(endpoint.Params) == 0 {
		return nil, nil
	}
	params := make([]apihook.Parameter, 0, len(endpoint.Params))
	for idx, p := range endpoint.Params {
		loc, ok := apihook.ParseLocation(p.In)
		if !ok {
			return nil, fmt.Errorf("param[%d] %s: unsupported location %q", idx, p.Key, p.In)
		}
		params = append(params, apihook.Declare(apihook.Parameter{
			Key:      p.Key,
			In:       loc,
			Default:  p.Default,
			Required: p.Required,
		}))
	}
	return params, nil
}

// defaultTransport 为 Endpoint 创建带超时的 client，并在发送前剔除 hop-by-hop 请求头。
func defaultTransport(cfg *config.Config, endpoint config.EndpointConfig) apihook.Transport {
	client := transport.NewClient(cfg, endpoint)
	return filteredTransport(client, userAgent(cfg))
}

func filteredTransport(client *http.Client, ua string) apihook.Transport {
	next := apihook.NewHTTPTransport(client, ua)
	return apihook.TransportFunc(func(ctx context.Context, req *apihook.Request) (*apihook.Response, error) {
		filtered := *req
		filtered.Headers = transport.StripHopByHop(req.Headers)
		return next.Do(ctx, &filtered)
	})
}

func userAgent(cfg *config.Config) string {
	if cfg != nil && cfg.Global.UserAgent != "" {
		return cfg.Global.UserAgent
	}
	return version.UserAgent()
}
