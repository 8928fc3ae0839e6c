// Package transport 提供出站 HTTP client 与请求头过滤工具，供 catalog 为每个 Endpoint 构建 Transport。
package transport

import (
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/apihook/apihook/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewClient 返回用于 endpoint 的 http.Client；Endpoint.Timeout 优先于全局 RequestTimeout。
func NewClient(cfg *config.Config, endpoint config.EndpointConfig) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil {
		if effective := cfg.EffectiveTimeout(endpoint); effective > 0 {
			timeout = effective
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// hopByHopHeaders 定义 RFC 7230 中只对单跳连接有效的头部，不能由调用方参数注入。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Proxy-Connection":    {}, // 非标准字段，但部分代理仍使用
}

// StripHopByHop 返回去掉 hop-by-hop 字段后的请求头副本，输入为空时返回 nil。
func StripHopByHop(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		if IsHopByHopHeader(key) {
			continue
		}
		out[key] = value
	}
	return out
}

// IsHopByHopHeader reports whether the header must not be forwarded upstream.
func IsHopByHopHeader(key string) bool {
	_, ok := hopByHopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}
