package apihook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Transport 执行组装好的请求。ctx 即本次调用的取消令牌，Transport 应尽量响应取消。
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc 让普通函数满足 Transport，便于测试注入。
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do makes TransportFunc satisfy Transport.
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Response 是 Transport 成功返回的结果，Data 为解码后的载荷。
type Response struct {
	StatusCode int
	Header     http.Header
	Data       any
}

// HTTPTransport 基于 *http.Client 实现 Transport，超时由 client 决定。
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport 返回使用 client 的 Transport，client 为 nil 时使用 http.DefaultClient。
func NewHTTPTransport(client *http.Client, userAgent string) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, userAgent: userAgent}
}

// Do 发送请求；非 2xx 响应返回 *TransportError，ResponseBody 为解码后的响应体。
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := buildTargetURL(req)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &TransportError{Message: err.Error(), Err: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	data := decodePayload(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode:   resp.StatusCode,
			ResponseBody: data,
			Message:      fmt.Sprintf("request failed with status code %d", resp.StatusCode),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Data:       data,
	}, nil
}

// buildTargetURL 按 axios 的规则拼接 BaseURL 与 URL，绝对 URL 直接使用，并追加 query。
func buildTargetURL(req *Request) (string, error) {
	raw := req.URL
	if !isAbsoluteURL(raw) && req.BaseURL != "" {
		if raw == "" {
			raw = req.BaseURL
		} else {
			raw = strings.TrimRight(req.BaseURL, "/") + "/" + strings.TrimLeft(raw, "/")
		}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(req.Query) == 0 {
		return parsed.String(), nil
	}

	values := parsed.Query()
	keys := make([]string, 0, len(req.Query))
	for key := range req.Query {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, item := range queryValues(req.Query[key]) {
			values.Add(key, item)
		}
	}
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

func isAbsoluteURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(raw, "//")
}

// queryValues 展开切片为多个同名参数，其他值按字符串处理。
func queryValues(value any) []string {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if _, isBytes := value.([]byte); !isBytes {
			out := make([]string, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out = append(out, stringify(rv.Index(i).Interface()))
			}
			return out
		}
	}
	return []string{stringify(value)}
}

func decodePayload(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}
	return data
}
