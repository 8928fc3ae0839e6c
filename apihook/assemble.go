package apihook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Args 是单次调用传入的参数，四个位置均可省略。
type Args struct {
	Path   map[string]any `mapstructure:"path" json:"path,omitempty"`
	Query  map[string]any `mapstructure:"query" json:"query,omitempty"`
	Header map[string]any `mapstructure:"header" json:"header,omitempty"`
	Body   map[string]any `mapstructure:"body" json:"body,omitempty"`
}

// Request 是交给 Transport 的完整请求描述。
// Query 仅在非空时存在；Body 仅在非 GET 且非空时存在。
type Request struct {
	BaseURL string
	URL     string
	Method  string
	Headers map[string]string
	Query   map[string]any
	Body    map[string]any
}

// Assembler 基于固定的分类结果把调用参数组装为 Request。
type Assembler struct {
	method        string
	baseURL       string
	template      string
	staticHeaders map[string]string
	class         Classification
}

// NewAssembler 构造 Assembler，method 需为大写形式。
func NewAssembler(method, baseURL, template string, headers map[string]string, class Classification) *Assembler {
	static := make(map[string]string, len(headers))
	for k, v := range headers {
		static[k] = v
	}
	return &Assembler{
		method:        method,
		baseURL:       baseURL,
		template:      template,
		staticHeaders: static,
		class:         class,
	}
}

// Assemble 依次完成校验、URL 替换以及 query/header/body 解析。
// 任何必填参数缺失都返回同一个 KindValidation 错误。
func (a *Assembler) Assemble(args Args) (*Request, error) {
	query := mergeValues(a.class.Query.Defaults, args.Query)
	header := mergeValues(a.class.Header.Defaults, args.Header)
	body := mergeValues(a.class.Body.Defaults, args.Body)

	if !a.valid(args.Path, query, header, body) {
		return nil, newValidationError()
	}

	req := &Request{
		BaseURL: a.baseURL,
		URL:     a.resolveURL(args.Path),
		Method:  a.method,
		Headers: a.resolveHeaders(header),
	}
	if q := resolveQuery(a.class.Query, query); len(q) > 0 {
		req.Query = q
	}
	if a.method != "GET" {
		if b := resolveBody(a.class.Body, body); len(b) > 0 {
			req.Body = b
		}
	}
	return req, nil
}

func (a *Assembler) valid(path, query, header, body map[string]any) bool {
	for _, key := range a.class.PathKeys {
		if isBlank(path[key]) {
			return false
		}
	}
	return hasAll(query, a.class.Query.Required) &&
		hasAll(header, a.class.Header.Required) &&
		hasAll(body, a.class.Body.Required)
}

// resolveURL 对每个提取到的 key 只替换第一次出现的 :key。
func (a *Assembler) resolveURL(path map[string]any) string {
	url := a.template
	for _, key := range a.class.PathKeys {
		value, ok := path[key]
		if !ok || value == nil {
			continue
		}
		url = strings.Replace(url, ":"+key, stringify(value), 1)
	}
	return url
}

// resolveHeaders 以静态头为底，调用值覆盖同名头（名称不区分大小写），调用值按 key 排序依次写入。
func (a *Assembler) resolveHeaders(merged map[string]any) map[string]string {
	headers := make(map[string]string, len(a.staticHeaders)+len(merged))
	for k, v := range a.staticHeaders {
		headers[k] = v
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := merged[key]
		if !a.class.Header.Has(key) || isBlank(value) {
			continue
		}
		if s := stringify(value); s != "" {
			for existing := range headers {
				if existing != key && strings.EqualFold(existing, key) {
					delete(headers, existing)
				}
			}
			headers[key] = s
		}
	}
	return headers
}

func resolveQuery(bucket Bucket, merged map[string]any) map[string]any {
	out := make(map[string]any, len(merged))
	for key, value := range merged {
		if !bucket.Has(key) || isBlank(value) {
			continue
		}
		out[key] = value
	}
	return out
}

// resolveBody 只过滤 nil，空字符串会保留在 body 中。
func resolveBody(bucket Bucket, merged map[string]any) map[string]any {
	out := make(map[string]any, len(merged))
	for key, value := range merged {
		if !bucket.Has(key) || value == nil {
			continue
		}
		out[key] = value
	}
	return out
}

// mergeValues 先拷贝默认值再覆盖调用值，调用值优先（包括显式的 nil）。
func mergeValues(defaults, call map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(call))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range call {
		merged[k] = v
	}
	return merged
}

func hasAll(values map[string]any, keys []string) bool {
	for _, key := range keys {
		if isBlank(values[key]) {
			return false
		}
	}
	return true
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
