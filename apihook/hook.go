package apihook

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Config 描述单个 HTTP 接口，创建 Hook 后在其生命周期内保持不变。
type Config[T any] struct {
	// Name 仅用于日志字段。
	Name     string
	Method   string
	BaseURL  string
	Endpoint string
	Params   []Parameter
	Headers  map[string]string

	ValidateResponse  func(data any) bool
	TransformResponse func(data any) (T, error)
	OnError           func(err error) error

	FunctionName string

	Logger logrus.FieldLogger
	// NewTransport 在每次 Activate 时调用一次，为空时使用 http.DefaultClient。
	NewTransport func() Transport
}

// Hook 持有预先计算好的分类结果，Activate 为每个使用方生成独立的 Instance。
type Hook[T any] struct {
	name         string
	method       string
	functionName string
	class        Classification
	assembler    *Assembler
	pipeline     pipeline[T]
	logger       logrus.FieldLogger
	newTransport func() Transport
}

// CreateHook 校验配置并一次性完成路径参数提取与参数分类。
// 声明参数与路径占位符重名、同一位置重复声明都不会被拒绝。
func CreateHook[T any](cfg Config[T]) (*Hook[T], error) {
	method, ok := NormalizeMethod(cfg.Method)
	if !ok {
		return nil, configError("unsupported method %q", cfg.Method)
	}
	for i, p := range cfg.Params {
		if p.Key == "" {
			return nil, configError("params[%d]: key is required", i)
		}
		switch p.In {
		case LocationQuery, LocationHeader, LocationBody:
		default:
			return nil, configError("params[%d] %s: unsupported location %q", i, p.Key, p.In)
		}
	}
	if cfg.FunctionName != "" && !IsFunctionName(cfg.FunctionName) {
		return nil, configError("unsupported function name %q", cfg.FunctionName)
	}

	class := Classify(cfg.Params, ExtractPathParams(cfg.Endpoint))

	logger := cfg.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = func() Transport { return NewHTTPTransport(nil, "") }
	}

	return &Hook[T]{
		name:         cfg.Name,
		method:       method,
		functionName: FunctionName(method, cfg.FunctionName),
		class:        class,
		assembler:    NewAssembler(method, cfg.BaseURL, cfg.Endpoint, cfg.Headers, class),
		pipeline: pipeline[T]{
			validate:  cfg.ValidateResponse,
			transform: cfg.TransformResponse,
			onError:   cfg.OnError,
		},
		logger:       logger,
		newTransport: newTransport,
	}, nil
}

// Activate 创建一个新的 Instance，状态为空，Transport 在此时创建并在后续调用中复用。
func (h *Hook[T]) Activate() *Instance[T] {
	return newInstance(h, h.newTransport())
}

// Classification 返回创建时计算的参数分类。
func (h *Hook[T]) Classification() Classification {
	return h.class
}

// FunctionName 返回命名策略选出的操作名。
func (h *Hook[T]) FunctionName() string {
	return h.functionName
}

// Method 返回标准化后的 HTTP 方法。
func (h *Hook[T]) Method() string {
	return h.method
}

// Assemble 暴露组装逻辑，供诊断或离线校验使用，不发起请求。
func (h *Hook[T]) Assemble(args Args) (*Request, error) {
	return h.assembler.Assemble(args)
}
