package routes

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/apihook/apihook/apihook"
	"github.com/apihook/apihook/internal/catalog"
	"github.com/apihook/apihook/internal/logging"
	"github.com/apihook/apihook/internal/server"
)

// RegisterEndpointRoutes 暴露 /-/endpoints 诊断接口以及按名称调用 Endpoint 的入口。
func RegisterEndpointRoutes(app *fiber.App, cat *catalog.Catalog, logger logrus.FieldLogger) {
	if app == nil || cat == nil {
		return
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	app.Get("/-/endpoints", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"endpoints": encodeEntries(cat.List())})
	})

	app.Get("/-/endpoints/:name", func(c fiber.Ctx) error {
		entry, ok := cat.Lookup(c.Params("name"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint_not_found"})
		}
		return c.JSON(encodeEntry(entry))
	})

	app.Post("/-/endpoints/:name/call", func(c fiber.Ctx) error {
		entry, ok := cat.Lookup(c.Params("name"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint_not_found"})
		}

		args, err := decodeCallBody(c.Body())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "invalid_arguments",
				"message": err.Error(),
			})
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		data, err := callEntry(ctx, entry, args)
		if err != nil {
			return renderCallError(c, logger, entry, err)
		}

		return c.JSON(fiber.Map{
			"endpoint": entry.Config.Name,
			"function": entry.Hook.FunctionName(),
			"response": data,
		})
	})
}

// callEntry 为单次网关调用激活一个独立实例，等待结果后立即释放。
func callEntry(ctx context.Context, entry *catalog.Entry, args apihook.Args) (any, error) {
	instance := entry.Hook.Activate()
	defer instance.Dispose()
	return instance.ExecuteContext(ctx, args, apihook.Callbacks[any]{}).Wait()
}

func decodeCallBody(body []byte) (apihook.Args, error) {
	if len(body) == 0 {
		return apihook.Args{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return apihook.Args{}, err
	}
	return catalog.DecodeArgs(raw)
}

func renderCallError(c fiber.Ctx, logger logrus.FieldLogger, entry *catalog.Entry, err error) error {
	fields := logging.EndpointFields(entry.Config.Name, entry.Hook.Method(), entry.Hook.FunctionName())
	fields["action"] = "gateway_call"
	fields["request_id"] = server.RequestID(c)

	if errors.Is(err, apihook.ErrMissingParameters) {
		logger.WithFields(fields).Warn(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "missing_required_parameters",
			"message": err.Error(),
		})
	}

	var hookErr *apihook.HookError
	if errors.As(err, &hookErr) {
		fields["status"] = hookErr.StatusCode
		logger.WithFields(fields).Warn(hookErr.Message)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "upstream_failed",
			"message": hookErr.Message,
			"status":  hookErr.StatusCode,
		})
	}

	return err
}

type entryPayload struct {
	Name       string   `json:"name"`
	Method     string   `json:"method"`
	Function   string   `json:"function"`
	BaseURL    string   `json:"base_url"`
	Path       string   `json:"path"`
	PathParams []string `json:"path_params"`
	Query      []string `json:"query"`
	Header     []string `json:"header"`
	Body       []string `json:"body"`
	Required   []string `json:"required"`
}

func encodeEntries(entries []*catalog.Entry) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, encodeEntry(entry))
	}
	return result
}

func encodeEntry(entry *catalog.Entry) entryPayload {
	class := entry.Hook.Classification()
	required := append([]string(nil), class.PathKeys...)
	required = append(required, class.Query.Required...)
	required = append(required, class.Header.Required...)
	required = append(required, class.Body.Required...)

	return entryPayload{
		Name:       entry.Config.Name,
		Method:     entry.Hook.Method(),
		Function:   entry.Hook.FunctionName(),
		BaseURL:    entry.Config.BaseURL,
		Path:       entry.Config.Path,
		PathParams: nonNil(class.PathKeys),
		Query:      nonNil(class.Query.Keys),
		Header:     nonNil(class.Header.Keys),
		Body:       nonNil(class.Body.Keys),
		Required:   nonNil(required),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
