package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/apihook/apihook/internal/logging"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_apihook_request_id"

// NewApp builds a Fiber application with request-id/access-log middleware and
// structured JSON errors. Routes are registered separately by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	return app, nil
}

// requestContextMiddleware 生成请求 ID，并在请求结束后输出 access 日志。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		started := time.Now()
		err := c.Next()

		fields := logging.GatewayFields(reqID, c.IP())
		fields["action"] = "gateway_request"
		fields["http_method"] = c.Method()
		fields["path"] = c.Path()
		fields["duration_ms"] = time.Since(started).Milliseconds()
		opts.Logger.WithFields(fields).Debug("request handled")
		return err
	}
}

// errorHandler 将未匹配路由渲染为 route_not_found，其余错误统一为 internal_error。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route_not_found"})
		}

		logger.WithFields(logrus.Fields{
			"action":     "gateway_error",
			"request_id": RequestID(c),
			"path":       c.Path(),
		}).Error(err.Error())

		status := fiber.StatusInternalServerError
		if fe != nil {
			status = fe.Code
		}
		return c.Status(status).JSON(fiber.Map{"error": "internal_error"})
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
