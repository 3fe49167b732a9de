package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application serves the kind registry.
type AppOptions struct {
	Logger   *logrus.Logger
	Registry *KindRegistry
	// BaseContext bounds long-lived streams; cancel it on shutdown.
	// Defaults to context.Background().
	BaseContext context.Context
	// Now stamps PUT requests without an explicit asOf. Defaults to time.Now.
	Now func() time.Time
	// Heartbeat is the keep-alive interval of event streams. Defaults to 15s.
	Heartbeat time.Duration
}

const (
	contextKeyRequestID = "_localdata_request_id"
	defaultHeartbeat    = 15 * time.Second
)

// NewApp builds a Fiber application with request-id and recover middlewares
// and the object routes of every registered kind.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("kind registry is required")
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		UnescapePath:  true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &objectHandler{opts: opts}
	app.Get("/objects/:kind/:id/stream", h.stream)
	app.Get("/objects/:kind/:id", h.get)
	app.Put("/objects/:kind/:id", h.put)
	app.Get("/objects/:kind", h.list)

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID 并回写 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
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

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
