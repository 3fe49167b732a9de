package routes

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/any-hub/localdata/internal/server"
)

// RegisterDiagnosticRoutes 暴露 /-/kinds 与 /-/metrics 诊断接口，供 SRE 查询 Kind 配置与缓存指标。
func RegisterDiagnosticRoutes(app *fiber.App, registry *server.KindRegistry, gatherer prometheus.Gatherer) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/kinds", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"kinds": encodeKinds(registry.List())})
	})

	app.Get("/-/kinds/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind_name_required"})
		}
		route, ok := registry.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "kind_not_found"})
		}
		return c.JSON(encodeKind(route))
	})

	if gatherer != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

type kindPayload struct {
	Name          string `json:"name"`
	Upstream      string `json:"upstream"`
	BatchParam    string `json:"batch_param"`
	Directory     string `json:"directory"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
	RefreshMode   string `json:"refresh_mode"`
}

func encodeKinds(routes []*server.KindRoute) []kindPayload {
	if len(routes) == 0 {
		return nil
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Config.Name < routes[j].Config.Name
	})
	result := make([]kindPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, encodeKind(route))
	}
	return result
}

func encodeKind(route *server.KindRoute) kindPayload {
	mode := "max_age"
	if route.MaxAge <= 0 {
		mode = "on_demand"
	}
	return kindPayload{
		Name:          route.Config.Name,
		Upstream:      route.Config.Upstream,
		BatchParam:    route.Config.BatchParam,
		Directory:     route.Manager.Kind(),
		MaxAgeSeconds: int64(route.MaxAge.Seconds()),
		RefreshMode:   mode,
	}
}
