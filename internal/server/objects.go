package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/localdata/internal/logging"
	"github.com/any-hub/localdata/internal/upstream"
)

// statusClientClosedRequest is reported when the caller went away mid-fetch.
const statusClientClosedRequest = 499

type objectHandler struct {
	opts AppOptions
}

// get 返回单个对象：缺失或过期时先回源，离线时退回缓存。
func (h *objectHandler) get(c fiber.Ctx) error {
	route, ok := h.route(c)
	if !ok {
		return renderKindNotFound(c)
	}
	id := c.Params("id")
	ctx := requestContext(c)

	fetched := false
	err := route.Manager.FetchIfNecessary(ctx, id, func(ctx context.Context, id string) (upstream.Document, error) {
		fetched = true
		return route.Fetcher.Fetch(ctx, id)
	})
	fields := logging.RequestFields(RequestID(c), route.Config.Name, id, !fetched)
	if err != nil {
		return h.renderFetchError(c, fields, err)
	}

	doc, ok := route.Manager.CachedObject(ctx, id)
	c.Set("X-Localdata-Fetched", strconv.FormatBool(fetched))
	if !ok {
		h.opts.Logger.WithFields(fields).Debug("object_not_found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "object_not_found"})
	}

	h.opts.Logger.WithFields(fields).Debug("object_served")
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(doc.Raw)
}

// list 按请求顺序返回多个对象，任一缺失或过期时整体回源一次。
func (h *objectHandler) list(c fiber.Ctx) error {
	route, ok := h.route(c)
	if !ok {
		return renderKindNotFound(c)
	}
	ids := splitIDs(c.Query("ids"))
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ids_required"})
	}
	ctx := requestContext(c)

	fetched := false
	err := route.Manager.FetchAllIfNecessary(ctx, ids, func(ctx context.Context, ids []string) ([]upstream.Document, error) {
		fetched = true
		return route.Fetcher.FetchAll(ctx, ids)
	})
	fields := logging.RequestFields(RequestID(c), route.Config.Name, strings.Join(ids, ","), !fetched)
	if err != nil {
		return h.renderFetchError(c, fields, err)
	}

	objects := make([]json.RawMessage, 0, len(ids))
	missing := []string{}
	for _, id := range ids {
		doc, ok := route.Manager.CachedObject(ctx, id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		objects = append(objects, doc.Raw)
	}

	h.opts.Logger.WithFields(fields).WithField("missing", len(missing)).Debug("objects_served")
	c.Set("X-Localdata-Fetched", strconv.FormatBool(fetched))
	return c.JSON(fiber.Map{
		"objects": objects,
		"missing": missing,
	})
}

// put 以 asOf（RFC3339，默认当前时间）写入对象，旧于缓存的写入会被忽略。
func (h *objectHandler) put(c fiber.Ctx) error {
	route, ok := h.route(c)
	if !ok {
		return renderKindNotFound(c)
	}
	id := c.Params("id")

	doc, err := upstream.ParseDocument(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_document", "detail": err.Error()})
	}
	if doc.ID != id {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id_mismatch"})
	}

	asOf := h.opts.Now()
	if raw := strings.TrimSpace(c.Query("asOf")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_as_of"})
		}
		asOf = parsed
	}

	route.Manager.Store(asOf, doc)
	h.opts.Logger.WithFields(logging.RequestFields(RequestID(c), route.Config.Name, id, false)).
		WithField("as_of", asOf).
		Info("object_stored")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":    id,
		"as_of": asOf.UTC().Format(time.RFC3339Nano),
	})
}

func (h *objectHandler) route(c fiber.Ctx) (*KindRoute, bool) {
	return h.opts.Registry.Lookup(c.Params("kind"))
}

func (h *objectHandler) renderFetchError(c fiber.Ctx, fields logrus.Fields, err error) error {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		h.opts.Logger.WithFields(fields).Debug("fetch_cancelled")
		return c.SendStatus(statusClientClosedRequest)
	case errors.As(err, &statusErr):
		h.opts.Logger.WithError(err).WithFields(fields).Warn("upstream_status")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":           "upstream_status",
			"upstream_status": statusErr.StatusCode,
		})
	default:
		h.opts.Logger.WithError(err).WithFields(fields).Error("fetch_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "fetch_failed"})
	}
}

func renderKindNotFound(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "kind_not_found"})
}

// splitIDs 解析逗号分隔的 id 列表，去除空白与重复项并保持顺序。
func splitIDs(raw string) []string {
	var ids []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
