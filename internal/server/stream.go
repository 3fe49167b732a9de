package server

import (
	"bufio"
	"bytes"
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/localdata/internal/localdata"
	"github.com/any-hub/localdata/internal/logging"
	"github.com/any-hub/localdata/internal/upstream"
)

const (
	eventCached = "cached"
	eventUpdate = "update"
)

// stream 以 SSE 推送对象更新：先回放缓存快照（cached），之后推送每次被接受的写入（update）。
// 订阅在客户端断开或服务关闭时结束。
func (h *objectHandler) stream(c fiber.Ctx) error {
	route, ok := h.route(c)
	if !ok {
		return renderKindNotFound(c)
	}
	id := c.Params("id")
	fields := logging.RequestFields(RequestID(c), route.Config.Name, id, true)

	ctx, cancel := context.WithCancel(h.opts.BaseContext)
	sub := route.Manager.Subscribe(ctx, id)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.opts.Logger
	heartbeat := h.opts.Heartbeat
	logger.WithFields(fields).Debug("stream_opened")

	err := c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		writeEvents(ctx, w, sub.Updates(), heartbeat)
		logger.WithFields(fields).Debug("stream_closed")
	})
	if err != nil {
		cancel()
	}
	return err
}

// writeEvents 将订阅更新写成 SSE 事件，直到 ctx 结束或写入失败（客户端断开）。
func writeEvents(ctx context.Context, w *bufio.Writer, updates <-chan localdata.Update[upstream.Document], heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			name := eventUpdate
			if update.WasCached {
				name = eventCached
			}
			if _, err := w.Write(formatEvent(name, update.Object.Raw)); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// formatEvent 按 SSE 格式编码事件；多行负载拆分为多条 data 行。
func formatEvent(name string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteByte('\n')
	for _, line := range bytes.Split(bytes.TrimRight(payload, "\r\n"), []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimRight(line, "\r"))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
