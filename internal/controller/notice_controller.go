package controller

import (
	"context"
	"encoding/json"
	"time"

	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/pkg/serverutils"
	internalWS "leadgen-sync/internal/websocket"
	"leadgen-sync/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventHandler consumes a realtime feed event, as the NATS subscriber does.
type EventHandler interface {
	HandleEvent(ctx context.Context, event events.Event) error
}

type INoticeController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	TriggerEvent(ctx *fiber.Ctx) error
}

type noticeController struct {
	hub     *internalWS.Hub
	feed    EventHandler
	session serverutils.SessionChecker
	logger  logger.ILogger
}

func NewNoticeController(hub *internalWS.Hub, feed EventHandler, session serverutils.SessionChecker, log logger.ILogger) INoticeController {
	return &noticeController{
		hub:     hub,
		feed:    feed,
		session: session,
		logger:  log,
	}
}

func (c *noticeController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/notices")
	h.Use(serverutils.SessionRequired(c.session))
	h.Get("/ws", c.Stream)
	h.Post("/debug/trigger", c.TriggerEvent)
}

func (c *noticeController) Stream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	userId, _ := ctx.Locals("user_id").(string)
	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("NoticeController", "Starting WebSocket session", map[string]interface{}{"user_id": userId})
		internalWS.ServeWs(c.hub, conn)
		c.logger.Info("NoticeController", "WebSocket session ended", map[string]interface{}{"user_id": userId})
	})(ctx)
}

// TriggerEvent feeds a hand-written event through the same path as the
// realtime feed.
func (c *noticeController) TriggerEvent(ctx *fiber.Ctx) error {
	var req struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		req.Type = events.LeadCreated
	}

	event := events.BaseEvent{Type: req.Type, Data: req.Payload, OccurredAt: time.Now().UTC()}
	if err := c.feed.HandleEvent(ctx.UserContext(), event); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Event handled", nil))
}
