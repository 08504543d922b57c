package controller

import (
	"campus-market-be/internal/dto"
	"campus-market-be/internal/entity"
	"campus-market-be/internal/pkg/serverutils"
	"campus-market-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	StartChat(ctx *fiber.Ctx) error
	ListConversations(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Feed(ctx *fiber.Ctx) error
	SetTyping(ctx *fiber.Ctx) error
	ClearTyping(ctx *fiber.Ctx) error
	DeleteChat(ctx *fiber.Ctx) error
}

type chatController struct {
	chat          service.IChatService
	conversations service.IConversationService
}

func NewChatController(chat service.IChatService, conversations service.IConversationService) IChatController {
	return &chatController{chat: chat, conversations: conversations}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/sessions", c.ListConversations)
	h.Post("/sessions", c.StartChat)
	h.Get("/sessions/:id/messages", c.History)
	h.Post("/sessions/:id/messages", c.SendMessage)
	h.Get("/sessions/:id/feed", c.Feed)
	h.Post("/sessions/:id/typing", c.SetTyping)
	h.Delete("/sessions/:id/typing", c.ClearTyping)
	h.Delete("/sessions/:id", c.DeleteChat)
}

func currentParticipant(ctx *fiber.Ctx) entity.Participant {
	p := entity.Participant{}
	if id, ok := ctx.Locals("user_id").(string); ok {
		p.Id = id
	}
	if name, ok := ctx.Locals("user_name").(string); ok {
		p.Name = name
	}
	return p
}

func (c *chatController) StartChat(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)

	var req dto.StartChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chat.StartChat(ctx.Context(), current, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start chat", res))
}

func (c *chatController) ListConversations(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)

	res, err := c.conversations.List(ctx.Context(), current.Id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chat.SendMessage(ctx.Context(), sessionId, current, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) History(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	res, err := c.chat.History(ctx.Context(), sessionId, current.Id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

// Feed returns the render-ready item list: date separators interleaved
// with message rows, avatar visibility precomputed.
func (c *chatController) Feed(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	res, err := c.chat.Feed(ctx.Context(), sessionId, current.Id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get feed", res))
}

func (c *chatController) SetTyping(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	if err := c.chat.SetTyping(ctx.Context(), sessionId, current, true); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success set typing", nil))
}

func (c *chatController) ClearTyping(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	if err := c.chat.SetTyping(ctx.Context(), sessionId, current, false); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear typing", nil))
}

func (c *chatController) DeleteChat(ctx *fiber.Ctx) error {
	current := currentParticipant(ctx)
	sessionId := ctx.Params("id")

	if err := c.chat.DeleteChat(ctx.Context(), sessionId, current.Id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete chat", nil))
}
