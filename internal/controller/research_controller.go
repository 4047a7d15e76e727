package controller

import (
	"io"

	"github.com/OussamaSEBROU/the-senctuary/internal/dto"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/serverutils"
	"github.com/OussamaSEBROU/the-senctuary/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	GetAllConversations(ctx *fiber.Ctx) error
	SelectConversation(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
}

type researchController struct {
	service service.IResearchService
}

func NewResearchController(service service.IResearchService) IResearchController {
	return &researchController{service: service}
}

func (c *researchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/research/v1")
	h.Post("/upload", c.Upload)
	h.Post("/chat", c.Chat)
	h.Get("/session", c.GetSession)
	h.Get("/conversations", c.GetAllConversations)
	h.Post("/conversations/:id/select", c.SelectConversation)
	h.Delete("/conversations/:id", c.DeleteConversation)
	h.Post("/reset", c.Reset)
}

func (c *researchController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing 'file' in multipart form")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Could not open uploaded file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Could not read uploaded file")
	}

	locale := ctx.FormValue("locale", "en")

	res, err := c.service.StartResearch(ctx.Context(), fileHeader.Filename, content, locale)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start research", res))
}

func (c *researchController) Chat(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if req.Locale == "" {
		req.Locale = "en"
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *researchController) GetSession(ctx *fiber.Ctx) error {
	res := c.service.GetSession(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *researchController) GetAllConversations(ctx *fiber.Ctx) error {
	res := c.service.ListConversations(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Success get all conversations", res))
}

func (c *researchController) SelectConversation(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	res, err := c.service.SelectConversation(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select conversation", res))
}

func (c *researchController) DeleteConversation(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}

	if err := c.service.DeleteConversation(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}

func (c *researchController) Reset(ctx *fiber.Ctx) error {
	c.service.Reset(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse[any]("Success reset session", nil))
}
