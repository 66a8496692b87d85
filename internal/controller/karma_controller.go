package controller

import (
	"time"

	"leadgen-sync/internal/dto"
	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/serverutils"
	"leadgen-sync/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IKarmaController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
}

type karmaController struct {
	service service.IGenerationService
	session serverutils.SessionChecker
}

func NewKarmaController(service service.IGenerationService, session serverutils.SessionChecker) IKarmaController {
	return &karmaController{
		service: service,
		session: session,
	}
}

func (c *karmaController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/karma")
	h.Use(serverutils.SessionRequired(c.session))
	h.Get("", c.List)
	h.Delete("", c.Clear)
	h.Post("/:kind/generate", c.Generate)
	h.Put("/:kind", c.Update)
}

func (c *karmaController) List(ctx *fiber.Ctx) error {
	res := make([]dto.KarmaEntry, 0, len(entity.GenerationKinds))
	for _, kind := range entity.GenerationKinds {
		cached, _ := c.service.GetCached(ctx.UserContext(), kind)
		res = append(res, dto.KarmaEntry{
			Kind:       kind,
			Generating: c.service.IsGenerating(kind),
			Cached:     cached,
		})
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get karma content", res))
}

// Generate answers 202 when a generation of the same kind is already running.
func (c *karmaController) Generate(ctx *fiber.Ctx) error {
	kind := entity.GenerationKind(ctx.Params("kind"))

	gen, err := c.service.Generate(ctx.UserContext(), kind)
	if err != nil {
		return err
	}
	if gen == nil {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse[*entity.Generation]("Already generating", nil))
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate "+string(kind), gen))
}

func (c *karmaController) Update(ctx *fiber.Ctx) error {
	kind := entity.GenerationKind(ctx.Params("kind"))

	var req dto.UpdateGenerationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	gen := req.ToEntity(kind, time.Now().UTC())
	if err := c.service.UpdateCached(ctx.UserContext(), kind, gen); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update "+string(kind), gen))
}

func (c *karmaController) Clear(ctx *fiber.Ctx) error {
	if err := c.service.ClearCached(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Karma cache cleared", nil))
}
