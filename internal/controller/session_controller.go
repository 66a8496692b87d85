package controller

import (
	"leadgen-sync/internal/dto"
	"leadgen-sync/internal/pkg/serverutils"
	"leadgen-sync/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
	SignIn(ctx *fiber.Ctx) error
	SignOut(ctx *fiber.Ctx) error
	CompleteOnboarding(ctx *fiber.Ctx) error
	ResetOnboarding(ctx *fiber.Ctx) error
}

type sessionController struct {
	session service.ISessionCoordinator
}

func NewSessionController(session service.ISessionCoordinator) ISessionController {
	return &sessionController{session: session}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session")
	h.Get("", c.Show)
	h.Post("/sign-in", c.SignIn)
	h.Post("/sign-out", c.SignOut)

	o := r.Group("/onboarding")
	o.Use(serverutils.SessionRequired(c.session))
	o.Post("/complete", c.CompleteOnboarding)
	o.Post("/reset", c.ResetOnboarding)
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	c.session.Initialize(ctx.UserContext())
	c.session.EnsureOnboardingChecked(ctx.UserContext())

	return ctx.JSON(serverutils.SuccessResponse("Success get session", c.session.Snapshot()))
}

func (c *sessionController) SignIn(ctx *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := c.session.SignIn(ctx.UserContext(), req.Email, req.Password); err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Signed in", c.session.Snapshot()))
}

// SignOut answers 200 even when the remote sign-out failed; the local session
// is gone either way.
func (c *sessionController) SignOut(ctx *fiber.Ctx) error {
	message := "Signed out"
	if err := c.session.SignOut(ctx.UserContext()); err != nil {
		message = "Signed out locally; remote sign-out failed: " + err.Error()
	}
	return ctx.JSON(serverutils.SuccessResponse(message, c.session.Snapshot()))
}

func (c *sessionController) CompleteOnboarding(ctx *fiber.Ctx) error {
	if err := c.session.MarkOnboardingComplete(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Onboarding completed", c.session.Snapshot()))
}

func (c *sessionController) ResetOnboarding(ctx *fiber.Ctx) error {
	if err := c.session.ResetOnboarding(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Onboarding reset", c.session.Snapshot()))
}
