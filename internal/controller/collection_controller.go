package controller

import (
	"leadgen-sync/internal/pkg/serverutils"
	"leadgen-sync/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CollectionRoutes names the path of a screen and the two actions that flip
// its flag, e.g. "/leads" with "read"/"unread".
type CollectionRoutes struct {
	Path     string
	SetTrue  string
	SetFalse string
}

type ICollectionController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	SetTrue(ctx *fiber.Ctx) error
	SetFalse(ctx *fiber.Ctx) error
	Acknowledge(ctx *fiber.Ctx) error
}

type collectionController struct {
	screen  service.ICollectionScreen
	session serverutils.SessionChecker
	routes  CollectionRoutes
}

func NewCollectionController(screen service.ICollectionScreen, session serverutils.SessionChecker, routes CollectionRoutes) ICollectionController {
	return &collectionController{
		screen:  screen,
		session: session,
		routes:  routes,
	}
}

func (c *collectionController) RegisterRoutes(r fiber.Router) {
	h := r.Group(c.routes.Path)
	h.Use(serverutils.SessionRequired(c.session))
	h.Get("", c.List)
	h.Post("/acknowledge", c.Acknowledge)
	h.Post("/:id/"+c.routes.SetTrue, c.SetTrue)
	h.Post("/:id/"+c.routes.SetFalse, c.SetFalse)
}

// List refetches unless ?cached=true. A failed fetch is reported inside the
// state, not as an HTTP error.
func (c *collectionController) List(ctx *fiber.Ctx) error {
	var opts service.ViewOptions
	if err := ctx.QueryParser(&opts); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(opts); err != nil {
		return err
	}

	// Both record failures in the state's error; a failed hydration
	// runs again on the next list.
	_ = c.screen.Hydrate(ctx.UserContext())
	if !ctx.QueryBool("cached") {
		_ = c.screen.Refresh(ctx.UserContext())
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get "+string(c.screen.Kind()), c.screen.View(opts)))
}

func (c *collectionController) SetTrue(ctx *fiber.Ctx) error {
	return c.setFlag(ctx, true)
}

func (c *collectionController) SetFalse(ctx *fiber.Ctx) error {
	return c.setFlag(ctx, false)
}

func (c *collectionController) setFlag(ctx *fiber.Ctx, value bool) error {
	id := ctx.Params("id")
	if err := c.screen.SetFlag(ctx.UserContext(), id, value); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success update "+string(c.screen.Flag()), fiber.Map{
		"id":                    id,
		string(c.screen.Flag()): value,
	}))
}

func (c *collectionController) Acknowledge(ctx *fiber.Ctx) error {
	if err := c.screen.Acknowledge(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Acknowledged", nil))
}
