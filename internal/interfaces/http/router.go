package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	UnitUC        *inventory.UnitUseCase
	ReservationUC *inventory.ReservationUseCase
	QuarantineUC  *inventory.QuarantineUseCase
	TransferUC    *inventory.TransferUseCase
	Metrics       nethttp.Handler // opcional; expone /metrics
	JWTSecret     string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	// Rutas protegidas (requieren Bearer Token)
	inv := app.Group("/api/inventory", AuthMiddleware(deps.JWTSecret))
	operators := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)
	quality := RequireRole(jwt.RoleAdmin, jwt.RoleCalidad)

	h := NewInventoryHandler(deps.UnitUC, deps.ReservationUC, deps.QuarantineUC)
	inv.Post("/units", operators, h.Receive)
	inv.Post("/units/batch", operators, h.ReceiveBatch)
	inv.Get("/units/:uid", h.GetUnit)
	inv.Get("/units/:uid/history", h.History)
	inv.Get("/units/:uid/verify", h.VerifyHistory)
	inv.Get("/hubs/:hubId/units", h.ListByHub)
	inv.Post("/units/:uid/tests", quality, h.RecordTests)
	inv.Post("/units/:uid/install", operators, h.Install)
	inv.Post("/units/:uid/release", operators, h.Release)
	inv.Post("/units/:uid/defective", quality, h.MarkDefective)
	inv.Post("/units/:uid/rma", quality, h.InitiateRMA)
	inv.Post("/reservations", operators, h.Reserve)

	// Cuarentena por lote
	inv.Post("/lots/:lot/quarantine", quality, h.QuarantineLot)
	inv.Post("/lots/:lot/lift", quality, h.LiftQuarantine)

	// Traslados entre hubs
	th := NewTransferHandler(deps.TransferUC)
	inv.Post("/transfers", operators, th.Initiate)
	inv.Get("/transfers/:id", th.GetByID)
	inv.Post("/transfers/:id/complete", operators, th.Complete)
	inv.Post("/transfers/:id/cancel", operators, th.Cancel)
}
