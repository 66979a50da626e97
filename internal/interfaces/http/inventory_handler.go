package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/tagtrack-api/internal/application/dto"
	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// InventoryHandler maneja recepción, pruebas, reservas, instalación y lotes (protegido).
type InventoryHandler struct {
	units        *inventory.UnitUseCase
	reservations *inventory.ReservationUseCase
	quarantine   *inventory.QuarantineUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(units *inventory.UnitUseCase, reservations *inventory.ReservationUseCase, quarantine *inventory.QuarantineUseCase) *InventoryHandler {
	return &InventoryHandler{units: units, reservations: reservations, quarantine: quarantine}
}

// Receive godoc
// @Summary      Recibir una unidad en un hub
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiveUnitRequest  true  "uid, kind (tag|nfc_chip), lot, hub_id"
// @Success      201   {object}  dto.UnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.ReceiveUnitRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	unit, err := h.units.Receive(c.Context(), inventory.ReceiveInput{
		UID:         in.UID,
		Kind:        entity.UnitKind(in.Kind),
		Lot:         in.Lot,
		HubID:       hubOrDefault(c, in.HubID),
		TestResults: in.TestResults.ToEntity(),
		ActorID:     userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUnitResponse(unit))
}

// ReceiveBatch godoc
// @Summary      Recibir un lote completo (UIDs LOTE-SEQ)
// @Description  Todo o nada: si un UID ya existe no se crea ninguna unidad.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiveBatchRequest  true  "lot, hub_id, kind, count, first_sequence"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/batch [post]
func (h *InventoryHandler) ReceiveBatch(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.ReceiveBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	units, err := h.units.ReceiveBatch(c.Context(), inventory.ReceiveBatchInput{
		Lot:           in.Lot,
		HubID:         hubOrDefault(c, in.HubID),
		Kind:          entity.UnitKind(in.Kind),
		Count:         in.Count,
		FirstSequence: in.FirstSequence,
		TestResults:   in.TestResults.ToEntity(),
		ActorID:       userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"total": len(units),
		"units": dto.NewUnitList(units),
	})
}

// GetUnit godoc
// @Summary      Obtener unidad por UID
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        uid  path  string  true  "UID de la unidad"
// @Success      200  {object}  dto.UnitResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid} [get]
func (h *InventoryHandler) GetUnit(c *fiber.Ctx) error {
	unit, err := h.units.Get(c.Context(), c.Params("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// History godoc
// @Summary      Historial de auditoría de una unidad
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        uid  path  string  true  "UID de la unidad"
// @Success      200  {array}   dto.AuditEntryResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/history [get]
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	entries, err := h.units.History(c.Context(), c.Params("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewHistory(entries))
}

// VerifyHistory godoc
// @Summary      Reproducir la auditoría y compararla con el estado actual
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        uid  path  string  true  "UID de la unidad"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/verify [get]
func (h *InventoryHandler) VerifyHistory(c *fiber.Ctx) error {
	replayed, err := h.units.VerifyHistory(c.Context(), c.Params("uid"))
	if errors.Is(err, domain.ErrNotFound) {
		return respondError(c, err)
	}
	body := fiber.Map{"uid": c.Params("uid"), "replayed_status": replayed, "consistent": err == nil}
	if err != nil {
		body["detail"] = err.Error()
	}
	return c.JSON(body)
}

// ListByHub godoc
// @Summary      Listar unidades de un hub
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        hubId   path   string  true   "Hub"
// @Param        status  query  string  false  "Filtrar por estado"
// @Param        limit   query  int     false  "Límite (default 20, máx 100)"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/hubs/{hubId}/units [get]
func (h *InventoryHandler) ListByHub(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.DefaultPage()
	status := entity.UnitStatus(c.Query("status"))
	if status != "" && !knownStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "estado desconocido"})
	}
	units, err := h.units.ListByHub(c.Context(), c.Params("hubId"), status, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"units": dto.NewUnitList(units),
		"page":  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

func knownStatus(s entity.UnitStatus) bool {
	for _, st := range entity.AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// RecordTests godoc
// @Summary      Registrar resultado de pruebas de lectura/escritura
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uid   path  string              true  "UID de la unidad"
// @Param        body  body  dto.TestResultsDTO  true  "read_passed, write_passed, notes"
// @Success      200   {object}  dto.UnitResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/tests [post]
func (h *InventoryHandler) RecordTests(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.TestResultsDTO
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	unit, err := h.units.RecordTestResults(c.Context(), c.Params("uid"), *in.ToEntity(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// Reserve godoc
// @Summary      Reservar una unidad para un envío
// @Description  Sin uid se asigna la unidad elegible más antigua del hub (FIFO).
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReserveRequest  true  "hub_id, shipment_id, uid opcional"
// @Success      201   {object}  dto.UnitResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/inventory/reservations [post]
func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.ReserveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	unit, err := h.reservations.Reserve(c.Context(), inventory.ReserveInput{
		UID:        in.UID,
		HubID:      hubOrDefault(c, in.HubID),
		Lot:        in.Lot,
		Kind:       entity.UnitKind(in.Kind),
		ShipmentID: in.ShipmentID,
		ActorID:    userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUnitResponse(unit))
}

// Install godoc
// @Summary      Instalar una unidad asignada
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uid   path  string              true  "UID de la unidad"
// @Param        body  body  dto.InstallRequest  true  "hub_id, test_results (NFC)"
// @Success      200   {object}  dto.UnitResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/install [post]
func (h *InventoryHandler) Install(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.InstallRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	unit, err := h.reservations.Install(c.Context(), inventory.InstallInput{
		UID:         c.Params("uid"),
		HubID:       hubOrDefault(c, in.HubID),
		TestResults: in.TestResults.ToEntity(),
		ActorID:     userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// Release godoc
// @Summary      Liberar una unidad asignada de vuelta a stock
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uid   path  string             true  "UID de la unidad"
// @Param        body  body  dto.ReasonRequest  false "reason"
// @Success      200   {object}  dto.UnitResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/release [post]
func (h *InventoryHandler) Release(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	in, err := reasonBody(c)
	if err != nil {
		return badBody(c)
	}
	unit, err := h.reservations.Release(c.Context(), inventory.ReleaseInput{
		UID: c.Params("uid"), Reason: in.Reason, ActorID: userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// MarkDefective godoc
// @Summary      Marcar una unidad como defectuosa
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uid   path  string             true  "UID de la unidad"
// @Param        body  body  dto.ReasonRequest  true  "reason"
// @Success      200   {object}  dto.UnitResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/defective [post]
func (h *InventoryHandler) MarkDefective(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	in, err := reasonBody(c)
	if err != nil {
		return badBody(c)
	}
	unit, err := h.units.MarkDefective(c.Context(), c.Params("uid"), in.Reason, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// InitiateRMA godoc
// @Summary      Iniciar RMA (estado terminal)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        uid   path  string             true  "UID de la unidad"
// @Param        body  body  dto.ReasonRequest  true  "reason"
// @Success      200   {object}  dto.UnitResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/units/{uid}/rma [post]
func (h *InventoryHandler) InitiateRMA(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	in, err := reasonBody(c)
	if err != nil {
		return badBody(c)
	}
	unit, err := h.units.InitiateRMA(c.Context(), c.Params("uid"), in.Reason, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewUnitResponse(unit))
}

// QuarantineLot godoc
// @Summary      Poner en cuarentena un lote
// @Description  Unidades available/assigned del lote pasan a defective. 207 si alguna falló.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        lot   path  string             true  "Lote"
// @Param        body  body  dto.ReasonRequest  true  "reason, hub_id opcional"
// @Success      200   {object}  dto.LotResultResponse
// @Success      207   {object}  dto.PartialFailureResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/lots/{lot}/quarantine [post]
func (h *InventoryHandler) QuarantineLot(c *fiber.Ctx) error {
	return h.lot(c, h.quarantine.QuarantineLot)
}

// LiftQuarantine godoc
// @Summary      Levantar la cuarentena de un lote
// @Description  Solo vuelven a available las unidades con marca de cuarentena.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        lot   path  string             true  "Lote"
// @Param        body  body  dto.ReasonRequest  false "reason, hub_id opcional"
// @Success      200   {object}  dto.LotResultResponse
// @Success      207   {object}  dto.PartialFailureResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/lots/{lot}/lift [post]
func (h *InventoryHandler) LiftQuarantine(c *fiber.Ctx) error {
	return h.lot(c, h.quarantine.LiftQuarantine)
}

func (h *InventoryHandler) lot(c *fiber.Ctx, op func(ctx context.Context, in inventory.LotInput) (*inventory.LotResult, error)) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	in, err := reasonBody(c)
	if err != nil {
		return badBody(c)
	}
	result, err := op(c.Context(), inventory.LotInput{
		Lot: c.Params("lot"), HubID: in.HubID, Reason: in.Reason, ActorID: userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewLotResult(result))
}

// reasonBody el body es opcional en las operaciones que solo llevan motivo.
func reasonBody(c *fiber.Ctx) (dto.ReasonRequest, error) {
	var in dto.ReasonRequest
	if len(c.Body()) == 0 {
		return in, nil
	}
	err := c.BodyParser(&in)
	return in, err
}
