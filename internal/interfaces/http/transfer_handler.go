package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/tagtrack-api/internal/application/dto"
	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// TransferHandler maneja traslados entre hubs (protegido).
type TransferHandler struct {
	uc *inventory.TransferUseCase
}

// NewTransferHandler construye el handler.
func NewTransferHandler(uc *inventory.TransferUseCase) *TransferHandler {
	return &TransferHandler{uc: uc}
}

// Initiate godoc
// @Summary      Iniciar traslado entre hubs
// @Description  uids explícitos o quantity (FIFO del hub origen). Todo o nada.
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.InitiateTransferRequest  true  "from_hub_id, to_hub_id, uids | quantity"
// @Success      201   {object}  dto.TransferResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers [post]
func (h *TransferHandler) Initiate(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.InitiateTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.uc.Initiate(c.Context(), inventory.InitiateTransferInput{
		FromHubID: hubOrDefault(c, in.FromHubID),
		ToHubID:   in.ToHubID,
		UIDs:      in.UIDs,
		Quantity:  in.Quantity,
		Lot:       in.Lot,
		Kind:      entity.UnitKind(in.Kind),
		Reason:    in.Reason,
		ETA:       in.ETA,
		ActorID:   userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTransferResponse(t))
}

// GetByID godoc
// @Summary      Obtener traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del traslado"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers/{id} [get]
func (h *TransferHandler) GetByID(c *fiber.Ctx) error {
	t, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewTransferResponse(t))
}

// Complete godoc
// @Summary      Registrar llegada (total o parcial) al hub destino
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true  "ID del traslado"
// @Param        body  body  dto.CompleteTransferRequest  true  "to_hub_id, arrived_uids (vacío = todas)"
// @Success      200   {object}  dto.TransferResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers/{id}/complete [post]
func (h *TransferHandler) Complete(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CompleteTransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	t, err := h.uc.Complete(c.Context(), inventory.CompleteTransferInput{
		TransferID:  c.Params("id"),
		ToHubID:     hubOrDefault(c, in.ToHubID),
		ArrivedUIDs: in.ArrivedUIDs,
		ActorID:     userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewTransferResponse(t))
}

// Cancel godoc
// @Summary      Cancelar unidades pendientes de un traslado
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true   "ID del traslado"
// @Param        body  body  dto.CancelTransferRequest  false  "uids (vacío = todas), reason"
// @Success      200   {object}  dto.TransferResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return unauthorized(c)
	}
	var in dto.CancelTransferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	t, err := h.uc.Cancel(c.Context(), inventory.CancelTransferInput{
		TransferID: c.Params("id"),
		UIDs:       in.UIDs,
		Reason:     in.Reason,
		ActorID:    userID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewTransferResponse(t))
}
