package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/tagtrack-api/internal/application/dto"
	"github.com/jhoicas/tagtrack-api/internal/domain"
)

// respondError traduce errores de dominio a códigos HTTP.
func respondError(c *fiber.Ctx, err error) error {
	var partial *domain.PartialFailureError
	if errors.As(err, &partial) {
		return c.Status(fiber.StatusMultiStatus).JSON(partialBody(partial))
	}
	status, code := classify(err)
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict, "CONCURRENCY_CONFLICT"
	case errors.Is(err, domain.ErrNoStock):
		return fiber.StatusConflict, "NO_STOCK"
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrTestFailure):
		return fiber.StatusUnprocessableEntity, "TEST_FAILURE"
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	default:
		return fiber.StatusInternalServerError, "INTERNAL"
	}
}

func partialBody(p *domain.PartialFailureError) dto.PartialFailureResponse {
	failed := make([]dto.UnitFailureDTO, 0, len(p.Failed))
	for _, f := range p.Failed {
		failed = append(failed, dto.UnitFailureDTO{UID: f.UID, Error: f.Err.Error()})
	}
	succeeded := p.Succeeded
	if succeeded == nil {
		succeeded = []string{}
	}
	return dto.PartialFailureResponse{
		Code:      "PARTIAL_FAILURE",
		Message:   domain.ErrPartialFailure.Error(),
		Succeeded: succeeded,
		Failed:    failed,
	}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

// hubOrDefault usa el hub del body y, si viene vacío, el del token.
func hubOrDefault(c *fiber.Ctx, hubID string) string {
	if hubID != "" {
		return hubID
	}
	return GetHubID(c)
}
