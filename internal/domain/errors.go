package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrTestFailure         = errors.New("la unidad no pasó las pruebas de lectura/escritura")
	ErrNoStock             = errors.New("no hay unidades disponibles")
	ErrConcurrencyConflict = errors.New("la unidad fue modificada por otra operación")
	ErrPartialFailure      = errors.New("la operación se aplicó solo a una parte de las unidades")
)

// TransitionError describe un intento de mover una unidad por una arista fuera de la máquina de estados.
type TransitionError struct {
	UID  string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition.Error(), e.From, e.To)
	}
	return fmt.Sprintf("%s: %s (%s -> %s)", ErrInvalidTransition.Error(), e.UID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UnitFailure error de una unidad concreta dentro de una operación masiva.
type UnitFailure struct {
	UID string
	Err error
}

// PartialFailureError lo devuelven las operaciones masivas (cuarentena, traslados)
// cuando alguna unidad no pudo procesarse. Succeeded lista las que sí se aplicaron.
type PartialFailureError struct {
	Succeeded []string
	Failed    []UnitFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.UID, f.Err))
	}
	return fmt.Sprintf("%s (%d ok, %d con error): %s",
		ErrPartialFailure.Error(), len(e.Succeeded), len(e.Failed), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// FailedUIDs devuelve solo los UIDs que fallaron.
func (e *PartialFailureError) FailedUIDs() []string {
	out := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.UID)
	}
	return out
}
