package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total,omitempty"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnitFailureDTO unidad que falló dentro de una operación masiva.
type UnitFailureDTO struct {
	UID   string `json:"uid"`
	Error string `json:"error"`
}

// PartialFailureResponse cuerpo de 207 Multi-Status.
type PartialFailureResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Succeeded []string         `json:"succeeded"`
	Failed    []UnitFailureDTO `json:"failed"`
}
