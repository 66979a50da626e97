package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jhoicas/tagtrack-api/internal/domain"
)

// NormalizeLot forma canónica de un lote: sin espacios y en mayúsculas. Es la que se
// guarda en la unidad y la que usan FormatUID y los filtros por lote.
func NormalizeLot(lot string) string {
	return strings.ToUpper(strings.TrimSpace(lot))
}

// FormatUID arma el UID legible <LOTE>-<SECUENCIA de 6 dígitos>.
func FormatUID(lot string, seq int) string {
	return fmt.Sprintf("%s-%06d", NormalizeLot(lot), seq)
}

// ParseUID separa lote y secuencia de un UID generado con FormatUID.
func ParseUID(uid string) (lot string, seq int, err error) {
	i := strings.LastIndex(uid, "-")
	if i <= 0 || i == len(uid)-1 {
		return "", 0, fmt.Errorf("uid %q: %w", uid, domain.ErrInvalidInput)
	}
	seq, err = strconv.Atoi(uid[i+1:])
	if err != nil || seq < 0 {
		return "", 0, fmt.Errorf("uid %q: %w", uid, domain.ErrInvalidInput)
	}
	return uid[:i], seq, nil
}
