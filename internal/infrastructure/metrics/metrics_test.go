package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/metrics"
)

func TestResult(t *testing.T) {
	cases := map[string]error{
		"ok":                 nil,
		"not_found":          fmt.Errorf("x: %w", domain.ErrNotFound),
		"invalid_transition": &domain.TransitionError{From: "rma", To: "available"},
		"conflict":           domain.ErrConcurrencyConflict,
		"no_stock":           domain.ErrNoStock,
		"test_failure":       domain.ErrTestFailure,
		"partial":            &domain.PartialFailureError{},
		"invalid_input":      domain.ErrInvalidInput,
		"duplicate":          domain.ErrDuplicate,
		"error":              errors.New("db caída"),
	}
	for want, err := range cases {
		assert.Equal(t, want, metrics.Result(err))
	}
}

func TestObserveOperation(t *testing.T) {
	m := metrics.New()
	m.ObserveOperation("reserve", time.Now(), nil)
	m.ObserveOperation("reserve", time.Now(), domain.ErrNoStock)
	m.ObserveOperation("reserve", time.Now(), nil)

	n, err := testutil.GatherAndCount(m.Registry(), "tagtrack_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "una serie por resultado")

	expected := `
# HELP tagtrack_operations_total Operaciones del motor de custodia por resultado.
# TYPE tagtrack_operations_total counter
tagtrack_operations_total{operation="reserve",result="no_stock"} 1
tagtrack_operations_total{operation="reserve",result="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tagtrack_operations_total"))
}

func TestEventHandlerYEndpoint(t *testing.T) {
	m := metrics.New()
	h := m.EventHandler()
	require.NoError(t, h(context.Background(), entity.Event{Type: entity.EventInventoryAssigned}))
	require.NoError(t, h(context.Background(), entity.Event{Type: entity.EventInventoryAssigned}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `tagtrack_events_published_total{type="inventory.assigned"} 2`)
}
