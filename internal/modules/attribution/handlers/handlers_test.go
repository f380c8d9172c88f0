package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() chi.Router {
	handler := NewHandler(zerolog.New(nil).Level(zerolog.Disabled))
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func post(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/api/attribution", bytes.NewBufferString(body)))
	return w
}

func TestHandleAttribute_Linear(t *testing.T) {
	body := `{
		"model": "linear",
		"touchpoints": [
			{"source": "google/cpc", "timestamp": "2026-10-01T00:00:00Z"},
			{"source": "email", "timestamp": "2026-10-02T00:00:00Z"},
			{"source": "direct", "timestamp": "2026-10-03T00:00:00Z"}
		]
	}`
	w := post(t, newRouter(), body)

	require.Equal(t, http.StatusOK, w.Code)

	var response AttributeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "linear", string(response.Model))
	require.Len(t, response.Credits, 3)
	assert.InDelta(t, 1.0, response.Credits.Total(), 1e-4)
	for _, credit := range response.Credits {
		assert.InDelta(t, 0.3333, credit, 0.0001)
	}
}

func TestHandleAttribute_Journeys(t *testing.T) {
	body := `{
		"model": "first_click",
		"precision": 2,
		"journeys": [
			[{"source": "email", "timestamp": "2026-10-01T00:00:00Z"}, {"source": "direct", "timestamp": "2026-10-02T00:00:00Z"}],
			[{"source": "email", "timestamp": "2026-10-01T00:00:00Z"}],
			[{"source": "social", "timestamp": "2026-10-01T00:00:00Z"}],
			[{"source": "email", "timestamp": "2026-10-05T00:00:00Z"}]
		]
	}`
	w := post(t, newRouter(), body)

	require.Equal(t, http.StatusOK, w.Code)

	var response AttributeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 3.0, response.Raw["email"])
	assert.Equal(t, 0.75, response.Credits["email"])
	assert.Equal(t, 0.25, response.Credits["social"])
}

func TestHandleAttribute_EmptyTouchpoints(t *testing.T) {
	w := post(t, newRouter(), `{"model": "time_decay", "touchpoints": []}`)

	require.Equal(t, http.StatusOK, w.Code)

	var response AttributeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Empty(t, response.Credits)
}

func TestHandleAttribute_BadRequests(t *testing.T) {
	router := newRouter()

	assert.Equal(t, http.StatusBadRequest, post(t, router, `{"model": "u_shaped"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, router, `{"model": "time_decay", "half_life_hours": -1}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, router, `not json`).Code)
}

func TestHandleAttribute_PrecisionBounds(t *testing.T) {
	router := newRouter()
	touchpoints := `"touchpoints": [{"source": "email", "timestamp": "2026-10-01T00:00:00Z"}, {"source": "direct", "timestamp": "2026-10-02T00:00:00Z"}, {"source": "social", "timestamp": "2026-10-03T00:00:00Z"}]`

	for _, precision := range []int{-1, 16, 400} {
		w := post(t, router, fmt.Sprintf(`{"model": "linear", "precision": %d, %s}`, precision, touchpoints))
		assert.Equal(t, http.StatusBadRequest, w.Code, "precision %d", precision)
	}

	for _, precision := range []int{0, 15} {
		w := post(t, router, fmt.Sprintf(`{"model": "linear", "precision": %d, %s}`, precision, touchpoints))
		require.Equal(t, http.StatusOK, w.Code, "precision %d", precision)

		var response AttributeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Len(t, response.Credits, 3)
	}
}

func TestHandleAttribute_HalfLifeOverflow(t *testing.T) {
	router := newRouter()
	body := `{"model": "time_decay", "half_life_hours": 1e300, "touchpoints": [{"source": "email", "timestamp": "2026-10-01T00:00:00Z"}]}`

	assert.Equal(t, http.StatusBadRequest, post(t, router, body).Code)

	// A year-long half-life still fits
	ok := `{"model": "time_decay", "half_life_hours": 8760, "touchpoints": [{"source": "email", "timestamp": "2026-10-01T00:00:00Z"}]}`
	assert.Equal(t, http.StatusOK, post(t, router, ok).Code)
}
