package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-bridge/internal/apperr"
	"crm-bridge/internal/calls"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperr.Middleware(false))
	r.GET("/health", h.Health)
	r.POST("/calls/start", h.StartCall)
	r.GET("/calls/:id", h.GetCall)
	r.POST("/calls/:id/end", h.EndCall)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	r := newRouter(Handlers{Environment: "production", Now: func() time.Time { return now }})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, healthResponse{Status: "healthy", Timestamp: "2026-01-02T03:04:05.006Z", Environment: "production"}, body)
}

func TestStartCall_Validation(t *testing.T) {
	r := newRouter(Handlers{Calls: calls.NewTracker()})

	cases := map[string]string{
		`{"direction":"inbound"}`:                    "phoneNumber is required",
		`{"phoneNumber":"1","direction":"sideways"}`: "direction must be one of inbound, outbound",
		`[]`: "Invalid request body",
	}
	for body, msg := range cases {
		w := post(r, "/calls/start", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		var env apperr.Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, msg, env.Error.Message, body)
	}
}

func TestStartCall_TracksCall(t *testing.T) {
	tr := calls.NewTracker()
	r := newRouter(Handlers{Calls: tr})

	w := post(r, "/calls/start", `{"phoneNumber":" +15550100 ","direction":"INBOUND","contactId":42}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp callResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "+15550100", resp.Call.PhoneNumber)
	assert.Equal(t, "inbound", resp.Call.Direction)
	assert.Equal(t, "42", resp.Call.ContactID)
	assert.Equal(t, 1, tr.Active())
}

func TestEndCall_UnknownID(t *testing.T) {
	r := newRouter(Handlers{Calls: calls.NewTracker()})

	w := post(r, "/calls/nope/end", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCall(t *testing.T) {
	tr := calls.NewTracker()
	started := tr.Start("+15550100", "outbound", "")
	r := newRouter(Handlers{Calls: tr})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/"+started.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp callResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, started.ID, resp.Call.ID)
	assert.Equal(t, calls.CallStatusActive, resp.Call.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/calls/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndCall_WhileAnotherEndIsInFlight(t *testing.T) {
	tr := calls.NewTracker()
	started := tr.Start("+15550100", "outbound", "")
	_, err := tr.Stop(started.ID)
	require.NoError(t, err)
	r := newRouter(Handlers{Calls: tr})

	w := post(r, "/calls/"+started.ID+"/end", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var env apperr.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Call is already being ended", env.Error.Message)
}
