package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"crm-bridge/internal/apperr"
	"crm-bridge/internal/calls"
	"crm-bridge/internal/crm"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call the forwarder, return JSON. Failures go to c.Error.
type Handlers struct {
	CRM   *crm.Service
	Calls *calls.Tracker

	// Environment is echoed by the health check.
	Environment string

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperr.Validation("Invalid request body"))
		return false
	}
	return true
}

// --- Health ---

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// Health never touches the CRM.
func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   crm.FormatTimestamp(h.now()),
		Environment: h.Environment,
	})
}

// --- CRM ---

func (h Handlers) TestConnection(c *gin.Context) {
	res, err := h.CRM.TestConnection(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type upsertContactResponse struct {
	Success bool `json:"success"`
	crm.UpsertResult
}

func (h Handlers) UpsertContact(c *gin.Context) {
	var in crm.ContactInput
	if !bind(c, &in) {
		return
	}
	res, err := h.CRM.UpsertContact(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, upsertContactResponse{Success: true, UpsertResult: res})
}

type logCallResponse struct {
	Success bool `json:"success"`
	crm.CallResult
}

func (h Handlers) LogCall(c *gin.Context) {
	var in crm.CallInput
	if !bind(c, &in) {
		return
	}
	res, err := h.CRM.LogCall(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logCallResponse{Success: true, CallResult: res})
}

func (h Handlers) Stats(c *gin.Context) {
	res, err := h.CRM.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Live calls ---

type startCallRequest struct {
	PhoneNumber string         `json:"phoneNumber"`
	Direction   string         `json:"direction"`
	ContactID   crm.FlexibleID `json:"contactId"`
}

type callResponse struct {
	Success bool       `json:"success"`
	Call    calls.Call `json:"call"`
}

// StartCall begins timing a call so its duration can be measured on EndCall.
func (h Handlers) StartCall(c *gin.Context) {
	var req startCallRequest
	if !bind(c, &req) {
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		fail(c, apperr.Validation("phoneNumber is required"))
		return
	}
	dir := strings.ToLower(strings.TrimSpace(req.Direction))
	if dir != "inbound" && dir != "outbound" {
		fail(c, apperr.Validation("direction must be one of inbound, outbound"))
		return
	}

	call := h.Calls.Start(phone, dir, string(req.ContactID))
	c.JSON(http.StatusCreated, callResponse{Success: true, Call: call})
}

type endCallRequest struct {
	Notes     string         `json:"notes"`
	Outcome   string         `json:"outcome"`
	ContactID crm.FlexibleID `json:"contactId"`
}

type endCallResponse struct {
	Success bool       `json:"success"`
	Call    calls.Call `json:"call"`
	crm.CallResult
}

// GetCall reports a tracked call.
func (h Handlers) GetCall(c *gin.Context) {
	call, ok := h.Calls.Get(c.Param("id"))
	if !ok {
		fail(c, apperr.Validation("Call not found"))
		return
	}
	c.JSON(http.StatusOK, callResponse{Success: true, Call: call})
}

// EndCall stops a live call and logs it to the CRM with the measured duration.
// The call is only forgotten once the CRM accepted it; after a failure it stays
// tracked with its original duration so the client can retry.
func (h Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}

	id := c.Param("id")
	call, err := h.Calls.Stop(id)
	switch {
	case errors.Is(err, calls.ErrNotFound):
		fail(c, apperr.Validation("Call not found"))
		return
	case errors.Is(err, calls.ErrEnding):
		fail(c, apperr.Validation("Call is already being ended"))
		return
	case err != nil:
		fail(c, err)
		return
	}

	contactID := req.ContactID
	if contactID == "" {
		contactID = crm.FlexibleID(call.ContactID)
	}
	duration := float64(call.DurationSeconds)
	res, err := h.CRM.LogCall(c.Request.Context(), crm.CallInput{
		ContactID: contactID,
		Duration:  &duration,
		Notes:     req.Notes,
		Direction: call.Direction,
		Outcome:   req.Outcome,
	})
	if err != nil {
		h.Calls.Release(id)
		fail(c, err)
		return
	}
	h.Calls.Remove(id)
	c.JSON(http.StatusOK, endCallResponse{Success: true, Call: call, CallResult: res})
}
