package hubspot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the CRM.
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message"`
	Category      string `json:"category,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (e *APIError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("hubspot: %d %s: %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("hubspot: %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the upstream HTTP status, or 0 when err did not come from a response.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	ae := &APIError{}
	if err := json.Unmarshal(raw, ae); err != nil || ae.Message == "" {
		ae.Message = strings.TrimSpace(string(raw))
		if ae.Message == "" {
			ae.Message = http.StatusText(resp.StatusCode)
		}
	}
	ae.StatusCode = resp.StatusCode
	return ae
}
