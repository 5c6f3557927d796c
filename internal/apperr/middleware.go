package apperr

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Body is the error half of the response envelope.
type Body struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Stack   string `json:"stack,omitempty"`
}

// Envelope is the JSON shape of every error response.
type Envelope struct {
	Success bool `json:"success"`
	Error   Body `json:"error"`
}

// NewEnvelope renders err. The stack is only attached when withStack is set.
func NewEnvelope(err error, withStack bool) (int, Envelope) {
	ae := From(err)
	env := Envelope{Error: Body{Message: ae.Message, Status: ae.Status}}
	if withStack {
		env.Error.Stack = ae.Stack()
	}
	return ae.Status, env
}

// Middleware is the terminal error handler. Handlers and guards report failures with
// c.Error(...) and return; the last recorded error is rendered once the chain unwinds.
// If the response was already started nothing is written.
func Middleware(withStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, env := NewEnvelope(last.Err, withStack)
		c.AbortWithStatusJSON(status, env)
	}
}

// Recovery turns panics into Generic errors so they are rendered through Middleware.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		_ = c.Error(Generic("Internal server error", fmt.Errorf("panic: %v", rec)))
		c.Abort()
	})
}
