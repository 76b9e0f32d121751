package apierror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSON(t *testing.T) {
	err := ValidationError("invalid request", FieldError{Field: "items[0].available", Message: "available is required"})
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "invalid request",
			"details": [{"field": "items[0].available", "message": "available is required"}]
		}
	}`, string(err.ToJSON()))

	assert.JSONEq(t, `{"success":false,"error":{"code":"CONFLICT","message":"busy"}}`, string(Conflict("busy").ToJSON()))
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound(""))
	apiErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Resource not found", apiErr.Message)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}
