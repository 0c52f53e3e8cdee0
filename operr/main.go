package operr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jaz303/operation"
)

var (
	ErrInputMappingFailed = errors.New("input mapping failed")
	ErrOperationFailed    = errors.New("operation failed")
)

// DefaultErrorMapper writes err to w as a JSON error document. Cancelled
// operations map to 409 Conflict; everything else maps to 500.
func DefaultErrorMapper(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if _, ok := operation.AsCancel(err); ok {
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Error(),
	})
}
