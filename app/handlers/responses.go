package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/medicore/hospital-portal/app/dto"
	"github.com/medicore/hospital-portal/app/errors"
)

// writeJSON writes a JSON success response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes an error response in a consistent format.
// Cooldown errors carry a Retry-After header so clients can run a countdown.
func writeErrorResponse(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	w.WriteHeader(appErr.Status)

	errResp := dto.ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Message: appErr.Message,
	}

	json.NewEncoder(w).Encode(errResp)
}
