package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"chitcam/internal/apperr"
	"chitcam/internal/dto"
	"chitcam/internal/logger"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 16

// statusFor maps an error kind to the HTTP status returned to the client.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Busy, apperr.NotReady:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.DeviceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.InvalidArgument, apperr.UnsupportedEncoding:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError reports err as a JSON body. Server side failures are logged.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	writeJSON(w, logger, status, dto.ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.New(apperr.InvalidArgument, "handler.decode", err)
	}
	return nil
}
