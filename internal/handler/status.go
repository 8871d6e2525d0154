package handler

import (
	"net/http"

	"chitcam/internal/logger"
	"chitcam/internal/service"
)

// StatusHandler reports the preview, capture and viewer state.
func StatusHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, manager.Status())
	}
}

// PermissionHandler asks for camera permission again.
func PermissionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		granted, err := manager.RequestPermission(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if !granted {
			logger.Warning("Camera permission request denied")
		}
		writeJSON(w, logger, http.StatusOK, map[string]bool{"granted": granted})
	}
}
