package handler

import (
	"net/http"

	"chitcam/internal/apperr"
	"chitcam/internal/dto"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/service"
)

type previewResponse struct {
	Session       string `json:"session"`
	PreviewHandle string `json:"previewHandle"`
	Lens          string `json:"lens"`
	Flash         string `json:"flash"`
}

func parsePreviewRequest(r *http.Request) (model.LensFacing, model.FlashMode, error) {
	var req dto.PreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, 0, err
	}
	lens, err := model.ParseLensFacing(req.Lens)
	if err != nil {
		return 0, 0, apperr.New(apperr.InvalidArgument, "handler.preview", err)
	}
	flash, err := model.ParseFlashMode(req.Flash)
	if err != nil {
		return 0, 0, apperr.New(apperr.InvalidArgument, "handler.preview", err)
	}
	return lens, flash, nil
}

// OpenPreviewHandler binds the camera and starts the live preview.
func OpenPreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lens, flash, err := parsePreviewRequest(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		live, err := manager.OpenPreview(r.Context(), lens, flash)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, previewResponse{
			Session:       live.ID(),
			PreviewHandle: live.PreviewHandle(),
			Lens:          live.Lens().String(),
			Flash:         live.Flash().String(),
		})
	}
}

// ClosePreviewHandler releases the camera.
func ClosePreviewHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := manager.ClosePreview(); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SwitchLensHandler rebinds the preview to another lens.
func SwitchLensHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lens, _, err := parsePreviewRequest(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		live, err := manager.SwitchLens(r.Context(), lens)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, previewResponse{
			Session:       live.ID(),
			PreviewHandle: live.PreviewHandle(),
			Lens:          live.Lens().String(),
			Flash:         live.Flash().String(),
		})
	}
}

// SetFlashHandler changes the flash mode for the next stills.
func SetFlashHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, flash, err := parsePreviewRequest(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := manager.SetFlash(r.Context(), flash); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"flash": flash.String()})
	}
}
