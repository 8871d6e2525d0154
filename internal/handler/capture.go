package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chitcam/internal/dto"
	"chitcam/internal/logger"
	"chitcam/internal/service"
	"chitcam/internal/service/capture"

	"github.com/gorilla/mux"
)

// captureGrace is how long the handler keeps waiting after the capture's own
// deadline, so the worker's terminal result reaches the response.
const captureGrace = 2 * time.Second

// CaptureHandler triggers a capture and waits for its result. If the client
// goes away first the capture keeps going; 202 is returned with the request id
// and the result stays available at /api/capture/{id}.
func CaptureHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := manager.TriggerCapture(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), manager.CaptureTimeout()+captureGrace)
		defer cancel()

		res, err := pending.Wait(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				logger.Warning("Capture %s still running, answering 202", pending.ID())
				writeAccepted(w, logger, pending.ID())
			}
			return
		}
		writeCaptureResult(w, logger, http.StatusCreated, res)
	}
}

// CaptureResultHandler reports the outcome of a recent capture by request id.
func CaptureResultHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := manager.CaptureResult(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if !pending.Resolved() {
			writeAccepted(w, logger, pending.ID())
			return
		}

		res, _ := pending.Wait(r.Context())
		writeCaptureResult(w, logger, http.StatusOK, res)
	}
}

func writeAccepted(w http.ResponseWriter, logger *logger.Logger, id string) {
	w.Header().Set("Location", "/api/capture/"+id)
	writeJSON(w, logger, http.StatusAccepted, dto.CaptureResponse{RequestID: id})
}

func writeCaptureResult(w http.ResponseWriter, logger *logger.Logger, status int, res capture.Result) {
	if res.Err != nil {
		writeError(w, logger, res.Err)
		return
	}
	writeJSON(w, logger, status, dto.CaptureResponse{
		RequestID: res.RequestID,
		Artifact:  res.Artifact,
		Fallback:  res.Artifact.Fallback,
	})
}
