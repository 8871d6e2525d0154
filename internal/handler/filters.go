package handler

import (
	"net/http"

	"chitcam/internal/dto"
	"chitcam/internal/logger"
	"chitcam/internal/service"
)

func filterState(manager *service.Manager, changed bool) dto.FilterState {
	sel := manager.GetSelector()
	filters := sel.Filters()
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name
	}
	return dto.FilterState{
		Filters: names,
		Index:   sel.Index(),
		Current: sel.Current().Name,
		Changed: changed,
	}
}

// GetFiltersHandler lists the filters and the current selection.
func GetFiltersHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, filterState(manager, false))
	}
}

// SelectFilterHandler selects a filter by name or index.
func SelectFilterHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.FilterSelectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		var err error
		switch {
		case req.Name != "":
			_, err = manager.SetFilterByName(req.Name)
		case req.Index != nil:
			_, err = manager.SetFilter(*req.Index)
		default:
			http.Error(w, "Filter name or index is required", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, filterState(manager, true))
	}
}

// NextFilterHandler advances to the next filter.
func NextFilterHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.NextFilter()
		writeJSON(w, logger, http.StatusOK, filterState(manager, true))
	}
}

// PreviousFilterHandler steps back to the previous filter.
func PreviousFilterHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager.PreviousFilter()
		writeJSON(w, logger, http.StatusOK, filterState(manager, true))
	}
}

// DragHandler feeds a horizontal swipe delta to the filter selector.
func DragHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.DragRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		_, changed := manager.Drag(req.DX)
		writeJSON(w, logger, http.StatusOK, filterState(manager, changed))
	}
}
