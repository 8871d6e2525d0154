package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"chitcam/internal/config"
	"chitcam/internal/dto"
	"chitcam/internal/logger"
	"chitcam/internal/repository"
	"chitcam/internal/service"
)

// GetArtifactsHandler returns a filtered, paginated list of captured artifacts.
func GetArtifactsHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	repo repository.ArtifactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.ArtifactFilters{
			FilterName: q.Get("filter"),
			Lens:       strings.ToLower(q.Get("lens")),
			Prefix:     q.Get("prefix"),
			Fallback:   parseBool(q.Get("fallback")),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting artifacts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		filter.Limit = limit
		filter.Offset = (page - 1) * limit
		artifacts, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying artifacts from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := repo.GetCollectionSize()
		if err != nil {
			logger.Error("Error getting collection size: %v", err)
			totalSize = 0
		}

		filters, err := repo.GetFilterNames()
		if err != nil {
			logger.Error("Error listing filter names: %v", err)
			filters = []string{}
		}

		infos := make([]dto.ArtifactInfo, 0, len(artifacts))
		for _, a := range artifacts {
			infos = append(infos, dto.ArtifactInfo{
				Name:      a.Filename,
				URI:       a.URI,
				Date:      a.Timestamp,
				TimeOfDay: a.Timestamp,
				Filter:    a.FilterName,
				Lens:      a.Lens,
				Fallback:  a.Fallback,
				Size:      a.FileSize,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.ArtifactsData{
			Artifacts:   infos,
			Collection:  manager.GetStore().Collection(),
			Filters:     filters,
			Size:        totalSize,
			MaxSize:     cfg.MaxCollectionSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewArtifactHandler serves a single artifact named by the "name" query parameter.
func ViewArtifactHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}

		f, a, err := manager.GetStore().Open(name)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", a.MimeType)
		http.ServeContent(w, r, a.Filename, a.Timestamp, f)
	}
}

// DeleteArtifactHandler removes an artifact from disk and database.
func DeleteArtifactHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name required", http.StatusBadRequest)
			return
		}

		if err := manager.GetStore().Remove(name); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "name": name})
	}
}

// ClearArtifactsHandler deletes every recorded artifact.
func ClearArtifactsHandler(manager *service.Manager, logger *logger.Logger,
	repo repository.ArtifactRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifacts, err := repo.GetAll(nil)
		if err != nil {
			logger.Error("Error listing artifacts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		removed := 0
		for _, a := range artifacts {
			if err := manager.GetStore().Remove(a.Filename); err != nil {
				logger.Error("Error deleting artifact %s: %v", a.Filename, err)
				continue
			}
			removed++
		}

		logger.Info("Cleared %d of %d artifacts", removed, len(artifacts))
		w.WriteHeader(http.StatusNoContent)
	}
}

// VerifyArtifactHandler checks an artifact against its recorded checksum.
func VerifyArtifactHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}

		valid, err := manager.GetStore().Verify(name)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if !valid {
			logger.Warning("Artifact %s failed checksum verification", name)
		}
		writeJSON(w, logger, http.StatusOK, dto.VerifyResponse{Name: name, Valid: valid})
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseBool returns nil for an empty or unparsable value.
func parseBool(v string) *bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" from the request (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
