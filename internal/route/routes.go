package route

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"chitcam/internal/config"
	"chitcam/internal/handler"
	"chitcam/internal/logger"
	"chitcam/internal/middleware"
	"chitcam/internal/repository"
	"chitcam/internal/service"

	"github.com/gorilla/mux"
)

// pageHandler serves /name as <dir>/name.html, and / as the viewer page.
func pageHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" {
			name = "/index"
		}

		filePath := filepath.Join(dir, filepath.FromSlash(name)+".html")
		if info, err := os.Stat(filePath); err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the camera API, artifact gallery, log endpoints and
// static files, and wraps the router with the request logger.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger,
	artifactRepo repository.ArtifactRepository) http.Handler {
	r := mux.NewRouter()

	staticDir := cfg.StaticDirectory
	if staticDir == "" {
		staticDir = "static"
	}
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	api := r.PathPrefix("/api").Subrouter()

	// Preview
	api.HandleFunc("/preview/open", handler.OpenPreviewHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/preview/close", handler.ClosePreviewHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/preview/lens", handler.SwitchLensHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/preview/flash", handler.SetFlashHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/preview/ws", handler.ViewWebsocketHandler(manager, logger)).Methods(http.MethodGet)

	// Filters
	api.HandleFunc("/filters", handler.GetFiltersHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/filters/select", handler.SelectFilterHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/filters/next", handler.NextFilterHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/filters/previous", handler.PreviousFilterHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/filters/drag", handler.DragHandler(manager, logger)).Methods(http.MethodPost)

	// Capture and state
	api.HandleFunc("/capture", handler.CaptureHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/capture/{id}", handler.CaptureResultHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/status", handler.StatusHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/permission", handler.PermissionHandler(manager, logger)).Methods(http.MethodPost)

	// Artifacts
	api.HandleFunc("/artifacts", handler.GetArtifactsHandler(manager, cfg, logger, artifactRepo)).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/view", handler.ViewArtifactHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/verify", handler.VerifyArtifactHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/artifacts/delete", handler.DeleteArtifactHandler(manager, logger)).Methods(http.MethodPost, http.MethodDelete)
	api.HandleFunc("/artifacts/clear", handler.ClearArtifactsHandler(manager, logger, artifactRepo)).Methods(http.MethodPost)

	// Log endpoints
	r.HandleFunc("/logs/{level:info|warning|error}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level:info|warning|error}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Pages, e.g. / -> index.html
	r.PathPrefix("/").HandlerFunc(pageHandler(staticDir)).Methods(http.MethodGet)

	r.Use(middleware.RequestLogger(logger))
	return r
}
