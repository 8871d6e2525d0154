package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chitcam/internal/config"
	"chitcam/internal/logger"
	"chitcam/internal/repository/sqlite"
	"chitcam/internal/route"
	"chitcam/internal/service"
	"chitcam/internal/service/camera"
	"chitcam/internal/service/decoder"
	"chitcam/internal/service/filter"
	"chitcam/internal/service/permission"
	"chitcam/internal/service/storage"
	"chitcam/internal/service/websocket"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	repo     *sqlite.ArtifactRepository
	recovery *storage.RecoveryBuffer
	hub      *websocket.HubService
	manager  *service.Manager
	server   *http.Server
}

// NewApp builds every component from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	repo := sqlite.NewArtifactRepository(db)

	dec, err := decoder.NewFromConfig(cfg)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	opener, err := newOpener(cfg)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}
	source, err := camera.NewFrameSource(camera.NewHandle(opener), cfg.PreviewFPS, log)
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	recovery := storage.NewRecoveryBuffer(cfg, log)
	hub := websocket.NewHubService(log)

	mng := service.NewManager(cfg, service.Services{
		Source:     source,
		Decoder:    dec,
		Engine:     filter.NewEngine(),
		Selector:   filter.NewSelector(nil),
		Store:      storage.NewStore(cfg, repo, log),
		Recovery:   recovery,
		Permission: permission.NewOnce(permission.NewStatic(cfg)),
		Hub:        hub,
	}, log)

	return &App{
		config:   cfg,
		logger:   log,
		db:       db,
		repo:     repo,
		recovery: recovery,
		hub:      hub,
		manager:  mng,
	}, nil
}

func newOpener(cfg *config.Config) (camera.Opener, error) {
	switch cfg.CameraDriver {
	case "gocv", "":
		return camera.NewGocvOpener(cfg), nil
	case "synthetic":
		return &camera.SyntheticOpener{
			Width:        cfg.PreviewWidth,
			Height:       cfg.PreviewHeight,
			StillQuality: cfg.StillJPEGQuality,
		}, nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.CameraDriver)
	}
}

// Manager returns the pipeline manager.
func (a *App) Manager() *service.Manager {
	return a.manager
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(a.manager, a.config, a.logger, a.repo)
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	go a.recovery.Run(bgCtx)
	go a.hub.Run(bgCtx)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Filtered Camera Server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Images: %s", a.config.CollectionPath())
	a.logger.Info("📷 Camera driver: %s", a.config.CameraDriver)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.CaptureTimeout+5*time.Second)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Close stops the server, waits for an outstanding capture and releases the
// camera, the database and the log files.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("manager shutdown: %w", err))
	}
	if n := a.recovery.Flush(); n > 0 {
		a.logger.Info("Flushed %d recovered stills", n)
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}
	a.logger.Close()
	return errors.Join(errs...)
}
