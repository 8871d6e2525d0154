// Package storage persists captured JPEGs into the media collection and
// records them in the artifact repository.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chitcam/internal/apperr"
	"chitcam/internal/config"
	"chitcam/internal/logger"
	"chitcam/internal/model"
	"chitcam/internal/repository"

	"golang.org/x/crypto/blake2b"
)

const (
	DefaultMimeType   = "image/jpeg"
	DefaultCollection = "Pictures/FilteredCamera"
)

// Option sets artifact metadata recorded alongside the file.
type Option func(*model.Artifact)

// WithFilter records the filter applied to the image.
func WithFilter(name string) Option {
	return func(a *model.Artifact) { a.FilterName = name }
}

// WithLens records the lens the still came from.
func WithLens(lens model.LensFacing) Option {
	return func(a *model.Artifact) { a.Lens = lens.String() }
}

// AsFallback marks the artifact as the unfiltered still delivered after a filter failure.
func AsFallback() Option {
	return func(a *model.Artifact) {
		a.Fallback = true
		a.FilterName = model.NormalFilterName
	}
}

// Store writes artifact files under the image directory.
type Store struct {
	root       string
	collection string
	repo       repository.ArtifactRepository
	logger     *logger.Logger
	now        func() time.Time
}

// NewStore creates a store rooted at IMAGE_DIR with COLLECTION as the default collection.
func NewStore(cfg *config.Config, repo repository.ArtifactRepository, logger *logger.Logger) *Store {
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		root:       cfg.ImageDirectory,
		collection: collection,
		repo:       repo,
		logger:     logger,
		now:        time.Now,
	}
}

// Collection returns the default collection.
func (s *Store) Collection() string {
	return s.collection
}

// Persist writes data as filename inside collection and records its metadata.
// Either both the file and the record exist afterwards or neither does.
func (s *Store) Persist(ctx context.Context, data []byte, filename, mimeType, collection string, opts ...Option) (*model.Artifact, error) {
	const op = "storage.Persist"

	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.StorageError, op, err)
	}
	if len(data) == 0 {
		return nil, apperr.Errorf(apperr.StorageError, op, "no data to persist")
	}
	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return nil, apperr.Errorf(apperr.StorageError, op, "invalid filename %q", filename)
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	if collection == "" {
		collection = s.collection
	}

	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, apperr.New(apperr.StorageError, op, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.New(apperr.StorageError, op, fmt.Errorf("error creating directory: %w", err))
	}

	fullpath := filepath.Join(dir, filename)
	if err := writeAtomic(dir, fullpath, data); err != nil {
		if errors.Is(err, os.ErrExist) {
			err = fmt.Errorf("%s: %w", filename, repository.ErrDuplicate)
		}
		return nil, apperr.New(apperr.StorageError, op, err)
	}

	artifact := &model.Artifact{
		Filename:   filename,
		URI:        FileURI(fullpath),
		FilePath:   fullpath,
		Collection: collection,
		MimeType:   mimeType,
		FilterName: model.NormalFilterName,
		Lens:       model.LensBack.String(),
		FileSize:   int64(len(data)),
		Checksum:   Checksum(data),
		Timestamp:  s.now(),
	}
	if parsed, err := ParseFilename(filename); err == nil {
		artifact.Timestamp = parsed.Timestamp
	}
	for _, opt := range opts {
		opt(artifact)
	}

	id, err := s.repo.Insert(artifact)
	if err != nil {
		if rmErr := os.Remove(fullpath); rmErr != nil {
			s.logger.Error("Error removing %s after failed insert: %v", fullpath, rmErr)
		}
		return nil, apperr.New(apperr.StorageError, op, err)
	}
	artifact.ID = id

	s.logger.Debug("Persisted %s (%d bytes) into %s", filename, len(data), collection)
	return artifact, nil
}

// MarkFallback flags the stored artifact name as an unfiltered fallback.
func (s *Store) MarkFallback(name string) (*model.Artifact, error) {
	const op = "storage.MarkFallback"

	a, err := s.lookup(op, name)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.SetFallback(name, true)
	if err != nil {
		return nil, apperr.New(apperr.StorageError, op, err)
	}
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, op, "no artifact named %s", name)
	}
	a.Fallback = true
	return a, nil
}

// Open returns the persisted file for name. The caller closes it.
func (s *Store) Open(name string) (*os.File, *model.Artifact, error) {
	a, err := s.lookup("storage.Open", name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(a.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.Errorf(apperr.NotFound, "storage.Open", "file for %s is missing", name)
		}
		return nil, nil, apperr.New(apperr.StorageError, "storage.Open", err)
	}
	return f, a, nil
}

// Verify recomputes the checksum of name and compares it with the recorded one.
func (s *Store) Verify(name string) (bool, error) {
	a, err := s.lookup("storage.Verify", name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, apperr.New(apperr.StorageError, "storage.Verify", err)
	}
	return Checksum(data) == a.Checksum, nil
}

// Remove deletes the file and the record of name.
func (s *Store) Remove(name string) error {
	a, err := s.lookup("storage.Remove", name)
	if err != nil {
		return err
	}
	if err := os.Remove(a.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file %s: %v", a.FilePath, err)
		return apperr.New(apperr.StorageError, "storage.Remove", err)
	}
	if err := s.repo.DeleteByFilename(name); err != nil {
		return apperr.New(apperr.StorageError, "storage.Remove", err)
	}
	s.logger.Info("Deleted artifact: %s", name)
	return nil
}

func (s *Store) lookup(op, name string) (*model.Artifact, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, apperr.Errorf(apperr.InvalidArgument, op, "invalid artifact name %q", name)
	}
	a, err := s.repo.GetByFilename(name)
	if err != nil {
		return nil, apperr.New(apperr.StorageError, op, err)
	}
	if a == nil {
		return nil, apperr.Errorf(apperr.NotFound, op, "no artifact named %s", name)
	}
	return a, nil
}

// collectionDir resolves a slash separated collection below the root.
func (s *Store) collectionDir(collection string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(collection))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("collection %q escapes the image directory", collection)
	}
	return filepath.Join(s.root, clean), nil
}

// writeAtomic writes to a temp file in dir and links it into place. The link
// fails with os.ErrExist instead of replacing a file that is already there.
func writeAtomic(dir, fullpath string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".pending-*.jpg")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error syncing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing image: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error setting permissions: %w", err)
	}
	defer os.Remove(tmpName)
	if err := os.Link(tmpName, fullpath); err != nil {
		return fmt.Errorf("error moving image into place: %w", err)
	}
	return nil
}

// Checksum returns the hex BLAKE2b-256 digest recorded for artifact bytes.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileURI returns the file:// URI recorded for an artifact path.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
