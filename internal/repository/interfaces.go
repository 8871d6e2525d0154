package repository

import (
	"errors"

	"chitcam/internal/dto"
	"chitcam/internal/model"
)

// ErrDuplicate is returned by Insert when the filename is already recorded.
var ErrDuplicate = errors.New("artifact already exists")

// Stats summarizes the artifact table.
type Stats struct {
	Total     int            `json:"total"`
	TotalSize int64          `json:"totalSize"`
	Fallbacks int            `json:"fallbacks"`
	PerFilter map[string]int `json:"perFilter"`
	PerLens   map[string]int `json:"perLens"`
}

// ArtifactRepository defines the interface for artifact metadata operations.
type ArtifactRepository interface {
	// Create operations
	Insert(a *model.Artifact) (int64, error)
	BulkInsert(artifacts []model.Artifact) (int, error)

	// Read operations
	GetByID(id int64) (*model.Artifact, error)
	GetByFilename(filename string) (*model.Artifact, error)
	GetAll(filter *dto.ArtifactFilters) ([]model.Artifact, error)
	GetTotalCount(filter *dto.ArtifactFilters) (int, error)
	GetCollectionSize() (int64, error)
	GetFilterNames() ([]string, error)
	GetStats() (*Stats, error)

	// Update operations
	SetFallback(filename string, fallback bool) (bool, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}
