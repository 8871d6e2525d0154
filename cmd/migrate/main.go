package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"chitcam/internal/config"
	"chitcam/internal/model"
	"chitcam/internal/repository/sqlite"
	"chitcam/internal/service/storage"
)

// migrate indexes JPEGs already present in the collection directory, e.g.
// after restoring a backup or copying a recovery directory back in.
func main() {
	cfg := config.Load()

	imagesDir := flag.String("images", cfg.CollectionPath(), "Directory containing captured images")
	collection := flag.String("collection", cfg.Collection, "Collection name recorded for the images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Indexing images from %s into database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewArtifactRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	var artifacts []model.Artifact
	skipped := 0
	for _, file := range files {
		if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ".jpg") {
			continue
		}

		parsed, err := storage.ParseFilename(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		fullpath := filepath.Join(*imagesDir, file.Name())
		data, err := os.ReadFile(fullpath)
		if err != nil {
			log.Printf("⚠️  Failed to read %s: %v", file.Name(), err)
			skipped++
			continue
		}

		a := model.Artifact{
			Filename:   file.Name(),
			URI:        storage.FileURI(fullpath),
			FilePath:   fullpath,
			Collection: *collection,
			MimeType:   storage.DefaultMimeType,
			FilterName: model.NormalFilterName,
			Lens:       model.LensBack.String(),
			FileSize:   int64(len(data)),
			Checksum:   storage.Checksum(data),
			Timestamp:  parsed.Timestamp,
		}
		if parsed.Prefix == cfg.FilteredPrefix {
			// the filter name is not part of the filename
			a.FilterName = "Unknown"
		}
		artifacts = append(artifacts, a)
	}

	if len(artifacts) == 0 {
		fmt.Println("No images found to index")
		return
	}

	fmt.Printf("Inserting %d images into database...\n", len(artifacts))
	inserted, err := repo.BulkInsert(artifacts)
	if err != nil {
		log.Fatalf("Failed to insert images: %v", err)
	}

	fmt.Printf("✅ Indexed %d new images (%d already present)\n", inserted, len(artifacts)-inserted)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name or errors)\n", skipped)
	}

	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Database Statistics:\n")
		fmt.Printf("   Total artifacts: %d\n", stats.Total)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSize)
		fmt.Printf("   Fallbacks: %d\n", stats.Fallbacks)
		fmt.Printf("   Per filter:\n")
		for name, count := range stats.PerFilter {
			fmt.Printf("      - %s: %d\n", name, count)
		}
		fmt.Printf("   Per lens:\n")
		for lens, count := range stats.PerLens {
			fmt.Printf("      - %s: %d\n", lens, count)
		}
	}
}
