package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ringdb/ringdb/pkg/volume"
)

// DefaultPageSize is the size of a page file unless configured otherwise.
const DefaultPageSize = 4 * 1024 * 1024

// CreateConfig describes a storage instance to bootstrap.
type CreateConfig struct {
	// BaseName names the instance; files become <BaseName>_<i>.volume and
	// <BaseName>.ringdb.
	BaseName string
	// MetadataDir receives the metadata document.
	MetadataDir string
	// VolumesDir receives the page files.
	VolumesDir string
	NumVolumes int
	PageSize   int
}

// Create bootstraps a new storage instance: N fixed-size page files with
// formatted headers (the first one pre-opened) and the metadata document
// binding them into a ring. Returns the metadata path. Partially created
// page files are removed on failure.
func Create(cfg CreateConfig) (string, error) {
	if cfg.BaseName == "" {
		return "", fmt.Errorf("base name must not be empty")
	}
	if cfg.NumVolumes <= 0 {
		return "", fmt.Errorf("num volumes must be positive, got %d", cfg.NumVolumes)
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	if err := os.MkdirAll(cfg.VolumesDir, 0o750); err != nil {
		return "", fmt.Errorf("create volumes dir: %w", err)
	}
	if err := os.MkdirAll(cfg.MetadataDir, 0o750); err != nil {
		return "", fmt.Errorf("create metadata dir: %w", err)
	}

	var created []string
	cleanup := func() {
		for _, path := range created {
			os.Remove(path)
		}
	}

	refs := make([]VolumeRef, cfg.NumVolumes)
	for i := 0; i < cfg.NumVolumes; i++ {
		path := filepath.Join(cfg.VolumesDir, fmt.Sprintf("%s_%d.volume", cfg.BaseName, i))
		if err := volume.CreateVolumeFile(path, pageSize, uint32(i), i == 0); err != nil {
			cleanup()
			return "", err
		}
		created = append(created, path)
		refs[i] = VolumeRef{Index: i, Path: path}
	}

	md := &Metadata{
		CreationTime: time.Now().UTC().Format(time.RFC3339),
		StorageID:    ksuid.New().String(),
		NumVolumes:   cfg.NumVolumes,
		Volumes:      refs,
	}
	mdPath := filepath.Join(cfg.MetadataDir, cfg.BaseName+MetadataExt)
	if err := md.write(mdPath); err != nil {
		cleanup()
		return "", err
	}
	return mdPath, nil
}
