package storage

import (
	"encoding/json"
	"fmt"
	"os"
)

// MetadataExt is the extension of the metadata document, the root of a
// storage instance.
const MetadataExt = ".ringdb"

// VolumeRef links a ring position to a page file.
type VolumeRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// Metadata is the storage root document: creation stamp, instance id, and
// the ordered list of volume files.
type Metadata struct {
	CreationTime string      `json:"creation_time"`
	StorageID    string      `json:"storage_id"`
	NumVolumes   int         `json:"num_volumes"`
	Volumes      []VolumeRef `json:"volumes"`
}

// LoadMetadata reads and validates the metadata document. Any violation is
// a fatal construction error for the engine.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata %s: %w", path, err)
	}
	return &md, nil
}

// Validate checks the structural invariants of the document: a positive
// volume count, indices covering [0, num_volumes) exactly once, and no
// empty paths.
func (m *Metadata) Validate() error {
	if m.NumVolumes <= 0 {
		return fmt.Errorf("num_volumes must be positive, got %d", m.NumVolumes)
	}
	if len(m.Volumes) != m.NumVolumes {
		return fmt.Errorf("volume list has %d entries, num_volumes says %d", len(m.Volumes), m.NumVolumes)
	}
	seen := make([]bool, m.NumVolumes)
	for _, ref := range m.Volumes {
		if ref.Index < 0 || ref.Index >= m.NumVolumes {
			return fmt.Errorf("volume index %d outside [0, %d)", ref.Index, m.NumVolumes)
		}
		if seen[ref.Index] {
			return fmt.Errorf("volume index %d appears twice", ref.Index)
		}
		seen[ref.Index] = true
		if ref.Path == "" {
			return fmt.Errorf("volume %d has an empty path", ref.Index)
		}
	}
	return nil
}

// VolumePaths returns the volume file paths ordered by ring index.
func (m *Metadata) VolumePaths() []string {
	paths := make([]string, m.NumVolumes)
	for _, ref := range m.Volumes {
		paths[ref.Index] = ref.Path
	}
	return paths
}

func (m *Metadata) write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write metadata %s: %w", path, err)
	}
	return nil
}
