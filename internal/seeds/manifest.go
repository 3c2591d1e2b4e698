package seeds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Manifest records what a generation run produced, so later stages and
// humans can tell request batches apart.
type Manifest struct {
	ID         string              `json:"id"`
	CreatedAt  time.Time           `json:"created_at"`
	Tasks      int                 `json:"tasks"`
	Applicants int                 `json:"applicants"`
	SeedsFile  string              `json:"seeds_file"`
	Files      map[string][]string `json:"files"`
}

func NewManifest(taskCount, applicantCount int, seedsFile string) *Manifest {
	return &Manifest{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Tasks:      taskCount,
		Applicants: applicantCount,
		SeedsFile:  seedsFile,
		Files:      map[string][]string{},
	}
}

func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
