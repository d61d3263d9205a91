package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	GridSize   int   `yaml:"grid_size"`
	RandomSeed int64 `yaml:"random_seed"`

	// LogDeadAnchors reports every blocked anchor found by the blocked-anchor query.
	LogDeadAnchors bool `yaml:"log_dead_anchors"`

	Journal JournalConfig `yaml:"journal"`
	Index   IndexConfig   `yaml:"index"`
	Saves   SavesConfig   `yaml:"saves"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Prefix  string `yaml:"prefix"`
}

type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SavesConfig bounds the saves directory. Older saves move to ArchiveDir.
type SavesConfig struct {
	Keep       int    `yaml:"keep"`
	ArchiveDir string `yaml:"archive_dir"`
}

func Defaults() Tuning {
	return Tuning{
		GridSize:       6,
		RandomSeed:     1337,
		LogDeadAnchors: true,
		Journal: JournalConfig{
			Enabled: true,
			Dir:     "journal",
			Prefix:  "events",
		},
		Index: IndexConfig{
			Enabled: true,
			Path:    "index.db",
		},
		Saves: SavesConfig{
			Keep:       20,
			ArchiveDir: "archives",
		},
	}
}

// Load reads tuning.yaml on top of Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.GridSize <= 0 {
		return fmt.Errorf("grid_size must be > 0, got %d", t.GridSize)
	}
	if t.GridSize > 64 {
		return fmt.Errorf("grid_size %d too large (max 64)", t.GridSize)
	}
	if t.Saves.Keep < 0 {
		return fmt.Errorf("saves.keep must be >= 0, got %d", t.Saves.Keep)
	}
	return nil
}
