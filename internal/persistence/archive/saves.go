package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"brickcube.ai/internal/persistence/snapshot"
)

// SaveFile is one <unix>.json(.zst) save in a saves directory.
type SaveFile struct {
	Path string
	At   int64
}

// Meta is written next to every archived save.
type Meta struct {
	Save       string `json:"save"`
	SessionID  string `json:"session_id,omitempty"`
	Size       int    `json:"size"`
	Pieces     int    `json:"pieces"`
	SavedAt    string `json:"saved_at"`
	ArchivedAt string `json:"archived_at"`

	// ReadError is set when the save could not be decoded; it is archived anyway.
	ReadError string `json:"read_error,omitempty"`
}

// ListSaves returns the saves in dir, oldest first. Other files are ignored.
func ListSaves(dir string) ([]SaveFile, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []SaveFile
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".zst")
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		at, err := strconv.ParseInt(strings.TrimSuffix(base, ".json"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, SaveFile{Path: filepath.Join(dir, e.Name()), At: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At != out[j].At {
			return out[i].At < out[j].At
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Rotate keeps the newest keep saves in savesDir and moves the rest into
// archiveDir/<YYYY-MM-DD>/ (by save time), each with a <name>.meta.json.
// keep <= 0 disables rotation. A save that fails to archive is reported in the
// returned error and the rest are still processed.
func Rotate(savesDir, archiveDir string, keep int, now time.Time) (archived []string, err error) {
	if keep <= 0 {
		return nil, nil
	}
	saves, err := ListSaves(savesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(saves) <= keep {
		return nil, nil
	}
	var errs []error
	for _, s := range saves[:len(saves)-keep] {
		dst, err := archiveSave(s, archiveDir, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("archive %s: %w", filepath.Base(s.Path), err))
			continue
		}
		archived = append(archived, dst)
	}
	return archived, errors.Join(errs...)
}

func archiveSave(s SaveFile, archiveDir string, now time.Time) (string, error) {
	save, readErr := snapshot.Read(s.Path)
	if readErr != nil {
		save = snapshot.Save{}
	}
	savedAt := time.Unix(s.At, 0).UTC()
	dir := filepath.Join(archiveDir, savedAt.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := filepath.Base(s.Path)
	dst := filepath.Join(dir, name)
	if err := copyFile(s.Path, dst); err != nil {
		return "", err
	}

	meta := Meta{
		Save:       name,
		SessionID:  save.SessionID,
		Size:       save.Size,
		Pieces:     len(save.Placed),
		SavedAt:    savedAt.Format(time.RFC3339),
		ArchivedAt: now.UTC().Format(time.RFC3339Nano),
	}
	if readErr != nil {
		meta.ReadError = readErr.Error()
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name+".meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dst, os.Remove(s.Path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
