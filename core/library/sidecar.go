package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"Rippers/model"
)

// ReadSidecar loads the sidecar of name. ok is false when none exists.
func (l Layout) ReadSidecar(name string) (sc *model.Sidecar, ok bool, err error) {
	data, err := os.ReadFile(l.SidecarPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Sidecar{}, false, nil
		}
		return nil, false, fmt.Errorf("failed to read sidecar for %s: %w", name, err)
	}
	sc = &model.Sidecar{}
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, true, fmt.Errorf("failed to parse sidecar for %s: %w", name, err)
	}
	return sc, true, nil
}

// WriteSidecar replaces the sidecar of name atomically.
func (l Layout) WriteSidecar(name string, sc *model.Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar for %s: %w", name, err)
	}
	return writeFileAtomic(l.SidecarPath(name), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// MergeSidecar applies update to the sidecar of name, creating it when absent.
func (l Layout) MergeSidecar(name string, update model.MetadataUpdate) (*model.Sidecar, error) {
	sc, _, err := l.ReadSidecar(name)
	if err != nil {
		return nil, err
	}
	update.Apply(sc)
	if err := l.WriteSidecar(name, sc); err != nil {
		return nil, err
	}
	return sc, nil
}
