// Package backup keeps at most one pristine copy of each track for a
// single level of undo.
package backup

import (
	"fmt"
	"os"

	"Rippers/core/library"
	"Rippers/logger"
	"Rippers/model"
)

// Manager works on the backup directory of a library layout. Callers hold
// the track lock.
type Manager struct {
	layout library.Layout
}

func NewManager(layout library.Layout) *Manager {
	return &Manager{layout: layout}
}

func (m *Manager) Path(name string) string {
	return m.layout.BackupPath(name)
}

func (m *Manager) Exists(name string) bool {
	info, err := os.Stat(m.Path(name))
	return err == nil && !info.IsDir()
}

// Create copies the current audio of name into the backup slot unless a
// backup is already there. created tells the caller whether a rollback
// should discard it.
func (m *Manager) Create(name string) (created bool, err error) {
	if m.Exists(name) {
		return false, nil
	}
	if err := os.MkdirAll(m.layout.BackupDir, 0755); err != nil {
		return false, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := library.CopyFile(m.layout.AudioPath(name), m.Path(name)); err != nil {
		return false, fmt.Errorf("failed to back up %s: %w", name, err)
	}
	logger.Debug("Backup created", logger.Track(name))
	return true, nil
}

// Restore moves the backup over the audio file, consuming the backup.
func (m *Manager) Restore(name string) error {
	if !m.Exists(name) {
		return fmt.Errorf("%s: %w", name, model.ErrNoBackup)
	}
	if err := os.Rename(m.Path(name), m.layout.AudioPath(name)); err != nil {
		return fmt.Errorf("failed to restore %s: %w", name, err)
	}
	logger.Debug("Backup restored", logger.Track(name))
	return nil
}

// Discard removes the backup; a missing backup is fine.
func (m *Manager) Discard(name string) error {
	if err := os.Remove(m.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard backup of %s: %w", name, err)
	}
	return nil
}
