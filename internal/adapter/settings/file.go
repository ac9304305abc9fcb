package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileStore keeps settings in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A missing file yields defaults; keys absent from the
// file keep their default values.
func (f *FileStore) Load(_ context.Context) (domain.Settings, error) {
	s := domain.DefaultSettings()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return domain.DefaultSettings(), fmt.Errorf("parse settings file %s: %w", f.path, err)
	}
	if err := Validate(s); err != nil {
		return domain.DefaultSettings(), err
	}
	return s, nil
}

// Save writes the settings through a temp file and rename so a crash never
// leaves a partial file.
func (f *FileStore) Save(_ context.Context, s domain.Settings) error {
	if err := Validate(s); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
