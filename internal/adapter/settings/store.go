// Package settings persists the watcher's settings.
package settings

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Store loads and saves settings. A store with nothing saved yet returns
// domain.DefaultSettings.
type Store interface {
	Load(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, e.g. manual coordinates in range.
func Validate(s domain.Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
