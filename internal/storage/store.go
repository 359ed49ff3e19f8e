package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// ErrSave wraps every failure to persist the session document
var ErrSave = errors.New("session store save failed")

// Store persists the whole key→entry session map as one document.
// Load on an empty backend returns an empty map and a nil error.
// Save overwrites everything previously stored.
type Store interface {
	Load(ctx context.Context) (models.Sessions, error)
	Save(ctx context.Context, sessions models.Sessions) error
	// Path names where the document lives, for logs and result bundles
	Path() string
}
