package repo

import (
	"context"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// AccessState is the persisted access configuration
type AccessState struct {
	PublicMode bool
	ModeFound  bool // false when the mode was never saved
	Allowed    []domain.Identity
	Revoked    []domain.Identity // removed entries, applied over the seed
}

// ConfigRepo persists the access-control configuration
type ConfigRepo interface {
	// Load returns the persisted mode, allow-list and revocations
	Load(ctx context.Context) (*AccessState, error)

	// SetPublicMode persists the mode flag
	SetPublicMode(ctx context.Context, public bool) error

	// AddAllowed inserts an identity, clearing any revocation
	AddAllowed(ctx context.Context, id domain.Identity, addedBy domain.Identity) error

	// RemoveAllowed records a revocation for an identity
	RemoveAllowed(ctx context.Context, id domain.Identity) error

	Close() error
}
