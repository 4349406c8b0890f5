package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// AccessUsecase is the access gate. Readers load an immutable snapshot;
// writers are serialized, persist first, then swap the snapshot.
type AccessUsecase struct {
	current    atomic.Pointer[domain.BotConfig]
	writeMu    sync.Mutex
	configRepo repo.ConfigRepo
}

// NewAccessUsecase creates the gate. configRepo may be nil (memory only).
func NewAccessUsecase(seed *domain.BotConfig, configRepo repo.ConfigRepo) *AccessUsecase {
	uc := &AccessUsecase{configRepo: configRepo}
	uc.current.Store(seed.Clone())
	return uc
}

// Restore overlays persisted mode, allow-list and revocations on the seed
// configuration. Persisted revocations win over seeded entries.
func (uc *AccessUsecase) Restore(ctx context.Context) error {
	if uc.configRepo == nil {
		return nil
	}
	state, err := uc.configRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load access config: %w", err)
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	next := uc.current.Load().Clone()
	if state.ModeFound {
		next.PublicMode = state.PublicMode
	}
	for _, id := range state.Allowed {
		next.AllowList[domain.NormalizeIdentity(string(id))] = struct{}{}
	}
	for _, id := range state.Revoked {
		delete(next.AllowList, domain.NormalizeIdentity(string(id)))
	}
	uc.current.Store(next)

	logger.Component("access").Info("access config restored",
		"public", next.PublicMode, logger.FieldCount, len(next.AllowList))
	return nil
}

// Allow applies the gate rules to a sender
func (uc *AccessUsecase) Allow(sender domain.Identity) bool {
	return uc.current.Load().Allows(sender)
}

// IsAdmin reports whether id is the configured admin
func (uc *AccessUsecase) IsAdmin(id domain.Identity) bool {
	return uc.current.Load().IsAdmin(id)
}

// Snapshot returns a copy of the current configuration
func (uc *AccessUsecase) Snapshot() *domain.BotConfig {
	return uc.current.Load().Clone()
}

// SetPublicMode switches between public and private mode
func (uc *AccessUsecase) SetPublicMode(ctx context.Context, public bool) error {
	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	if uc.configRepo != nil {
		if err := uc.configRepo.SetPublicMode(ctx, public); err != nil {
			return fmt.Errorf("persist mode: %w", err)
		}
	}
	next := uc.current.Load().Clone()
	next.PublicMode = public
	uc.current.Store(next)
	return nil
}

// AllowIdentity inserts id into the allow-list. Inserting an existing entry
// succeeds with added=false.
func (uc *AccessUsecase) AllowIdentity(ctx context.Context, id, addedBy domain.Identity) (added bool, err error) {
	id = domain.NormalizeIdentity(string(id))
	if id.IsZero() {
		return false, domain.NewJobError(domain.KindBadRequest, "allow", fmt.Errorf("empty identity"))
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	cur := uc.current.Load()
	if cur.IsAllowed(id) {
		return false, nil
	}
	if uc.configRepo != nil {
		if err := uc.configRepo.AddAllowed(ctx, id, addedBy); err != nil {
			return false, fmt.Errorf("persist allow: %w", err)
		}
	}
	next := cur.Clone()
	next.AllowList[id] = struct{}{}
	uc.current.Store(next)
	return true, nil
}

// RevokeIdentity removes id from the allow-list. Removing an absent entry
// succeeds with removed=false.
func (uc *AccessUsecase) RevokeIdentity(ctx context.Context, id domain.Identity) (removed bool, err error) {
	id = domain.NormalizeIdentity(string(id))
	if id.IsZero() {
		return false, domain.NewJobError(domain.KindBadRequest, "deny", fmt.Errorf("empty identity"))
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	cur := uc.current.Load()
	if !cur.IsAllowed(id) {
		return false, nil
	}
	if uc.configRepo != nil {
		if err := uc.configRepo.RemoveAllowed(ctx, id); err != nil {
			return false, fmt.Errorf("persist deny: %w", err)
		}
	}
	next := cur.Clone()
	delete(next.AllowList, id)
	uc.current.Store(next)
	return true, nil
}
