package domain

import "sort"

// BotConfig is the access-control configuration. Values handed out by the
// access usecase are snapshots; mutate only through the usecase.
type BotConfig struct {
	PublicMode bool
	AllowList  map[Identity]struct{}
	Admin      Identity
}

// NewBotConfig creates a config with normalized admin and allow-list entries
func NewBotConfig(admin Identity, publicMode bool, allowed ...Identity) *BotConfig {
	cfg := &BotConfig{
		PublicMode: publicMode,
		AllowList:  make(map[Identity]struct{}, len(allowed)),
		Admin:      NormalizeIdentity(string(admin)),
	}
	for _, id := range allowed {
		if n := NormalizeIdentity(string(id)); !n.IsZero() {
			cfg.AllowList[n] = struct{}{}
		}
	}
	return cfg
}

// IsAdmin reports whether id is the configured admin
func (c *BotConfig) IsAdmin(id Identity) bool {
	if c.Admin.IsZero() {
		return false
	}
	return NormalizeIdentity(string(id)) == c.Admin
}

// IsAllowed reports whether id is on the allow-list
func (c *BotConfig) IsAllowed(id Identity) bool {
	_, ok := c.AllowList[NormalizeIdentity(string(id))]
	return ok
}

// Allows applies the gate rules in order: admin, public mode, allow-list.
func (c *BotConfig) Allows(id Identity) bool {
	if c.IsAdmin(id) {
		return true
	}
	if c.PublicMode {
		return true
	}
	return c.IsAllowed(id)
}

// Clone returns a deep copy
func (c *BotConfig) Clone() *BotConfig {
	out := &BotConfig{
		PublicMode: c.PublicMode,
		AllowList:  make(map[Identity]struct{}, len(c.AllowList)),
		Admin:      c.Admin,
	}
	for id := range c.AllowList {
		out.AllowList[id] = struct{}{}
	}
	return out
}

// AllowedIdentities returns the allow-list sorted for display
func (c *BotConfig) AllowedIdentities() []Identity {
	ids := make([]Identity, 0, len(c.AllowList))
	for id := range c.AllowList {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
