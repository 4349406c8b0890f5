package domain

import "strings"

// Identity is an opaque sender or chat identifier in normalized form.
type Identity string

// NormalizeIdentity strips transport decorations so that the same account
// compares equal however the transport spelled it:
// "+1555000111", "1555000111@c.us" and "1555000111:3@s.whatsapp.net" all
// normalize to "1555000111". Feishu open_ids pass through unchanged.
func NormalizeIdentity(raw string) Identity {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "+")
	return Identity(strings.TrimSpace(s))
}

// String implements fmt.Stringer.
func (id Identity) String() string { return string(id) }

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool { return id == "" }
