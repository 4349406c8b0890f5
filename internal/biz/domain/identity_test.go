package domain

import "testing"

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		input    string
		expected Identity
	}{
		{"1555000111", "1555000111"},
		{"+1555000111", "1555000111"},
		{"1555000111@c.us", "1555000111"},
		{"1555000111:3@s.whatsapp.net", "1555000111"},
		{"  ou_abc123  ", "ou_abc123"},
		{"", ""},
		{"@c.us", ""},
	}

	for _, tt := range tests {
		if got := NormalizeIdentity(tt.input); got != tt.expected {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBotConfig_Allows(t *testing.T) {
	cfg := NewBotConfig("917594898804@c.us", false, "1555000111")

	if !cfg.Allows("917594898804") {
		t.Error("Expected admin to be allowed in private mode")
	}
	if !cfg.Allows("+1555000111") {
		t.Error("Expected allow-listed identity to be allowed")
	}
	if cfg.Allows("1999") {
		t.Error("Expected stranger to be denied in private mode")
	}

	cfg.PublicMode = true
	if !cfg.Allows("1999") {
		t.Error("Expected stranger to be allowed in public mode")
	}
}

func TestBotConfig_NoAdminConfigured(t *testing.T) {
	cfg := NewBotConfig("", false)
	if cfg.IsAdmin("") {
		t.Error("Empty identity must never be admin")
	}
	if cfg.Allows("") {
		t.Error("Empty identity must not pass the gate in private mode")
	}
}

func TestBotConfig_CloneIsIndependent(t *testing.T) {
	cfg := NewBotConfig("admin", false, "a")
	cp := cfg.Clone()
	cp.AllowList["b"] = struct{}{}
	cp.PublicMode = true

	if cfg.IsAllowed("b") || cfg.PublicMode {
		t.Error("Expected clone mutations not to leak into original")
	}
}

func TestBotConfig_AllowedIdentitiesSorted(t *testing.T) {
	cfg := NewBotConfig("admin", false, "c", "a", "b", "a@c.us")
	ids := cfg.AllowedIdentities()
	if len(ids) != 3 {
		t.Fatalf("Expected 3 identities, got %d", len(ids))
	}
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("Unexpected order: %v", ids)
	}
}
