package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

const settingPublicMode = "public_mode"

// configRepo implements the access config repository
type configRepo struct {
	db *sql.DB
}

// NewConfigRepo creates a new config repository
func NewConfigRepo(dbPath string) (repo.ConfigRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bot_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS allow_list (
			identity TEXT PRIMARY KEY,
			added_by TEXT NOT NULL DEFAULT '',
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &configRepo{db: db}, nil
}

// Load returns the persisted mode, allow-list and revocations
func (r *configRepo) Load(ctx context.Context) (*repo.AccessState, error) {
	state := &repo.AccessState{ModeFound: true}
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key = ?`, settingPublicMode).Scan(&value)
	if err == sql.ErrNoRows {
		state.ModeFound = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	state.PublicMode = value == "true"

	rows, err := r.db.QueryContext(ctx, `SELECT identity, revoked FROM allow_list ORDER BY created_at, identity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query allow list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var revoked bool
		if err := rows.Scan(&id, &revoked); err != nil {
			return nil, fmt.Errorf("failed to scan allow list: %w", err)
		}
		if revoked {
			state.Revoked = append(state.Revoked, domain.Identity(id))
		} else {
			state.Allowed = append(state.Allowed, domain.Identity(id))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return state, nil
}

// SetPublicMode persists the mode flag
func (r *configRepo) SetPublicMode(ctx context.Context, public bool) error {
	value := "false"
	if public {
		value = "true"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bot_settings (key, value, updated_at)
		VALUES (?, ?, ?)
	`, settingPublicMode, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save mode: %w", err)
	}
	return nil
}

// AddAllowed inserts an identity, clearing a previous revocation
func (r *configRepo) AddAllowed(ctx context.Context, id domain.Identity, addedBy domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allow_list (identity, added_by, revoked, created_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT(identity) DO UPDATE SET revoked = 0, added_by = excluded.added_by
		WHERE allow_list.revoked = 1
	`, string(id), string(addedBy), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add allowed identity: %w", err)
	}
	return nil
}

// RemoveAllowed keeps a revoked row so a seeded identity stays removed
// across restarts
func (r *configRepo) RemoveAllowed(ctx context.Context, id domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO allow_list (identity, revoked, created_at)
		VALUES (?, 1, ?)
		ON CONFLICT(identity) DO UPDATE SET revoked = 1
	`, string(id), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to remove allowed identity: %w", err)
	}
	return nil
}

// Close closes the database
func (r *configRepo) Close() error {
	return r.db.Close()
}
