package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
)

// Mock implementations

type sentMedia struct {
	chatID  domain.Identity
	name    string
	caption string
	existed bool
}

type mockTransport struct {
	mu       sync.Mutex
	texts    []string
	media    []sentMedia
	sendErr  error
	mediaErr error
}

func (m *mockTransport) SendText(ctx context.Context, chatID domain.Identity, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) SendMedia(ctx context.Context, chatID domain.Identity, asset *domain.Asset, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mediaErr != nil {
		return m.mediaErr
	}
	_, err := os.Stat(asset.Path)
	m.media = append(m.media, sentMedia{chatID: chatID, name: asset.FileName(), caption: caption, existed: err == nil})
	return nil
}

func (m *mockTransport) DownloadAttachment(ctx context.Context, att domain.Attachment, dir string) (string, error) {
	path := filepath.Join(dir, att.FileName)
	return path, os.WriteFile(path, []byte("attachment"), 0o644)
}

func (m *mockTransport) GetChatInfo(ctx context.Context, chatID domain.Identity) (*domain.ChatInfo, error) {
	return &domain.ChatInfo{ChatID: chatID, Name: "test group", IsGroup: true, MemberCount: 3}, nil
}

func (m *mockTransport) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func (m *mockTransport) Media() []sentMedia {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMedia(nil), m.media...)
}

type mockSearch struct {
	items   []domain.SearchItem
	err     error
	queries []string
	block   bool
}

func (m *mockSearch) Search(ctx context.Context, query string, limit int) ([]domain.SearchItem, error) {
	m.queries = append(m.queries, query)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.items) > limit {
		return m.items[:limit], nil
	}
	return m.items, nil
}

type mockFetch struct {
	ext       string // extension of the produced file
	size      int
	err       error
	urls      []string
	opts      []repo.FetchOptions
	dirs      []string
	stateSeen []domain.JobState
	job       *domain.Job
}

func (m *mockFetch) write(dir, name string) (*domain.Asset, error) {
	m.dirs = append(m.dirs, dir)
	if m.job != nil {
		m.stateSeen = append(m.stateSeen, m.job.State())
	}
	if m.err != nil {
		// leave a partial file behind like a real downloader would
		_ = os.WriteFile(filepath.Join(dir, "partial.part"), []byte("x"), 0o644)
		return nil, m.err
	}
	if name == "" {
		name = "media"
	}
	ext := m.ext
	if ext == "" {
		ext = "m4a"
	}
	path := filepath.Join(dir, name+"."+ext)
	size := m.size
	if size == 0 {
		size = 16
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return nil, err
	}
	return &domain.Asset{Path: path, SizeBytes: int64(size)}, nil
}

func (m *mockFetch) Fetch(ctx context.Context, url string, opts repo.FetchOptions, dir string) (*domain.Asset, error) {
	m.urls = append(m.urls, url)
	m.opts = append(m.opts, opts)
	return m.write(dir, opts.Name)
}

func (m *mockFetch) FetchAttachment(ctx context.Context, att domain.Attachment, dir string) (*domain.Asset, error) {
	return m.write(dir, "attachment")
}

type mockTranscode struct {
	err     error
	targets []domain.Format
}

func (m *mockTranscode) Transcode(ctx context.Context, in *domain.Asset, target domain.Format, bitrate string, dir string) (*domain.Asset, error) {
	m.targets = append(m.targets, target)
	if m.err != nil {
		return nil, m.err
	}
	stem := filepath.Base(in.Path)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	out := filepath.Join(dir, fmt.Sprintf("%s.%s", stem, target))
	if err := os.WriteFile(out, []byte("converted"), 0o644); err != nil {
		return nil, err
	}
	return &domain.Asset{Path: out, Title: in.Title}, nil
}

// mockConfigRepo keeps allow-list rows; false marks a revoked identity
type mockConfigRepo struct {
	public  bool
	found   bool
	allowed map[domain.Identity]bool
	err     error
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{allowed: make(map[domain.Identity]bool)}
}

func (m *mockConfigRepo) Load(ctx context.Context) (*repo.AccessState, error) {
	if m.err != nil {
		return nil, m.err
	}
	state := &repo.AccessState{PublicMode: m.public, ModeFound: m.found}
	for id, ok := range m.allowed {
		if ok {
			state.Allowed = append(state.Allowed, id)
		} else {
			state.Revoked = append(state.Revoked, id)
		}
	}
	return state, nil
}

func (m *mockConfigRepo) SetPublicMode(ctx context.Context, public bool) error {
	if m.err != nil {
		return m.err
	}
	m.public, m.found = public, true
	return nil
}

func (m *mockConfigRepo) AddAllowed(ctx context.Context, id, addedBy domain.Identity) error {
	if m.err != nil {
		return m.err
	}
	m.allowed[id] = true
	return nil
}

func (m *mockConfigRepo) RemoveAllowed(ctx context.Context, id domain.Identity) error {
	if m.err != nil {
		return m.err
	}
	m.allowed[id] = false
	return nil
}

func (m *mockConfigRepo) Close() error { return nil }
