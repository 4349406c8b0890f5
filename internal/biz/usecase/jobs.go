package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// Token is the single-flight lease for one chat
type Token struct {
	ID     string
	ChatID domain.Identity
}

type trackedJob struct {
	token  Token
	job    *domain.Job
	cancel context.CancelFunc
}

// JobTracker allows at most one acquisition per chat. A second request is
// rejected with domain.ErrBusy, never queued.
type JobTracker struct {
	mu     sync.Mutex
	active map[domain.Identity]*trackedJob
}

// NewJobTracker creates a tracker
func NewJobTracker() *JobTracker {
	return &JobTracker{active: make(map[domain.Identity]*trackedJob)}
}

// TryStart leases the chat's slot. The returned context is cancelled by
// Cancel, CancelAll, Finish or the parent.
func (t *JobTracker) TryStart(parent context.Context, chatID domain.Identity) (Token, context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.active[chatID]; busy {
		return Token{}, nil, domain.ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	tok := Token{ID: uuid.NewString(), ChatID: chatID}
	t.active[chatID] = &trackedJob{token: tok, cancel: cancel}
	return tok, ctx, nil
}

// Bind attaches the job to its lease for status reporting
func (t *JobTracker) Bind(tok Token, job *domain.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tj, ok := t.active[tok.ChatID]; ok && tj.token.ID == tok.ID {
		tj.job = job
	}
}

// Finish releases the lease. A stale token never releases a newer lease.
func (t *JobTracker) Finish(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.active[tok.ChatID]
	if !ok || tj.token.ID != tok.ID {
		return
	}
	tj.cancel()
	delete(t.active, tok.ChatID)
}

// Cancel cancels the chat's running job. The lease stays until Finish.
func (t *JobTracker) Cancel(chatID domain.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.active[chatID]
	if !ok {
		return false
	}
	tj.cancel()
	return true
}

// CancelAll cancels every running job, e.g. when the transport closes
func (t *JobTracker) CancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tj := range t.active {
		tj.cancel()
	}
	return len(t.active)
}

// IsBusy reports whether the chat holds a lease
func (t *JobTracker) IsBusy(chatID domain.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[chatID]
	return ok
}

// Active returns snapshots of bound jobs ordered by start time
func (t *JobTracker) Active() []domain.JobSnapshot {
	t.mu.Lock()
	jobs := make([]*domain.Job, 0, len(t.active))
	for _, tj := range t.active {
		if tj.job != nil {
			jobs = append(jobs, tj.job)
		}
	}
	t.mu.Unlock()

	out := make([]domain.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(out[k].StartedAt) })
	return out
}
