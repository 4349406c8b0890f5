package usecase

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

const selectionStripes = 32

// SelectionUsecase is the pending-selection store. Entries expire after the
// TTL. Put and Resolve on one chat are serialized by a striped lock, so a
// resolve sees either the old or the new pending value, never a mix.
type SelectionUsecase struct {
	cache   *expirable.LRU[domain.Identity, *domain.Pending]
	stripes [selectionStripes]sync.Mutex
}

// NewSelectionUsecase creates the store. maxChats bounds memory; the least
// recently used chat is evicted first.
func NewSelectionUsecase(ttl time.Duration, maxChats int) *SelectionUsecase {
	if maxChats <= 0 {
		maxChats = 1024
	}
	return &SelectionUsecase{
		cache: expirable.NewLRU[domain.Identity, *domain.Pending](maxChats, nil, ttl),
	}
}

func (uc *SelectionUsecase) lock(chatID domain.Identity) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return &uc.stripes[h.Sum32()%selectionStripes]
}

// Put replaces the chat's pending value
func (uc *SelectionUsecase) Put(chatID domain.Identity, p *domain.Pending) {
	mu := uc.lock(chatID)
	mu.Lock()
	defer mu.Unlock()
	uc.cache.Add(chatID, p)
}

// Resolve picks the 1-based index from the chat's pending value and consumes
// it. An out-of-range index leaves the pending value in place.
func (uc *SelectionUsecase) Resolve(chatID domain.Identity, index int) (domain.Choice, error) {
	mu := uc.lock(chatID)
	mu.Lock()
	defer mu.Unlock()

	p, ok := uc.cache.Get(chatID)
	if !ok || p == nil {
		return domain.Choice{}, domain.ErrNoActiveSelection
	}
	choice, err := p.Choose(index)
	if err != nil {
		return domain.Choice{}, err
	}
	uc.cache.Remove(chatID)
	return choice, nil
}

// Peek returns the live pending value without consuming it
func (uc *SelectionUsecase) Peek(chatID domain.Identity) (*domain.Pending, bool) {
	mu := uc.lock(chatID)
	mu.Lock()
	defer mu.Unlock()
	return uc.cache.Peek(chatID)
}

// Clear drops the chat's pending value
func (uc *SelectionUsecase) Clear(chatID domain.Identity) {
	mu := uc.lock(chatID)
	mu.Lock()
	defer mu.Unlock()
	uc.cache.Remove(chatID)
}

// Len returns the number of chats with a live pending value
func (uc *SelectionUsecase) Len() int {
	return uc.cache.Len()
}

// AttachmentMemo remembers the last convertible attachment per chat for !convert
type AttachmentMemo struct {
	cache *expirable.LRU[domain.Identity, domain.Attachment]
}

// NewAttachmentMemo creates the memo
func NewAttachmentMemo(ttl time.Duration, maxChats int) *AttachmentMemo {
	if maxChats <= 0 {
		maxChats = 1024
	}
	return &AttachmentMemo{
		cache: expirable.NewLRU[domain.Identity, domain.Attachment](maxChats, nil, ttl),
	}
}

// Remember stores att as the chat's latest attachment
func (m *AttachmentMemo) Remember(chatID domain.Identity, att domain.Attachment) {
	m.cache.Add(chatID, att)
}

// Last returns the chat's latest attachment
func (m *AttachmentMemo) Last(chatID domain.Identity) (domain.Attachment, bool) {
	return m.cache.Get(chatID)
}
