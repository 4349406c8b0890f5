package domain

import (
	"fmt"
	"time"
)

// MaxSearchItems caps how many results are surfaced to the user
const MaxSearchItems = 5

// SearchItem is a single search hit
type SearchItem struct {
	Title    string
	URL      string
	Duration time.Duration
}

// FormatDuration renders the duration as m:ss or h:mm:ss
func (s SearchItem) FormatDuration() string {
	if s.Duration <= 0 {
		return "?"
	}
	total := int(s.Duration.Round(time.Second).Seconds())
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// SearchResultSet is the ordered result of one search in one chat
type SearchResultSet struct {
	Query     string
	Items     []SearchItem
	CreatedAt time.Time
}

// NewSearchResultSet keeps at most MaxSearchItems items, preserving order.
func NewSearchResultSet(query string, items []SearchItem) *SearchResultSet {
	if len(items) > MaxSearchItems {
		items = items[:MaxSearchItems]
	}
	cp := make([]SearchItem, len(items))
	copy(cp, items)
	return &SearchResultSet{Query: query, Items: cp, CreatedAt: time.Now()}
}

// Quality is the requested download quality
type Quality string

const (
	QualityAudio Quality = "audio"
	Quality360   Quality = "360p"
	Quality720   Quality = "720p"
	Quality1080  Quality = "1080p"
	QualityBest  Quality = "best"
)

// Height returns the max video height, 0 for audio or best
func (q Quality) Height() int {
	switch q {
	case Quality360:
		return 360
	case Quality720:
		return 720
	case Quality1080:
		return 1080
	default:
		return 0
	}
}

// DefaultQualityOptions is the order offered by the quality flow
var DefaultQualityOptions = []Quality{QualityAudio, Quality360, Quality720, Quality1080}

// QualityOffer is a pending quality choice for a URL, awaiting a numeric reply
type QualityOffer struct {
	URL     string
	Options []Quality
}

// PendingKind tells which follow-up a numeric reply resolves
type PendingKind int

const (
	PendingSearch PendingKind = iota + 1
	PendingQuality
)

// Pending is the per-chat state a numeric reply resolves against
type Pending struct {
	Kind      PendingKind
	Search    *SearchResultSet
	Offer     *QualityOffer
	CreatedAt time.Time
}

// NewSearchPending wraps a result set
func NewSearchPending(set *SearchResultSet) *Pending {
	return &Pending{Kind: PendingSearch, Search: set, CreatedAt: time.Now()}
}

// NewQualityPending wraps a quality offer
func NewQualityPending(offer *QualityOffer) *Pending {
	return &Pending{Kind: PendingQuality, Offer: offer, CreatedAt: time.Now()}
}

// Len returns the number of selectable entries
func (p *Pending) Len() int {
	switch p.Kind {
	case PendingSearch:
		if p.Search == nil {
			return 0
		}
		return len(p.Search.Items)
	case PendingQuality:
		if p.Offer == nil {
			return 0
		}
		return len(p.Offer.Options)
	}
	return 0
}

// Choice is a resolved selection
type Choice struct {
	URL     string
	Title   string
	Quality Quality
}

// Choose resolves a 1-based index. index 0 or beyond Len yields ErrSelectionOutOfRange.
func (p *Pending) Choose(index int) (Choice, error) {
	if index < 1 || index > p.Len() {
		return Choice{}, ErrSelectionOutOfRange
	}
	switch p.Kind {
	case PendingSearch:
		item := p.Search.Items[index-1]
		return Choice{URL: item.URL, Title: item.Title, Quality: QualityAudio}, nil
	case PendingQuality:
		return Choice{URL: p.Offer.URL, Quality: p.Offer.Options[index-1]}, nil
	}
	return Choice{}, ErrNoActiveSelection
}
