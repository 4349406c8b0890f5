package repo

import (
	"context"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// SearchRepo is the media search capability
type SearchRepo interface {
	// Search returns up to limit results in provider order
	Search(ctx context.Context, query string, limit int) ([]domain.SearchItem, error)
}

// FetchOptions controls a download
type FetchOptions struct {
	AudioOnly bool
	Quality   domain.Quality
	// Name is the sanitized file stem. Empty means derive it from the provider title.
	Name string
}

// FetchRepo is the raw downloader capability
type FetchRepo interface {
	// Fetch downloads url into dir
	Fetch(ctx context.Context, url string, opts FetchOptions, dir string) (*domain.Asset, error)

	// FetchAttachment saves an inbound attachment into dir (pass-through, no provider call)
	FetchAttachment(ctx context.Context, att domain.Attachment, dir string) (*domain.Asset, error)
}

// TranscodeRepo is the audio/video transcoder capability
type TranscodeRepo interface {
	// Transcode converts in to target inside dir. bitrate applies to audio targets.
	Transcode(ctx context.Context, in *domain.Asset, target domain.Format, bitrate string, dir string) (*domain.Asset, error)
}
