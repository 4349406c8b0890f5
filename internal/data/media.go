package data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ytdlp"
)

// downloader is the part of ytdlp.Client the repository uses
type downloader interface {
	Search(ctx context.Context, query string, limit int) ([]ytdlp.Item, error)
	Download(ctx context.Context, req ytdlp.Request) (*ytdlp.Result, error)
}

// MediaRepo implements the search and fetch repositories
type MediaRepo struct {
	dl        downloader
	transport repo.TransportRepo
}

// NewMediaRepo creates a media repository. Attachments are fetched through
// the transport, URLs through yt-dlp.
func NewMediaRepo(dl *ytdlp.Client, transport repo.TransportRepo) *MediaRepo {
	return &MediaRepo{dl: dl, transport: transport}
}

// Search searches the provider
func (r *MediaRepo) Search(ctx context.Context, query string, limit int) ([]domain.SearchItem, error) {
	items, err := r.dl.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	result := make([]domain.SearchItem, 0, len(items))
	for _, it := range items {
		result = append(result, domain.SearchItem{Title: it.Title, URL: it.URL, Duration: it.Duration})
	}
	return result, nil
}

// Fetch downloads url into dir
func (r *MediaRepo) Fetch(ctx context.Context, url string, opts repo.FetchOptions, dir string) (*domain.Asset, error) {
	res, err := r.dl.Download(ctx, ytdlp.Request{
		URL:       url,
		AudioOnly: opts.AudioOnly,
		Height:    opts.Quality.Height(),
		Name:      opts.Name,
		Dir:       dir,
	})
	if err != nil {
		return nil, err
	}
	return describeAsset(res.Path, res.Title)
}

// FetchAttachment saves an inbound attachment into dir
func (r *MediaRepo) FetchAttachment(ctx context.Context, att domain.Attachment, dir string) (*domain.Asset, error) {
	path, err := r.transport.DownloadAttachment(ctx, att, dir)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	path, err = ensureExtension(path)
	if err != nil {
		return nil, err
	}
	return describeAsset(path, strings.TrimSuffix(att.FileName, filepath.Ext(att.FileName)))
}

// ensureExtension renames a file without extension after its detected type.
// Transport resources are often saved under their bare key.
func ensureExtension(path string) (string, error) {
	if filepath.Ext(path) != "" {
		return path, nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect type: %w", err)
	}
	ext := mt.Extension()
	if ext == "" {
		return path, nil
	}
	renamed := path + ext
	if err := os.Rename(path, renamed); err != nil {
		return "", fmt.Errorf("rename attachment: %w", err)
	}
	return renamed, nil
}

// describeAsset stats the file and sniffs its MIME type
func describeAsset(path, title string) (*domain.Asset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat asset: %w", err)
	}
	asset := &domain.Asset{Path: path, SizeBytes: fi.Size(), Title: title}
	if mt, err := mimetype.DetectFile(path); err == nil {
		asset.MimeType = mt.String()
	}
	return asset, nil
}
