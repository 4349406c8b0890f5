package data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ytdlp"
)

type fakeDownloader struct {
	items []ytdlp.Item
	req   ytdlp.Request
	write []byte
}

func (f *fakeDownloader) Search(ctx context.Context, query string, limit int) ([]ytdlp.Item, error) {
	return f.items, nil
}

func (f *fakeDownloader) Download(ctx context.Context, req ytdlp.Request) (*ytdlp.Result, error) {
	f.req = req
	path := filepath.Join(req.Dir, req.Name+".mp4")
	if err := os.WriteFile(path, f.write, 0o644); err != nil {
		return nil, err
	}
	return &ytdlp.Result{Path: path, Title: "Raw Title"}, nil
}

type fakeTransport struct {
	repo.TransportRepo
	content []byte
	name    string
}

func (f *fakeTransport) DownloadAttachment(ctx context.Context, att domain.Attachment, dir string) (string, error) {
	path := filepath.Join(dir, f.name)
	return path, os.WriteFile(path, f.content, 0o644)
}

// minimal WAV header, enough for type sniffing
var wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x01\x00\x44\xac\x00\x00\x88\x58\x01\x00\x02\x00\x10\x00data\x00\x00\x00\x00")

func TestMediaRepo_Search(t *testing.T) {
	dl := &fakeDownloader{items: []ytdlp.Item{{Title: "A", URL: "https://youtu.be/a", Duration: time.Minute}}}
	r := &MediaRepo{dl: dl}

	items, err := r.Search(context.Background(), "a", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].URL != "https://youtu.be/a" || items[0].Duration != time.Minute {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestMediaRepo_FetchMapsQuality(t *testing.T) {
	dl := &fakeDownloader{write: []byte("video")}
	r := &MediaRepo{dl: dl}
	dir := t.TempDir()

	asset, err := r.Fetch(context.Background(), "https://youtu.be/a", repo.FetchOptions{Quality: domain.Quality720, Name: "clip"}, dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if dl.req.Height != 720 || dl.req.AudioOnly {
		t.Errorf("unexpected request %+v", dl.req)
	}
	if asset.SizeBytes != 5 || asset.Title != "Raw Title" || asset.FileName() != "clip.mp4" {
		t.Errorf("unexpected asset %+v", asset)
	}
}

func TestMediaRepo_FetchAttachmentAddsExtension(t *testing.T) {
	tr := &fakeTransport{content: wavHeader, name: "file_v2_abc"}
	r := &MediaRepo{transport: tr}

	asset, err := r.FetchAttachment(context.Background(), domain.Attachment{Kind: domain.AttachmentAudio, Key: "file_v2_abc"}, t.TempDir())
	if err != nil {
		t.Fatalf("FetchAttachment: %v", err)
	}
	if asset.Format() != domain.FormatWAV {
		t.Errorf("expected sniffed wav extension, got %q", asset.FileName())
	}
	if !strings.HasPrefix(asset.MimeType, "audio/") {
		t.Errorf("unexpected mime %q", asset.MimeType)
	}
}
