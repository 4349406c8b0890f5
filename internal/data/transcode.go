package data

import (
	"context"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ffmpeg"
)

type transcoder interface {
	Transcode(ctx context.Context, inPath string, target domain.Format, bitrate, dir string) (string, error)
}

// transcodeRepo implements the transcode repository
type transcodeRepo struct {
	t transcoder
}

// NewTranscodeRepo creates a transcode repository
func NewTranscodeRepo(t *ffmpeg.Transcoder) repo.TranscodeRepo {
	return &transcodeRepo{t: t}
}

// Transcode converts the asset
func (r *transcodeRepo) Transcode(ctx context.Context, in *domain.Asset, target domain.Format, bitrate string, dir string) (*domain.Asset, error) {
	out, err := r.t.Transcode(ctx, in.Path, target, bitrate, dir)
	if err != nil {
		return nil, err
	}
	return describeAsset(out, in.Title)
}
