package data

import (
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ffmpeg"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ytdlp"
)

// Repositories contains all repositories
type Repositories struct {
	Transport repo.TransportRepo
	Search    repo.SearchRepo
	Fetch     repo.FetchRepo
	Transcode repo.TranscodeRepo
	Config    repo.ConfigRepo
}

// NewRepositories creates all repositories
func NewRepositories(
	feishuClient *feishu.Client,
	ytdlpClient *ytdlp.Client,
	transcoder *ffmpeg.Transcoder,
	dbPath string,
) (*Repositories, error) {
	configRepo, err := NewConfigRepo(dbPath)
	if err != nil {
		return nil, err
	}

	transport := NewFeishuRepo(feishuClient)
	media := NewMediaRepo(ytdlpClient, transport)

	return &Repositories{
		Transport: transport,
		Search:    media,
		Fetch:     media,
		Transcode: NewTranscodeRepo(transcoder),
		Config:    configRepo,
	}, nil
}

// Close releases held resources
func (r *Repositories) Close() error {
	if r.Config != nil {
		return r.Config.Close()
	}
	return nil
}
