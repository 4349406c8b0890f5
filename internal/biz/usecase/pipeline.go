package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// ScratchPrefix prefixes every per-job scratch directory under WorkDir
const ScratchPrefix = "job-"

// PipelineConfig contains pipeline limits
type PipelineConfig struct {
	WorkDir          string
	SearchTimeout    time.Duration
	FetchTimeout     time.Duration
	TranscodeTimeout time.Duration
	SendTimeout      time.Duration
	AudioFormat      domain.Format
	AudioBitrate     string
	MaxUploadBytes   int64 // 0 disables the check
}

// DefaultPipelineConfig is used when no configuration is provided
var DefaultPipelineConfig = PipelineConfig{
	WorkDir:          os.TempDir(),
	SearchTimeout:    30 * time.Second,
	FetchTimeout:     5 * time.Minute,
	TranscodeTimeout: 3 * time.Minute,
	SendTimeout:      2 * time.Minute,
	AudioFormat:      domain.FormatMP3,
	AudioBitrate:     "192k",
	MaxUploadBytes:   30 << 20,
}

// PipelineUsecase drives one job through search, fetch, transcode and send.
// Every local file a job produces lives in its scratch directory, which is
// removed before the entry point returns.
type PipelineUsecase struct {
	cfg           PipelineConfig
	searchRepo    repo.SearchRepo
	fetchRepo     repo.FetchRepo
	transcodeRepo repo.TranscodeRepo
	transport     repo.TransportRepo
	selection     *SelectionUsecase
	texts         *ReplyTexts
	log           *slog.Logger
}

// NewPipelineUsecase creates a pipeline
func NewPipelineUsecase(
	cfg PipelineConfig,
	searchRepo repo.SearchRepo,
	fetchRepo repo.FetchRepo,
	transcodeRepo repo.TranscodeRepo,
	transport repo.TransportRepo,
	selection *SelectionUsecase,
	texts *ReplyTexts,
) *PipelineUsecase {
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultPipelineConfig.WorkDir
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = DefaultPipelineConfig.AudioFormat
	}
	if texts == nil {
		texts = DefaultReplyTexts()
	}
	return &PipelineUsecase{
		cfg:           cfg,
		searchRepo:    searchRepo,
		fetchRepo:     fetchRepo,
		transcodeRepo: transcodeRepo,
		transport:     transport,
		selection:     selection,
		texts:         texts,
		log:           logger.Component("pipeline"),
	}
}

// Config returns the pipeline configuration
func (uc *PipelineUsecase) Config() PipelineConfig {
	return uc.cfg
}

// Run dispatches the job by mode
func (uc *PipelineUsecase) Run(ctx context.Context, job *domain.Job) error {
	switch job.Mode {
	case domain.ModeList:
		return uc.SearchAndList(ctx, job)
	case domain.ModeBest:
		return uc.ResolveAndDownloadBest(ctx, job)
	default:
		return uc.Acquire(ctx, job)
	}
}

// SearchAndList searches, stores the top results as the chat's pending
// selection and replies with the list. Nothing is downloaded.
func (uc *PipelineUsecase) SearchAndList(ctx context.Context, job *domain.Job) (err error) {
	defer uc.finish(job, &err)

	items, err := uc.searchStage(ctx, job, domain.MaxSearchItems)
	if err != nil {
		return err
	}

	set := domain.NewSearchResultSet(job.Source.Query, items)
	uc.selection.Put(job.ChatID, domain.NewSearchPending(set))

	err = uc.stage(ctx, uc.cfg.SendTimeout, domain.KindSend, "send", func(ctx context.Context) error {
		return uc.transport.SendText(ctx, job.ChatID, uc.texts.FormatResults(set))
	})
	if err != nil {
		return err
	}
	return advance(job, domain.JobDone)
}

// ResolveAndDownloadBest searches and delivers the top result
func (uc *PipelineUsecase) ResolveAndDownloadBest(ctx context.Context, job *domain.Job) (err error) {
	defer uc.finish(job, &err)

	items, err := uc.searchStage(ctx, job, 1)
	if err != nil {
		return err
	}
	top := items[0]
	return uc.deliverURL(ctx, job, top.URL, top.Title)
}

// Acquire delivers a URL or attachment source without searching
func (uc *PipelineUsecase) Acquire(ctx context.Context, job *domain.Job) (err error) {
	defer uc.finish(job, &err)

	src := job.Source
	switch src.Kind {
	case domain.SourceURL:
		return uc.deliverURL(ctx, job, src.URL, src.Title)
	case domain.SourceAttachment:
		if src.Attachment == nil {
			return domain.NewJobError(domain.KindBadRequest, "acquire", errors.New("missing attachment"))
		}
		att := *src.Attachment
		return uc.deliver(ctx, job, "", func(ctx context.Context, dir string) (*domain.Asset, error) {
			return uc.fetchRepo.FetchAttachment(ctx, att, dir)
		})
	}
	return domain.NewJobError(domain.KindBadRequest, "acquire", fmt.Errorf("source %s needs a search", src.Kind))
}

func (uc *PipelineUsecase) searchStage(ctx context.Context, job *domain.Job, limit int) ([]domain.SearchItem, error) {
	if job.Source.Kind != domain.SourceQuery {
		return nil, domain.NewJobError(domain.KindBadRequest, "search", fmt.Errorf("source %s is not a query", job.Source.Kind))
	}
	if err := advance(job, domain.JobSearching); err != nil {
		return nil, err
	}

	var items []domain.SearchItem
	err := uc.stage(ctx, uc.cfg.SearchTimeout, domain.KindFetch, "search", func(ctx context.Context) error {
		var err error
		items, err = uc.searchRepo.Search(ctx, job.Source.Query, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.NewJobError(domain.KindNoSearchResults, "search", domain.ErrNoSearchResults)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (uc *PipelineUsecase) deliverURL(ctx context.Context, job *domain.Job, url, title string) error {
	label := title
	if label == "" {
		label = url
	}
	uc.notify(ctx, job.ChatID, fmt.Sprintf(uc.texts.Downloading, label))

	opts := repo.FetchOptions{
		AudioOnly: job.Output.AudioOnly,
		Quality:   job.Output.Quality,
	}
	if title != "" {
		opts.Name = domain.SanitizeTitle(title)
	}
	return uc.deliver(ctx, job, title, func(ctx context.Context, dir string) (*domain.Asset, error) {
		return uc.fetchRepo.Fetch(ctx, url, opts, dir)
	})
}

type fetchFunc func(ctx context.Context, dir string) (*domain.Asset, error)

// deliver runs Fetching -> [Transcoding] -> Sending -> Done inside a fresh
// scratch directory.
func (uc *PipelineUsecase) deliver(ctx context.Context, job *domain.Job, title string, fetch fetchFunc) error {
	if err := advance(job, domain.JobFetching); err != nil {
		return err
	}

	dir, err := uc.scratchDir()
	if err != nil {
		return domain.NewJobError(domain.KindInternal, "scratch", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			uc.log.Warn("failed to remove scratch dir", logger.FieldJobID, job.ID, logger.FieldPath, dir, logger.FieldError, rmErr)
		}
	}()

	var asset *domain.Asset
	err = uc.stage(ctx, uc.cfg.FetchTimeout, domain.KindFetch, "fetch", func(ctx context.Context) error {
		var err error
		asset, err = fetch(ctx, dir)
		return err
	})
	if err != nil {
		return err
	}
	if asset.Title == "" {
		asset.Title = title
	}

	if target := job.Output.Format; target != "" && asset.Format() != target {
		if err := advance(job, domain.JobTranscoding); err != nil {
			return err
		}
		in := asset
		err = uc.stage(ctx, uc.cfg.TranscodeTimeout, domain.KindConversion, "transcode", func(ctx context.Context) error {
			var err error
			asset, err = uc.transcodeRepo.Transcode(ctx, in, target, job.Output.Bitrate, dir)
			return err
		})
		if err != nil {
			return err
		}
		if asset.Title == "" {
			asset.Title = in.Title
		}
	}

	if err := advance(job, domain.JobSending); err != nil {
		return err
	}
	if fi, statErr := os.Stat(asset.Path); statErr == nil {
		asset.SizeBytes = fi.Size()
	}
	if uc.cfg.MaxUploadBytes > 0 && asset.SizeBytes > uc.cfg.MaxUploadBytes {
		return domain.NewJobError(domain.KindSend, "send",
			fmt.Errorf("%w: %d bytes", domain.ErrTooLarge, asset.SizeBytes))
	}

	err = uc.stage(ctx, uc.cfg.SendTimeout, domain.KindSend, "send", func(ctx context.Context) error {
		return uc.transport.SendMedia(ctx, job.ChatID, asset, job.Output.Caption)
	})
	if err != nil {
		return err
	}

	uc.log.Info("job delivered",
		logger.FieldJobID, job.ID,
		logger.FieldChatID, job.ChatID,
		logger.FieldPath, asset.FileName(),
		logger.FieldBytes, asset.SizeBytes,
	)
	return advance(job, domain.JobDone)
}

// stage runs fn under its own timeout. Errors are classified as kind unless
// the job was cancelled or the stage timed out.
func (uc *PipelineUsecase) stage(ctx context.Context, timeout time.Duration, kind domain.ErrorKind, op string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewJobError(domain.KindCancelled, op, err)
	}
	sctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := fn(sctx)
	if err == nil {
		return nil
	}
	var je *domain.JobError
	switch {
	case errors.As(err, &je):
		return err
	case ctx.Err() != nil:
		return domain.NewJobError(domain.KindCancelled, op, err)
	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		return domain.NewJobError(domain.KindTimeout, op, err)
	}
	return domain.NewJobError(kind, op, err)
}

func (uc *PipelineUsecase) scratchDir() (string, error) {
	if err := os.MkdirAll(uc.cfg.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return os.MkdirTemp(uc.cfg.WorkDir, ScratchPrefix+"*")
}

// notify sends a best-effort progress reply
func (uc *PipelineUsecase) notify(ctx context.Context, chatID domain.Identity, text string) {
	sctx, cancel := context.WithTimeout(ctx, uc.cfg.SendTimeout)
	defer cancel()
	if err := uc.transport.SendText(sctx, chatID, text); err != nil {
		uc.log.Warn("progress reply failed", logger.FieldChatID, chatID, logger.FieldError, err)
	}
}

func (uc *PipelineUsecase) finish(job *domain.Job, errp *error) {
	if *errp == nil {
		return
	}
	job.Fail(failReason(*errp))
	uc.log.Warn("job failed",
		logger.FieldJobID, job.ID,
		logger.FieldChatID, job.ChatID,
		logger.FieldState, job.State(),
		logger.FieldError, *errp,
	)
}

func advance(job *domain.Job, to domain.JobState) error {
	if err := job.Transition(to); err != nil {
		return domain.NewJobError(domain.KindInternal, "transition", err)
	}
	return nil
}

func failReason(err error) string {
	switch domain.KindOf(err) {
	case domain.KindNoSearchResults:
		return "no results"
	case domain.KindConversion:
		return "conversion error"
	case domain.KindFetch:
		return "fetch error"
	case domain.KindSend:
		return "send error"
	case domain.KindCancelled:
		return "cancelled"
	case domain.KindTimeout:
		return "timeout"
	}
	return err.Error()
}
