package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
	"github.com/DevRickLin/feishu-media-bridge/pkg/util"
)

// CommandPrefix starts every command
const CommandPrefix = "!"

var (
	providerURL = regexp.MustCompile(`(?i)https?://(?:(?:www|m|music)\.)?(?:youtube\.com/(?:watch\?[^\s]*v=|shorts/)[\w-]+|youtu\.be/[\w-]+|soundcloud\.com/[^\s]+)[^\s]*`)
	bareNumber  = regexp.MustCompile(`^\d{1,3}$`)
)

// Command is a parsed !command
type Command struct {
	Name string
	Args string
}

// ParseCommand splits "!name args". The name is the whole first token, so
// "!songinfo" never matches "song".
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, CommandPrefix) {
		return Command{}, false
	}
	body := strings.TrimPrefix(text, CommandPrefix)
	end := strings.IndexFunc(body, unicode.IsSpace)
	if end < 0 {
		end = len(body)
	}
	if end == 0 {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(body[:end]), Args: strings.TrimSpace(body[end:])}, true
}

// FindProviderURL returns the first supported media URL in text
func FindProviderURL(text string) string {
	return providerURL.FindString(text)
}

// RouterConfig contains output settings for started jobs
type RouterConfig struct {
	AudioFormat  domain.Format
	AudioBitrate string
	ReplyTimeout time.Duration
}

// RouterService interprets messages and dispatches them
type RouterService struct {
	cfg       RouterConfig
	access    *usecase.AccessUsecase
	selection *usecase.SelectionUsecase
	memo      *usecase.AttachmentMemo
	tracker   *usecase.JobTracker
	pipeline  *usecase.PipelineUsecase
	transport repo.TransportRepo
	texts     *usecase.ReplyTexts
	log       *slog.Logger

	wg sync.WaitGroup
}

// NewRouterService creates a router
func NewRouterService(
	cfg RouterConfig,
	access *usecase.AccessUsecase,
	selection *usecase.SelectionUsecase,
	memo *usecase.AttachmentMemo,
	tracker *usecase.JobTracker,
	pipeline *usecase.PipelineUsecase,
	transport repo.TransportRepo,
	texts *usecase.ReplyTexts,
) *RouterService {
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = domain.FormatMP3
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}
	if texts == nil {
		texts = usecase.DefaultReplyTexts()
	}
	return &RouterService{
		cfg:       cfg,
		access:    access,
		selection: selection,
		memo:      memo,
		tracker:   tracker,
		pipeline:  pipeline,
		transport: transport,
		texts:     texts,
		log:       logger.Component("router"),
	}
}

// Route handles one message. It returns false when the message was ignored.
// Jobs started here run on their own goroutines with contexts derived from ctx.
func (r *RouterService) Route(ctx context.Context, msg *domain.IncomingMessage) bool {
	text := strings.TrimSpace(msg.Text)
	cmd, isCmd := ParseCommand(text)

	if isCmd && cmd.Name == "help" {
		r.reply(msg.ChatID, r.texts.HelpFor(r.access.IsAdmin(msg.SenderID)))
		return true
	}

	// Only attachments from permitted senders are kept for !convert.
	att, hasAtt := msg.FirstAttachment()
	if hasAtt && att.IsConvertible() && r.access.Allow(msg.SenderID) {
		r.memo.Remember(msg.ChatID, att)
	}

	url := FindProviderURL(text)
	isNumber := bareNumber.MatchString(text)

	switch {
	case isCmd, isNumber, url != "":
	case hasAtt && !msg.IsGroup:
	default:
		return false
	}

	if !r.access.Allow(msg.SenderID) {
		r.log.Info("access denied", logger.FieldChatID, msg.ChatID, logger.FieldSenderID, msg.SenderID)
		r.reply(msg.ChatID, r.texts.AccessDenied)
		return true
	}

	switch {
	case isCmd:
		return r.handleCommand(ctx, msg, cmd)
	case isNumber:
		n, _ := strconv.Atoi(text)
		r.handleSelection(ctx, msg, n)
	case url != "":
		r.startAudio(ctx, msg, domain.Source{Kind: domain.SourceURL, URL: url}, domain.ModeDirect)
	default:
		return r.handleAttachment(ctx, msg, att)
	}
	return true
}

func (r *RouterService) handleCommand(ctx context.Context, msg *domain.IncomingMessage, cmd Command) bool {
	r.log.Info("command received",
		logger.FieldCommand, cmd.Name,
		logger.FieldChatID, msg.ChatID,
		logger.FieldSenderID, msg.SenderID,
	)

	switch cmd.Name {
	case "public", "private", "allow", "deny", "allowlist":
		if !r.access.IsAdmin(msg.SenderID) {
			r.reply(msg.ChatID, r.texts.AdminOnly)
			return true
		}
		r.handleAdmin(ctx, msg, cmd)

	case "song":
		if cmd.Args == "" {
			r.reply(msg.ChatID, r.texts.UsageSong)
			return true
		}
		r.startAudio(ctx, msg, domain.Source{Kind: domain.SourceQuery, Query: cmd.Args}, domain.ModeList)

	case "play":
		if cmd.Args == "" {
			r.reply(msg.ChatID, r.texts.UsagePlay)
			return true
		}
		r.startAudio(ctx, msg, domain.Source{Kind: domain.SourceQuery, Query: cmd.Args}, domain.ModeBest)

	case "video":
		url := FindProviderURL(cmd.Args)
		if url == "" {
			r.reply(msg.ChatID, r.texts.UsageVideo)
			return true
		}
		offer := &domain.QualityOffer{URL: url, Options: domain.DefaultQualityOptions}
		r.selection.Put(msg.ChatID, domain.NewQualityPending(offer))
		r.reply(msg.ChatID, r.texts.FormatQualityOffer(offer))

	case "download":
		n, err := strconv.Atoi(cmd.Args)
		if err != nil {
			pending, ok := r.selection.Peek(msg.ChatID)
			if !ok {
				r.reply(msg.ChatID, r.texts.NoActiveSelection)
				return true
			}
			r.reply(msg.ChatID, r.texts.OutOfRange(pending.Len()))
			return true
		}
		r.handleSelection(ctx, msg, n)

	case "convert":
		r.handleConvert(ctx, msg, cmd.Args)

	case "groupinfo", "groupstats":
		r.handleGroupInfo(ctx, msg)

	case "cancel":
		if r.tracker.Cancel(msg.ChatID) {
			r.reply(msg.ChatID, r.texts.CancelRequested)
		} else {
			r.reply(msg.ChatID, r.texts.NothingToCancel)
		}

	default:
		r.log.Info("unknown command", logger.FieldCommand, cmd.Name, logger.FieldChatID, msg.ChatID)
		return false
	}
	return true
}

func (r *RouterService) handleAdmin(ctx context.Context, msg *domain.IncomingMessage, cmd Command) {
	switch cmd.Name {
	case "public", "private":
		public := cmd.Name == "public"
		if err := r.access.SetPublicMode(ctx, public); err != nil {
			r.replyError(msg.ChatID, err)
			return
		}
		if public {
			r.reply(msg.ChatID, r.texts.PublicOn)
		} else {
			r.reply(msg.ChatID, r.texts.PrivateOn)
		}

	case "allow":
		id := targetIdentity(msg, cmd.Args)
		if id.IsZero() {
			r.reply(msg.ChatID, r.texts.UsageAllow)
			return
		}
		added, err := r.access.AllowIdentity(ctx, id, msg.SenderID)
		if err != nil {
			r.replyError(msg.ChatID, err)
			return
		}
		if added {
			r.reply(msg.ChatID, fmt.Sprintf(r.texts.Allowed, id))
		} else {
			r.reply(msg.ChatID, fmt.Sprintf(r.texts.AlreadyAllowed, id))
		}

	case "deny":
		id := targetIdentity(msg, cmd.Args)
		if id.IsZero() {
			r.reply(msg.ChatID, r.texts.UsageDeny)
			return
		}
		removed, err := r.access.RevokeIdentity(ctx, id)
		if err != nil {
			r.replyError(msg.ChatID, err)
			return
		}
		if removed {
			r.reply(msg.ChatID, fmt.Sprintf(r.texts.Denied, id))
		} else {
			r.reply(msg.ChatID, fmt.Sprintf(r.texts.NotAllowed, id))
		}

	case "allowlist":
		r.reply(msg.ChatID, r.texts.FormatAllowList(r.access.Snapshot()))
	}
}

// targetIdentity resolves the argument of !allow / !deny. An @mention
// argument resolves to the first mentioned user.
func targetIdentity(msg *domain.IncomingMessage, arg string) domain.Identity {
	if strings.HasPrefix(arg, "@") && len(msg.Mentions) > 0 {
		return msg.Mentions[0]
	}
	return domain.NormalizeIdentity(arg)
}

// handleSelection resolves a numeric reply and starts the download
func (r *RouterService) handleSelection(ctx context.Context, msg *domain.IncomingMessage, n int) {
	tok, jobCtx, err := r.tracker.TryStart(ctx, msg.ChatID)
	if err != nil {
		r.replyError(msg.ChatID, err)
		return
	}

	choice, err := r.selection.Resolve(msg.ChatID, n)
	if err != nil {
		r.tracker.Finish(tok)
		if errors.Is(err, domain.ErrSelectionOutOfRange) {
			if p, ok := r.selection.Peek(msg.ChatID); ok {
				r.reply(msg.ChatID, r.texts.OutOfRange(p.Len()))
				return
			}
		}
		r.replyError(msg.ChatID, err)
		return
	}

	src := domain.Source{Kind: domain.SourceURL, URL: choice.URL, Title: choice.Title}
	out := r.audioOutput()
	if choice.Quality != domain.QualityAudio {
		out = domain.Output{Quality: choice.Quality, Format: domain.FormatMP4, Caption: r.texts.VideoCaption}
	}
	r.launch(tok, jobCtx, msg, src, domain.ModeDirect, out)
}

func (r *RouterService) handleConvert(ctx context.Context, msg *domain.IncomingMessage, arg string) {
	if arg == "" {
		r.reply(msg.ChatID, r.texts.UsageConvert)
		return
	}
	format, ok := domain.ParseAudioFormat(arg)
	if !ok {
		r.reply(msg.ChatID, fmt.Sprintf(r.texts.BadFormat, usecase.SupportedFormats()))
		return
	}
	att, ok := r.memo.Last(msg.ChatID)
	if !ok {
		r.reply(msg.ChatID, r.texts.NothingToConvert)
		return
	}

	out := domain.Output{AudioOnly: true, Format: format, Bitrate: r.cfg.AudioBitrate, Caption: r.texts.FileCaption}
	r.start(ctx, msg, domain.Source{Kind: domain.SourceAttachment, Attachment: &att}, domain.ModeDirect, out)
}

func (r *RouterService) handleGroupInfo(ctx context.Context, msg *domain.IncomingMessage) {
	if !msg.IsGroup {
		r.reply(msg.ChatID, r.texts.GroupOnly)
		return
	}
	info, err := r.transport.GetChatInfo(ctx, msg.ChatID)
	if err != nil {
		r.log.Warn("get chat info failed", logger.FieldChatID, msg.ChatID, logger.FieldError, err)
		r.reply(msg.ChatID, r.texts.Internal)
		return
	}
	r.reply(msg.ChatID, fmt.Sprintf(r.texts.GroupInfo, info.Name, info.MemberCount))
}

// handleAttachment runs the pass-through pipeline for a direct-chat attachment
func (r *RouterService) handleAttachment(ctx context.Context, msg *domain.IncomingMessage, att domain.Attachment) bool {
	src := domain.Source{Kind: domain.SourceAttachment, Attachment: &att}
	switch att.Kind {
	case domain.AttachmentImage:
		r.start(ctx, msg, src, domain.ModeDirect, domain.Output{Format: domain.FormatWebP})
	case domain.AttachmentVideo, domain.AttachmentAudio:
		r.start(ctx, msg, src, domain.ModeDirect, r.audioOutput())
	default:
		return false
	}
	return true
}

func (r *RouterService) audioOutput() domain.Output {
	return domain.Output{
		AudioOnly: true,
		Quality:   domain.QualityAudio,
		Format:    r.cfg.AudioFormat,
		Bitrate:   r.cfg.AudioBitrate,
		Caption:   r.texts.SongCaption,
	}
}

func (r *RouterService) startAudio(ctx context.Context, msg *domain.IncomingMessage, src domain.Source, mode domain.JobMode) {
	r.start(ctx, msg, src, mode, r.audioOutput())
}

// start leases the chat and launches the job, or replies Busy
func (r *RouterService) start(ctx context.Context, msg *domain.IncomingMessage, src domain.Source, mode domain.JobMode, out domain.Output) {
	tok, jobCtx, err := r.tracker.TryStart(ctx, msg.ChatID)
	if err != nil {
		r.log.Info("chat busy", logger.FieldChatID, msg.ChatID)
		r.replyError(msg.ChatID, err)
		return
	}
	r.launch(tok, jobCtx, msg, src, mode, out)
}

func (r *RouterService) launch(tok usecase.Token, jobCtx context.Context, msg *domain.IncomingMessage, src domain.Source, mode domain.JobMode, out domain.Output) {
	job := domain.NewJob(tok.ID, msg.ChatID, msg.SenderID, src, mode, out)
	r.tracker.Bind(tok, job)

	r.log.Info("job started",
		logger.FieldJobID, job.ID,
		logger.FieldChatID, job.ChatID,
		"source", src.Describe(),
		"mode", mode,
	)

	r.wg.Add(1)
	util.SafeGo(func() {
		defer r.wg.Done()
		defer r.tracker.Finish(tok)

		start := time.Now()
		err := r.pipeline.Run(jobCtx, job)
		r.log.Info("job finished",
			logger.FieldJobID, job.ID,
			logger.FieldState, job.State(),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		)
		if err != nil {
			r.replyError(job.ChatID, err)
		}
	})
}

// Wait blocks until every running job has returned
func (r *RouterService) Wait() {
	r.wg.Wait()
}

func (r *RouterService) replyError(chatID domain.Identity, err error) {
	if text := r.texts.ForError(err); text != "" {
		r.reply(chatID, text)
	}
}

func (r *RouterService) reply(chatID domain.Identity, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ReplyTimeout)
	defer cancel()
	if err := r.transport.SendText(ctx, chatID, text); err != nil {
		r.log.Warn("reply failed", logger.FieldChatID, chatID, logger.FieldError, err)
	}
}
