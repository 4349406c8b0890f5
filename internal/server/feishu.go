package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
	"github.com/DevRickLin/feishu-media-bridge/pkg/util"
)

const (
	inboxSize = 256
	dedupSize = 4096
	dedupTTL  = 10 * time.Minute
)

// MessageSource is the inbound side of the transport
type MessageSource interface {
	OnMessage(handler feishu.MessageHandler)
	OnStateChange(handler feishu.StateHandler)
	Start() error
	Stop()
}

// Router handles one inbound message
type Router interface {
	Route(ctx context.Context, msg *domain.IncomingMessage) bool
}

// JobCanceller cancels every running job
type JobCanceller interface {
	CancelAll() int
}

// FeishuServer feeds Feishu events into the router. Events are pushed onto a
// single inbound channel and drained by one dispatch goroutine.
type FeishuServer struct {
	source MessageSource
	router Router
	jobs   JobCanceller
	inbox  chan *domain.IncomingMessage
	seen   *expirable.LRU[string, struct{}]
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source MessageSource, router Router, jobs JobCanceller) *FeishuServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeishuServer{
		source: source,
		router: router,
		jobs:   jobs,
		inbox:  make(chan *domain.IncomingMessage, inboxSize),
		seen:   expirable.NewLRU[string, struct{}](dedupSize, nil, dedupTTL),
		log:    logger.Component("server"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the dispatch loop and connects the transport. It blocks while
// the transport is running.
func (s *FeishuServer) Start() error {
	s.wg.Add(1)
	util.SafeGo(func() {
		defer s.wg.Done()
		s.dispatchLoop()
	})

	s.source.OnMessage(s.handleMessage)
	s.source.OnStateChange(s.handleState)
	return s.source.Start()
}

// Stop disconnects the transport and stops dispatching
func (s *FeishuServer) Stop() {
	s.source.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *FeishuServer) dispatchLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.inbox:
			s.dispatch(msg)
		}
	}
}

func (s *FeishuServer) dispatch(msg *domain.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while routing message", logger.FieldMsgID, msg.MsgID, "panic", r)
		}
	}()
	if !s.router.Route(s.ctx, msg) {
		s.log.Debug("message ignored", logger.FieldMsgID, msg.MsgID, logger.FieldChatID, msg.ChatID)
	}
}

// handleMessage runs on the SDK event goroutine; it only converts and enqueues.
func (s *FeishuServer) handleMessage(raw *feishu.Message) {
	s.log.Debug("message received",
		logger.FieldMsgID, raw.MsgID,
		logger.FieldChatID, raw.ChatID,
		"type", raw.MsgType,
		"chat_type", raw.ChatType,
		"content", util.Truncate(raw.Content, 50),
	)

	if raw.MsgID != "" {
		if s.seen.Contains(raw.MsgID) {
			s.log.Debug("duplicate message ignored", logger.FieldMsgID, raw.MsgID)
			return
		}
		s.seen.Add(raw.MsgID, struct{}{})
	}

	msg := ToIncomingMessage(raw)
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
	default:
		s.log.Warn("inbox full, message dropped", logger.FieldMsgID, msg.MsgID, logger.FieldChatID, msg.ChatID)
	}
}

func (s *FeishuServer) handleState(state feishu.ConnState) {
	s.log.Info("connection state changed", logger.FieldState, state.String())
	if state == feishu.StateDisconnected {
		if n := s.jobs.CancelAll(); n > 0 {
			s.log.Warn("transport closed, jobs cancelled", logger.FieldCount, n)
		}
	}
}

// ToIncomingMessage converts a Feishu message into the domain message
func ToIncomingMessage(raw *feishu.Message) *domain.IncomingMessage {
	msg := &domain.IncomingMessage{
		MsgID:   raw.MsgID,
		ChatID:  domain.Identity(raw.ChatID),
		IsGroup: raw.ChatType != "" && raw.ChatType != "p2p",
		Text:    raw.Content,
	}
	if raw.Sender != nil {
		msg.SenderID = domain.NormalizeIdentity(raw.Sender.SenderID)
	}
	if raw.CreateTime > 0 {
		msg.ReceivedAt = time.UnixMilli(raw.CreateTime)
	} else {
		msg.ReceivedAt = time.Now()
	}
	for _, res := range raw.Resources {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			Kind:     attachmentKind(res),
			MsgID:    raw.MsgID,
			Key:      res.Key,
			FileName: res.FileName,
		})
	}
	for _, m := range raw.Mentions {
		if m.OpenID != "" {
			msg.Mentions = append(msg.Mentions, domain.Identity(m.OpenID))
		}
	}
	return msg
}

var extensionKinds = map[string]domain.AttachmentKind{
	".mp3": domain.AttachmentAudio, ".wav": domain.AttachmentAudio, ".ogg": domain.AttachmentAudio,
	".opus": domain.AttachmentAudio, ".m4a": domain.AttachmentAudio, ".flac": domain.AttachmentAudio,
	".aac": domain.AttachmentAudio,
	".mp4": domain.AttachmentVideo, ".mov": domain.AttachmentVideo, ".mkv": domain.AttachmentVideo,
	".webm": domain.AttachmentVideo, ".avi": domain.AttachmentVideo,
	".png": domain.AttachmentImage, ".jpg": domain.AttachmentImage, ".jpeg": domain.AttachmentImage,
	".gif": domain.AttachmentImage, ".webp": domain.AttachmentImage,
}

func attachmentKind(res feishu.Resource) domain.AttachmentKind {
	switch res.Type {
	case "image":
		return domain.AttachmentImage
	case "audio":
		return domain.AttachmentAudio
	case "media":
		return domain.AttachmentVideo
	}
	if kind, ok := extensionKinds[strings.ToLower(filepath.Ext(res.FileName))]; ok {
		return kind
	}
	return domain.AttachmentFile
}
