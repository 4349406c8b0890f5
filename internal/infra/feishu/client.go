package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
	"github.com/DevRickLin/feishu-media-bridge/pkg/util"
)

// Message represents a received Feishu message
type Message struct {
	ChatID      string
	MsgID       string
	MsgType     string // text, post, image, file, audio, media
	ChatType    string // p2p (private), group
	Content     string // text with the bot mention removed
	Resources   []Resource
	Sender      *Sender
	Mentions    []Mention // mentioned users, bot excluded
	MentionsBot bool
	CreateTime  int64 // milliseconds
}

// Resource is a downloadable attachment carried by a message
type Resource struct {
	Type     string // image, file, audio, media
	Key      string // image_key or file_key
	FileName string
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// Mention is a user mentioned in a message
type Mention struct {
	Key    string // placeholder in the text, e.g. @_user_1
	OpenID string
	Name   string
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	ChatMode    string `json:"chat_mode"`
	MemberCount int    `json:"user_count"`
}

// ConnState is the websocket connection state
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
)

func (s ConnState) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// MessageHandler is the callback for received messages. It runs on the SDK
// event goroutine and must return quickly so the event is acknowledged.
type MessageHandler func(msg *Message)

// StateHandler is notified when the connection opens or closes
type StateHandler func(state ConnState)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	limiter   *rate.Limiter
	log       *slog.Logger

	sdkLog  *sdkLogger
	connect func(ctx context.Context) error

	mu        sync.RWMutex
	onMessage MessageHandler
	onState   StateHandler
	state     ConnState
	stopped   bool
	botOpenID string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new Feishu client. Outbound API calls are limited to
// qps requests per second.
func NewClient(appID, appSecret string, qps float64, burst int) *Client {
	if burst < 1 {
		burst = 1
	}
	c := &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		limiter:   rate.NewLimiter(rate.Limit(qps), burst),
		log:       logger.Component("feishu"),
	}
	c.sdkLog = &sdkLogger{log: logger.Component("feishu-sdk"), onLine: c.observeSDKLine}
	return c
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

// OnStateChange sets the connection state handler
func (c *Client) OnStateChange(handler StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = handler
}

// Start connects to Feishu via WebSocket and blocks until Stop is called or
// the connection fails permanently. The SDK reconnects on its own.
func (c *Client) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.ctx, c.cancel = ctx, cancel
	c.mu.Unlock()

	if c.connect == nil {
		// Fetch bot's own open_id at startup
		if err := c.fetchBotOpenID(ctx); err != nil {
			c.log.Warn("failed to fetch bot open_id", logger.FieldError, err)
		}

		eventHandler := dispatcher.NewEventDispatcher("", "").
			OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
				c.handleMessage(event)
				return nil
			})

		c.wsCli = larkws.NewClient(c.appID, c.appSecret,
			larkws.WithEventHandler(eventHandler),
			larkws.WithLogger(c.sdkLog),
			larkws.WithLogLevel(larkcore.LogLevelInfo),
			larkws.WithAutoReconnect(true),
		)
		c.connect = c.wsCli.Start
	}

	c.log.Info("starting websocket connection")

	// The SDK's Start only returns on a failed first connect; otherwise it
	// parks forever, so it runs detached and Stop unblocks us via ctx.
	errCh := make(chan error, 1)
	util.SafeGo(func() {
		errCh <- c.connect(ctx)
	})

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	c.setState(StateDisconnected)
	return err
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	c.mu.Lock()
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// observeSDKLine tracks the connection state from the SDK's connect and
// disconnect log lines, which are the only signals it exposes.
func (c *Client) observeSDKLine(line string) {
	switch {
	case strings.HasPrefix(line, "connected to "):
		c.mu.RLock()
		ctx := c.ctx
		c.mu.RUnlock()
		if ctx != nil && ctx.Err() != nil {
			return
		}
		c.setState(StateConnected)
	case strings.HasPrefix(line, "disconnected to "):
		c.setState(StateDisconnected)
	}
}

// setState records the state and notifies the handler on changes only
func (c *Client) setState(state ConnState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	handler := c.onState
	c.mu.Unlock()

	c.log.Info("connection state changed", logger.FieldState, state.String())
	if handler != nil {
		handler(state)
	}
}

// sdkLogger routes websocket SDK logs into slog
type sdkLogger struct {
	log    *slog.Logger
	onLine func(line string)
}

func (l *sdkLogger) Debug(_ context.Context, args ...interface{}) {
	l.log.Debug(joinArgs(args))
}

func (l *sdkLogger) Info(_ context.Context, args ...interface{}) {
	line := joinArgs(args)
	l.log.Info(line)
	if l.onLine != nil {
		l.onLine(line)
	}
}

func (l *sdkLogger) Warn(_ context.Context, args ...interface{}) {
	l.log.Warn(joinArgs(args))
}

func (l *sdkLogger) Error(_ context.Context, args ...interface{}) {
	l.log.Error(joinArgs(args))
}

func joinArgs(args []interface{}) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

// BotOpenID returns the bot's own open_id, empty if unknown
func (c *Client) BotOpenID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botOpenID
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID(ctx context.Context) error {
	tokenReq := fmt.Sprintf(`{"app_id":"%s","app_secret":"%s"}`, c.appID, c.appSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		strings.NewReader(tokenReq))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tokenResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}

	infoReq, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	if err != nil {
		return err
	}
	infoReq.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.mu.Lock()
	c.botOpenID = botResult.Bot.OpenID
	c.mu.Unlock()
	c.log.Info("bot identity resolved", "open_id", botResult.Bot.OpenID, "name", botResult.Bot.AppName)
	return nil
}

// handleMessage converts a receive event and hands it to the handler
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	// Ignore messages sent by bots, including this one
	if s := event.Event.Sender; s != nil && s.SenderType != nil && *s.SenderType == "app" {
		return
	}

	msg := ConvertEvent(event, c.BotOpenID())
	if msg == nil {
		return
	}

	c.log.Debug("message received",
		"type", msg.MsgType,
		"chat_type", msg.ChatType,
		logger.FieldChatID, msg.ChatID,
		"content", util.Truncate(msg.Content, 50),
	)

	c.mu.RLock()
	handler := c.onMessage
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// ConvertEvent parses a receive event. Unsupported message types yield nil.
func ConvertEvent(event *larkim.P2MessageReceiveV1, botOpenID string) *Message {
	rawMsg := event.Event.Message
	msg := &Message{
		ChatID:  deref(rawMsg.ChatId),
		MsgID:   deref(rawMsg.MessageId),
		MsgType: deref(rawMsg.MessageType),
	}
	if ts, err := strconv.ParseInt(deref(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}
	msg.ChatType = deref(rawMsg.ChatType)

	if s := event.Event.Sender; s != nil {
		msg.Sender = &Sender{SenderType: deref(s.SenderType), TenantKey: deref(s.TenantKey)}
		if s.SenderId != nil {
			msg.Sender.SenderID = deref(s.SenderId.OpenId)
		}
	}

	var botKey string
	for _, m := range rawMsg.Mentions {
		if m == nil {
			continue
		}
		var openID string
		if m.Id != nil {
			openID = deref(m.Id.OpenId)
		}
		if openID != "" && openID == botOpenID {
			msg.MentionsBot = true
			botKey = deref(m.Key)
			continue
		}
		msg.Mentions = append(msg.Mentions, Mention{Key: deref(m.Key), OpenID: openID, Name: deref(m.Name)})
	}

	content := deref(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = parseTextContent(content)
	case "post":
		text, images := parsePostContent(content)
		msg.Content = text
		for _, key := range images {
			msg.Resources = append(msg.Resources, Resource{Type: "image", Key: key})
		}
	case "image", "file", "audio", "media":
		if res, ok := parseResourceContent(msg.MsgType, content); ok {
			msg.Resources = append(msg.Resources, res)
		}
	default:
		return nil
	}

	msg.Content = cleanMentions(msg.Content, botKey, msg.Mentions)
	return msg
}

// parseTextContent extracts text from a text message
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// parsePostContent extracts text and image keys from a rich text message
func parsePostContent(content string) (string, []string) {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag      string `json:"tag"`
			Text     string `json:"text,omitempty"`
			Href     string `json:"href,omitempty"`
			ImageKey string `json:"image_key,omitempty"`
			UserID   string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var lines []string
	var imageKeys []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var parts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				parts = append(parts, elem.Text)
			case "a":
				// links carry the real URL in href
				if elem.Href != "" {
					parts = append(parts, elem.Href)
				} else {
					parts = append(parts, elem.Text)
				}
			case "at":
				if elem.UserID != "" {
					parts = append(parts, elem.UserID)
				}
			case "img":
				if elem.ImageKey != "" {
					imageKeys = append(imageKeys, elem.ImageKey)
				}
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return strings.Join(lines, "\n"), imageKeys
}

// parseResourceContent extracts the resource key of a media message
func parseResourceContent(msgType, content string) (Resource, bool) {
	var parsed struct {
		ImageKey string `json:"image_key"`
		FileKey  string `json:"file_key"`
		FileName string `json:"file_name"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Resource{}, false
	}
	res := Resource{Type: msgType, FileName: parsed.FileName}
	if msgType == "image" {
		res.Key = parsed.ImageKey
	} else {
		res.Key = parsed.FileKey
	}
	return res, res.Key != ""
}

// cleanMentions removes the bot mention and replaces other placeholders
// with @Name
func cleanMentions(text, botKey string, mentions []Mention) string {
	if botKey != "" {
		text = strings.ReplaceAll(text, botKey, "")
	}
	for _, m := range mentions {
		if m.Key != "" && m.Name != "" {
			text = strings.ReplaceAll(text, m.Key, "@"+m.Name)
		}
	}
	return strings.TrimSpace(text)
}

// DownloadResource saves a message resource into dir and returns the file path
func (c *Client) DownloadResource(ctx context.Context, messageID string, res Resource, dir string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resType := "file"
	if res.Type == "image" {
		resType = "image"
	}
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(res.Key).
		Type(resType).
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to get resource: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("get resource error: %s", resp.Msg)
	}

	name := filepath.Base(res.FileName)
	if name == "" || name == "." || name == "/" {
		name = filepath.Base(resp.FileName)
	}
	if name == "" || name == "." || name == "/" {
		name = res.Key
	}
	filePath := filepath.Join(dir, name)

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.File); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	c.log.Debug("resource downloaded", logger.FieldMsgID, messageID, logger.FieldPath, filePath)
	return filePath, nil
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return c.createMessage(ctx, chatID, larkim.MsgTypeText, string(contentJSON))
}

// SendImage uploads an image and sends it to a chat
func (c *Client) SendImage(ctx context.Context, chatID, path string) error {
	key, err := c.UploadImage(ctx, path)
	if err != nil {
		return err
	}
	contentJSON, _ := json.Marshal(map[string]string{"image_key": key})
	return c.createMessage(ctx, chatID, larkim.MsgTypeImage, string(contentJSON))
}

// SendFile uploads a file and sends it to a chat. fileType is one of the
// Feishu upload types (opus, mp4, pdf, doc, xls, ppt, stream); opus is sent
// as a voice message and mp4 as a video.
func (c *Client) SendFile(ctx context.Context, chatID, path, fileType string) error {
	key, err := c.UploadFile(ctx, path, fileType)
	if err != nil {
		return err
	}
	contentJSON, _ := json.Marshal(map[string]string{"file_key": key})

	msgType := larkim.MsgTypeFile
	switch fileType {
	case "opus":
		msgType = larkim.MsgTypeAudio
	case "mp4":
		msgType = larkim.MsgTypeMedia
	}
	return c.createMessage(ctx, chatID, msgType, string(contentJSON))
}

// UploadImage uploads an image for messaging and returns its image_key
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType(larkim.ImageTypeMessage).
			Image(f).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload image error: %s", resp.Msg)
	}
	return deref(resp.Data.ImageKey), nil
}

// UploadFile uploads a file and returns its file_key
func (c *Client) UploadFile(ctx context.Context, path, fileType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType(fileType).
			FileName(filepath.Base(path)).
			File(f).
			Build()).
		Build()

	resp, err := c.larkCli.Im.File.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload file failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload file error: %s", resp.Msg)
	}
	return deref(resp.Data.FileKey), nil
}

func (c *Client) createMessage(ctx context.Context, chatID, msgType, content string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s message failed: %w", msgType, err)
	}
	if !resp.Success() {
		return fmt.Errorf("send %s message error: %s", msgType, resp.Msg)
	}

	c.log.Debug("message sent", "type", msgType, logger.FieldChatID, chatID)
	return nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	info := &ChatInfo{
		ChatID:   chatID,
		Name:     deref(resp.Data.Name),
		ChatMode: deref(resp.Data.ChatMode),
	}
	if n, err := strconv.Atoi(deref(resp.Data.UserCount)); err == nil {
		info.MemberCount = n
	}
	return info, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
