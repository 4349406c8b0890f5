package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
)

// feishuAPI is the part of feishu.Client the repository uses
type feishuAPI interface {
	SendText(ctx context.Context, chatID, text string) error
	SendImage(ctx context.Context, chatID, path string) error
	SendFile(ctx context.Context, chatID, path, fileType string) error
	DownloadResource(ctx context.Context, messageID string, res feishu.Resource, dir string) (string, error)
	GetChatInfo(ctx context.Context, chatID string) (*feishu.ChatInfo, error)
}

// feishuRepo implements the transport repository
type feishuRepo struct {
	client feishuAPI
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.TransportRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID domain.Identity, text string) error {
	return r.client.SendText(ctx, string(chatID), text)
}

// SendMedia uploads the asset as the matching Feishu message type, then
// sends the caption as a separate text since media messages carry none.
func (r *feishuRepo) SendMedia(ctx context.Context, chatID domain.Identity, asset *domain.Asset, caption string) error {
	var err error
	switch asset.Format() {
	case domain.FormatWebP, "png", "jpg", "jpeg", "gif":
		err = r.client.SendImage(ctx, string(chatID), asset.Path)
	case domain.FormatMP4:
		err = r.client.SendFile(ctx, string(chatID), asset.Path, "mp4")
	case domain.FormatOpus:
		err = r.client.SendFile(ctx, string(chatID), asset.Path, "opus")
	default:
		err = r.client.SendFile(ctx, string(chatID), asset.Path, "stream")
	}
	if err != nil {
		return fmt.Errorf("send %s: %w", asset.FileName(), err)
	}

	if caption != "" {
		if err := r.client.SendText(ctx, string(chatID), caption); err != nil {
			return fmt.Errorf("send caption: %w", err)
		}
	}
	return nil
}

// DownloadAttachment saves an attachment into dir
func (r *feishuRepo) DownloadAttachment(ctx context.Context, att domain.Attachment, dir string) (string, error) {
	res := feishu.Resource{Type: "file", Key: att.Key, FileName: att.FileName}
	if att.Kind == domain.AttachmentImage {
		res.Type = "image"
	}
	return r.client.DownloadResource(ctx, att.MsgID, res, dir)
}

// GetChatInfo gets chat metadata
func (r *feishuRepo) GetChatInfo(ctx context.Context, chatID domain.Identity) (*domain.ChatInfo, error) {
	info, err := r.client.GetChatInfo(ctx, string(chatID))
	if err != nil {
		return nil, err
	}
	return &domain.ChatInfo{
		ChatID:      chatID,
		Name:        info.Name,
		IsGroup:     info.ChatMode == "group" || info.ChatMode == "topic",
		MemberCount: info.MemberCount,
	}, nil
}
