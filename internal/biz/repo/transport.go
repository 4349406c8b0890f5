package repo

import (
	"context"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// TransportRepo is the outbound side of the messaging transport
type TransportRepo interface {
	// SendText sends a text message to a chat
	SendText(ctx context.Context, chatID domain.Identity, text string) error

	// SendMedia uploads the asset and sends it to the chat with a caption.
	// The asset file is only read; the caller still owns it.
	SendMedia(ctx context.Context, chatID domain.Identity, asset *domain.Asset, caption string) error

	// DownloadAttachment saves an inbound attachment into dir and returns its path
	DownloadAttachment(ctx context.Context, att domain.Attachment, dir string) (string, error)

	// GetChatInfo returns chat metadata (name, member count)
	GetChatInfo(ctx context.Context, chatID domain.Identity) (*domain.ChatInfo, error)
}
