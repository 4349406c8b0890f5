package data

import (
	"context"
	"testing"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
)

type fakeFeishu struct {
	calls []string
	res   feishu.Resource
}

func (f *fakeFeishu) SendText(ctx context.Context, chatID, text string) error {
	f.calls = append(f.calls, "text:"+text)
	return nil
}

func (f *fakeFeishu) SendImage(ctx context.Context, chatID, path string) error {
	f.calls = append(f.calls, "image")
	return nil
}

func (f *fakeFeishu) SendFile(ctx context.Context, chatID, path, fileType string) error {
	f.calls = append(f.calls, "file:"+fileType)
	return nil
}

func (f *fakeFeishu) DownloadResource(ctx context.Context, messageID string, res feishu.Resource, dir string) (string, error) {
	f.res = res
	return dir + "/" + res.Key, nil
}

func (f *fakeFeishu) GetChatInfo(ctx context.Context, chatID string) (*feishu.ChatInfo, error) {
	return &feishu.ChatInfo{ChatID: chatID, Name: "Music Lovers", ChatMode: "group", MemberCount: 12}, nil
}

func TestFeishuRepo_SendMediaByFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/d/song.mp3", "file:stream"},
		{"/d/clip.mp4", "file:mp4"},
		{"/d/voice.opus", "file:opus"},
		{"/d/sticker.webp", "image"},
	}
	for _, tt := range tests {
		f := &fakeFeishu{}
		r := &feishuRepo{client: f}
		if err := r.SendMedia(context.Background(), "oc_1", &domain.Asset{Path: tt.path}, "Here is your song"); err != nil {
			t.Fatalf("SendMedia: %v", err)
		}
		if len(f.calls) != 2 || f.calls[0] != tt.want || f.calls[1] != "text:Here is your song" {
			t.Errorf("%s: unexpected calls %v", tt.path, f.calls)
		}
	}
}

func TestFeishuRepo_NoCaption(t *testing.T) {
	f := &fakeFeishu{}
	r := &feishuRepo{client: f}
	if err := r.SendMedia(context.Background(), "oc_1", &domain.Asset{Path: "/d/a.webp"}, ""); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 1 {
		t.Errorf("empty caption must not be sent: %v", f.calls)
	}
}

func TestFeishuRepo_DownloadAttachmentType(t *testing.T) {
	f := &fakeFeishu{}
	r := &feishuRepo{client: f}
	if _, err := r.DownloadAttachment(context.Background(), domain.Attachment{Kind: domain.AttachmentImage, Key: "img_1"}, "/tmp"); err != nil {
		t.Fatal(err)
	}
	if f.res.Type != "image" {
		t.Errorf("image attachment must download as image, got %q", f.res.Type)
	}
	if _, err := r.DownloadAttachment(context.Background(), domain.Attachment{Kind: domain.AttachmentVideo, Key: "file_1"}, "/tmp"); err != nil {
		t.Fatal(err)
	}
	if f.res.Type != "file" {
		t.Errorf("video attachment must download as file, got %q", f.res.Type)
	}
}

func TestFeishuRepo_GetChatInfo(t *testing.T) {
	r := &feishuRepo{client: &fakeFeishu{}}
	info, err := r.GetChatInfo(context.Background(), "oc_1")
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsGroup || info.MemberCount != 12 || info.Name != "Music Lovers" {
		t.Errorf("unexpected info %+v", info)
	}
}
