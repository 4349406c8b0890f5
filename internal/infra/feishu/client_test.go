package feishu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

func strPtr(s string) *string { return &s }

func newEvent(msgType, chatType, content string, mentions ...*larkim.MentionEvent) *larkim.P2MessageReceiveV1 {
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender: &larkim.EventSender{
				SenderId:   &larkim.UserId{OpenId: strPtr("ou_sender")},
				SenderType: strPtr("user"),
			},
			Message: &larkim.EventMessage{
				MessageId:   strPtr("om_1"),
				ChatId:      strPtr("oc_1"),
				ChatType:    strPtr(chatType),
				MessageType: strPtr(msgType),
				Content:     strPtr(content),
				CreateTime:  strPtr("1700000000000"),
				Mentions:    mentions,
			},
		},
	}
}

func mention(key, openID, name string) *larkim.MentionEvent {
	return &larkim.MentionEvent{Key: strPtr(key), Id: &larkim.UserId{OpenId: strPtr(openID)}, Name: strPtr(name)}
}

func TestConvertEvent_TextStripsBotMention(t *testing.T) {
	ev := newEvent("text", "group", `{"text":"@_user_1 !allow @_user_2"}`,
		mention("@_user_1", "ou_bot", "MediaBot"),
		mention("@_user_2", "ou_alice", "Alice"),
	)

	msg := ConvertEvent(ev, "ou_bot")
	if msg == nil {
		t.Fatal("expected message")
	}
	if msg.Content != "!allow @Alice" {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if !msg.MentionsBot {
		t.Error("bot mention not detected")
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0].OpenID != "ou_alice" {
		t.Errorf("bot should be excluded from mentions: %+v", msg.Mentions)
	}
	if msg.Sender.SenderID != "ou_sender" || msg.CreateTime != 1700000000000 {
		t.Errorf("unexpected sender/time: %+v %d", msg.Sender, msg.CreateTime)
	}
}

func TestConvertEvent_Resources(t *testing.T) {
	tests := []struct {
		msgType string
		content string
		wantKey string
		name    string
	}{
		{"image", `{"image_key":"img_1"}`, "img_1", ""},
		{"audio", `{"file_key":"file_a","duration":3000}`, "file_a", ""},
		{"media", `{"file_key":"file_v","image_key":"img_cover","file_name":"clip.mp4"}`, "file_v", "clip.mp4"},
		{"file", `{"file_key":"file_f","file_name":"song.mp3"}`, "file_f", "song.mp3"},
	}
	for _, tt := range tests {
		msg := ConvertEvent(newEvent(tt.msgType, "p2p", tt.content), "")
		if msg == nil || len(msg.Resources) != 1 {
			t.Errorf("%s: expected one resource, got %+v", tt.msgType, msg)
			continue
		}
		res := msg.Resources[0]
		if res.Type != tt.msgType || res.Key != tt.wantKey || res.FileName != tt.name {
			t.Errorf("%s: unexpected resource %+v", tt.msgType, res)
		}
	}
}

func TestConvertEvent_PostKeepsLinks(t *testing.T) {
	content := `{"title":"","content":[[{"tag":"a","text":"this","href":"https://youtu.be/abc"},{"tag":"img","image_key":"img_2"}]]}`
	msg := ConvertEvent(newEvent("post", "p2p", content), "")
	if msg == nil {
		t.Fatal("expected message")
	}
	if msg.Content != "https://youtu.be/abc" {
		t.Errorf("link href should be kept, got %q", msg.Content)
	}
	if len(msg.Resources) != 1 || msg.Resources[0].Key != "img_2" {
		t.Errorf("post image not extracted: %+v", msg.Resources)
	}
}

func TestConvertEvent_UnsupportedType(t *testing.T) {
	if msg := ConvertEvent(newEvent("sticker", "p2p", `{"file_key":"x"}`), ""); msg != nil {
		t.Errorf("unsupported type should be dropped, got %+v", msg)
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnState
}

func (r *stateRecorder) record(s ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnState(nil), r.states...)
}

func TestClient_StopReturnsFromStart(t *testing.T) {
	c := NewClient("app", "secret", 5, 1)
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	// Behaves like the SDK: logs the connect, then never returns.
	park := make(chan struct{})
	c.connect = func(ctx context.Context) error {
		c.sdkLog.Info(ctx, "connected to wss://example.invalid", "[conn_id=1]")
		<-park
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connected state never reported")
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	got := rec.snapshot()
	if len(got) != 2 || got[0] != StateConnected || got[1] != StateDisconnected {
		t.Errorf("expected connected then disconnected, got %v", got)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	c := NewClient("app", "secret", 5, 1)
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	wantErr := errors.New("dial refused")
	c.connect = func(ctx context.Context) error { return wantErr }

	if err := c.Start(); !errors.Is(err, wantErr) {
		t.Errorf("expected connect error, got %v", err)
	}
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("no state change expected without a connection, got %v", got)
	}
}

func TestClient_SDKDisconnectLine(t *testing.T) {
	c := NewClient("app", "secret", 5, 1)
	rec := &stateRecorder{}
	c.OnStateChange(rec.record)

	ctx := context.Background()
	c.sdkLog.Info(ctx, "connected to wss://example.invalid")
	c.sdkLog.Info(ctx, "connected to wss://example.invalid")
	c.sdkLog.Info(ctx, "disconnected to wss://example.invalid")
	c.sdkLog.Info(ctx, "trying to reconnect: 1")

	got := rec.snapshot()
	if len(got) != 2 || got[0] != StateConnected || got[1] != StateDisconnected {
		t.Errorf("expected one connect and one disconnect, got %v", got)
	}
}
