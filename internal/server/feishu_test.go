package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
)

type mockSource struct {
	mu        sync.Mutex
	onMessage feishu.MessageHandler
	onState   feishu.StateHandler
	started   chan struct{}
	stopped   chan struct{}
}

func newMockSource() *mockSource {
	return &mockSource{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (m *mockSource) OnMessage(h feishu.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = h
}

func (m *mockSource) OnStateChange(h feishu.StateHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = h
}

// Start mirrors the Feishu client: it blocks until Stop, then reports the
// connection as closed.
func (m *mockSource) Start() error {
	close(m.started)
	<-m.stopped
	m.setState(feishu.StateDisconnected)
	return nil
}

func (m *mockSource) Stop() {
	close(m.stopped)
}

func (m *mockSource) emit(msg *feishu.Message) {
	m.mu.Lock()
	h := m.onMessage
	m.mu.Unlock()
	h(msg)
}

func (m *mockSource) setState(state feishu.ConnState) {
	m.mu.Lock()
	h := m.onState
	m.mu.Unlock()
	h(state)
}

type mockRouter struct {
	routed chan *domain.IncomingMessage
}

func (m *mockRouter) Route(ctx context.Context, msg *domain.IncomingMessage) bool {
	m.routed <- msg
	return true
}

type mockCanceller struct {
	mu    sync.Mutex
	calls int
}

func (m *mockCanceller) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return 1
}

func startServer(t *testing.T) (*FeishuServer, *mockSource, *mockRouter, *mockCanceller) {
	t.Helper()
	source := newMockSource()
	router := &mockRouter{routed: make(chan *domain.IncomingMessage, 8)}
	jobs := &mockCanceller{}
	s := NewFeishuServer(source, router, jobs)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	<-source.started
	t.Cleanup(func() {
		s.Stop()
		<-done
	})
	return s, source, router, jobs
}

func TestFeishuServer_DispatchesAndDeduplicates(t *testing.T) {
	_, source, router, _ := startServer(t)

	msg := &feishu.Message{MsgID: "om_1", ChatID: "oc_1", ChatType: "p2p", Content: "!song x",
		Sender: &feishu.Sender{SenderID: "ou_alice"}}
	source.emit(msg)
	source.emit(msg)
	source.emit(&feishu.Message{MsgID: "om_2", ChatID: "oc_1", ChatType: "p2p", Content: "1"})

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case m := <-router.routed:
			got = append(got, m.MsgID)
		case <-timeout:
			t.Fatalf("timed out, routed %v", got)
		}
	}
	if got[0] != "om_1" || got[1] != "om_2" {
		t.Errorf("expected messages in order without duplicates, got %v", got)
	}
	select {
	case m := <-router.routed:
		t.Errorf("duplicate routed: %s", m.MsgID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeishuServer_DisconnectCancelsJobs(t *testing.T) {
	_, source, _, jobs := startServer(t)

	source.setState(feishu.StateConnected)
	source.setState(feishu.StateDisconnected)

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	if jobs.calls != 1 {
		t.Errorf("expected one CancelAll on disconnect, got %d", jobs.calls)
	}
}

func TestToIncomingMessage(t *testing.T) {
	raw := &feishu.Message{
		MsgID:    "om_9",
		ChatID:   "oc_group",
		ChatType: "group",
		Content:  "!deny @Bob",
		Sender:   &feishu.Sender{SenderID: "ou_admin"},
		Resources: []feishu.Resource{
			{Type: "image", Key: "img_1"},
			{Type: "media", Key: "file_v", FileName: "clip.mp4"},
			{Type: "file", Key: "file_a", FileName: "Track.FLAC"},
			{Type: "file", Key: "file_d", FileName: "notes.pdf"},
		},
		Mentions:   []feishu.Mention{{Key: "@_user_1", OpenID: "ou_bob", Name: "Bob"}},
		CreateTime: 1700000000000,
	}

	msg := ToIncomingMessage(raw)
	if !msg.IsGroup || msg.ChatID != "oc_group" || msg.SenderID != "ou_admin" {
		t.Errorf("unexpected header %+v", msg)
	}
	wantKinds := []domain.AttachmentKind{domain.AttachmentImage, domain.AttachmentVideo, domain.AttachmentAudio, domain.AttachmentFile}
	if len(msg.Attachments) != len(wantKinds) {
		t.Fatalf("expected %d attachments, got %d", len(wantKinds), len(msg.Attachments))
	}
	for i, want := range wantKinds {
		if msg.Attachments[i].Kind != want || msg.Attachments[i].MsgID != "om_9" {
			t.Errorf("attachment %d: got %+v, want kind %s", i, msg.Attachments[i], want)
		}
	}
	if len(msg.Mentions) != 1 || msg.Mentions[0] != "ou_bob" {
		t.Errorf("unexpected mentions %v", msg.Mentions)
	}
	if !msg.ReceivedAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected receive time %v", msg.ReceivedAt)
	}

	direct := ToIncomingMessage(&feishu.Message{MsgID: "om_p", ChatType: "p2p"})
	if direct.IsGroup {
		t.Error("p2p chat must not be a group")
	}
}

func TestFeishuServer_StopEndsStartAndCancelsJobs(t *testing.T) {
	source := newMockSource()
	router := &mockRouter{routed: make(chan *domain.IncomingMessage, 8)}
	jobs := &mockCanceller{}
	s := NewFeishuServer(source, router, jobs)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	<-source.started
	source.setState(feishu.StateConnected)

	s.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	if jobs.calls != 1 {
		t.Errorf("expected CancelAll when the transport closes, got %d calls", jobs.calls)
	}
}
