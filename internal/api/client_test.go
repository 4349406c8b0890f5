package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

func TestClientAgainstServer(t *testing.T) {
	s, access, _, transport := newTestServer("secret")
	ts := httptest.NewServer(s.Engine())
	defer ts.Close()

	ctx := context.Background()
	client := NewClient(ts.URL, "secret")

	added, err := client.Allow(ctx, "ou_bob")
	if err != nil || !added {
		t.Fatalf("Allow: added=%v err=%v", added, err)
	}
	list, err := client.AllowList(ctx)
	if err != nil {
		t.Fatalf("AllowList: %v", err)
	}
	if len(list.Identities) != 2 {
		t.Errorf("expected 2 identities, got %v", list.Identities)
	}

	removed, err := client.Deny(ctx, "ou_bob")
	if err != nil || !removed {
		t.Fatalf("Deny: removed=%v err=%v", removed, err)
	}
	if access.Allow(domain.Identity("ou_bob")) {
		t.Error("bob should be denied")
	}

	if err := client.SetMode(ctx, true); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	st, err := client.Status(ctx)
	if err != nil || !st.PublicMode {
		t.Errorf("Status: %+v err=%v", st, err)
	}

	if err := client.Send(ctx, "oc_1", "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(transport.sentTo("oc_1")) != 1 {
		t.Error("expected one message sent")
	}

	jobs, err := client.Jobs(ctx)
	if err != nil || len(jobs) != 0 {
		t.Errorf("Jobs: %v err=%v", jobs, err)
	}
}

func TestClientRejectsBadToken(t *testing.T) {
	s, _, _, _ := newTestServer("secret")
	ts := httptest.NewServer(s.Engine())
	defer ts.Close()

	if _, err := NewClient(ts.URL, "nope").Status(context.Background()); err == nil {
		t.Error("expected unauthorized error")
	}
}
