package ws

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	anon := NewClient("")
	mine := NewClient("p-1")
	other := NewClient("p-2")
	for _, c := range []*Client{anon, mine, other} {
		hub.Register(c)
	}
	if hub.ClientCount() != 3 {
		t.Fatalf("ClientCount = %d", hub.ClientCount())
	}

	hub.BroadcastAll(map[string]string{"type": "broadcast"})
	for _, c := range []*Client{anon, mine, other} {
		if len(c.Send) != 1 {
			t.Errorf("client %q got %d messages, want 1", c.PartnerID, len(c.Send))
		}
	}

	hub.BroadcastToPartner("p-1", map[string]string{"type": "credit"})
	if len(mine.Send) != 2 || len(other.Send) != 1 || len(anon.Send) != 1 {
		t.Errorf("personal event leaked: mine=%d other=%d anon=%d", len(mine.Send), len(other.Send), len(anon.Send))
	}

	<-mine.Send
	var got map[string]string
	if err := json.Unmarshal(<-mine.Send, &got); err != nil || got["type"] != "credit" {
		t.Errorf("second message = %v, %v", got, err)
	}
}

func TestClientCloseUnregisters(t *testing.T) {
	hub := NewHub()
	c := NewClient("p-1")
	hub.Register(c)
	c.Close()
	c.Close()
	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d after close", hub.ClientCount())
	}
	// delivery to a closed client must not panic
	hub.BroadcastAll("x")
	hub.BroadcastToPartner("p-1", "x")
}

func TestSlowClientDropsMessages(t *testing.T) {
	hub := NewHub()
	c := NewClient("")
	hub.Register(c)
	for i := 0; i < cap(c.Send)+10; i++ {
		hub.BroadcastAll(i)
	}
	if len(c.Send) != cap(c.Send) {
		t.Errorf("buffered %d, want %d", len(c.Send), cap(c.Send))
	}
}

func TestUpgraderOrigins(t *testing.T) {
	tests := []struct {
		origins []string
		origin  string
		want    bool
	}{
		{nil, "https://evil.test", true},
		{[]string{"*"}, "https://evil.test", true},
		{[]string{"https://app.enchiridion.test"}, "https://app.enchiridion.test", true},
		{[]string{"https://app.enchiridion.test"}, "https://evil.test", false},
		{[]string{"https://app.enchiridion.test"}, "", true},
	}
	for _, tt := range tests {
		u := NewUpgrader(tt.origins)
		r := httptest.NewRequest("GET", "/ws/feed", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := u.CheckOrigin(r); got != tt.want {
			t.Errorf("origins %v origin %q: got %v, want %v", tt.origins, tt.origin, got, tt.want)
		}
	}
}
