package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/auth"
)

func TestStreamHandlerDeliversEvents(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()
	h := NewStreamHandler(hub, slog.New(slog.NewJSONHandler(io.Discard, nil)), time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: "trainer-1", Role: auth.RoleTrainer})
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q (%v)", line, err)
	}

	ev, err := NewEvent("booking.confirmed", map[string]string{"booking_id": "b-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if n := hub.Publish("trainer-1", ev); n != 1 {
		t.Fatalf("expected one subscriber, got %d", n)
	}

	var eventName, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if eventName != "booking.confirmed" {
		t.Fatalf("unexpected event name %q", eventName)
	}
	var got Event
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.ID != ev.ID {
		t.Fatalf("unexpected event id %q", got.ID)
	}
}

func TestStreamHandlerRequiresIdentity(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()
	h := NewStreamHandler(hub, slog.New(slog.NewJSONHandler(io.Discard, nil)), 0)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil))
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rw.Code)
	}
}
