package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestPublishNoteEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "abc", "a.md")

	s := receive(t, ch)
	if !strings.Contains(s, "event: note.created") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"note_id":"abc"`) || !strings.Contains(s, `"path":"a.md"`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestPublishGraph_Payload(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishGraph("noteChange", map[string]int{"nodes": 3})

	s := receive(t, ch)
	if !strings.Contains(s, "event: graph.updated") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"reason":"noteChange"`) || !strings.Contains(s, `"graph":{"nodes":3}`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestPublishGraph_ThrottleKeepsLatest(t *testing.T) {
	b := NewBroker(300 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishGraph("first", 1)
	b.PublishGraph("second", 2)
	b.PublishGraph("third", 3)

	first := receive(t, ch)
	if !strings.Contains(first, `"reason":"first"`) {
		t.Fatalf("first message = %q", first)
	}

	// Nothing else goes out inside the window.
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message inside throttle window: %q", msg)
	case <-time.After(100 * time.Millisecond):
	}

	last := receive(t, ch)
	if !strings.Contains(last, `"reason":"third"`) {
		t.Errorf("trailing message = %q, want the latest update", last)
	}

	select {
	case msg := <-ch:
		t.Errorf("superseded update was sent: %q", msg)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestNoteEventsAreNotThrottled(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a", "a.md")
	b.PublishNoteEvent("updated", "b", "b.md")

	if s := receive(t, ch); !strings.Contains(s, "note.created") {
		t.Errorf("first = %q", s)
	}
	if s := receive(t, ch); !strings.Contains(s, "note.updated") {
		t.Errorf("second = %q", s)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishNoteEvent("updated", "x", "x.md")
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	// A trailing graph update is pending when the broker closes.
	b.PublishGraph("a", 1)
	b.PublishGraph("b", 2)

	b.Close()

	deadline := time.After(time.Second)
	for open := true; open; {
		select {
		case _, open = <-ch:
		case <-deadline:
			t.Fatal("timeout waiting for channel close")
		}
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishNoteEvent("updated", "x", "x.md")
	b.PublishGraph("c", 3)
}
