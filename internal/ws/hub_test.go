package ws

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestClient(h *Hub, tenantID string) *Client {
	return &Client{hub: h, send: make(chan []byte, clientSendBuffer), log: h.log, TenantID: tenantID}
}

func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()

	h := NewHub(cfg, quietLogger())
	h.drain = 0
	go h.Run(context.Background())
	t.Cleanup(h.Shutdown)

	return h
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case msg := <-c.send:
		var evt Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			t.Fatalf("decoding %s: %v", msg, err)
		}
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_BroadcastIsTenantScoped(t *testing.T) {
	h := startHub(t, HubConfig{})

	a := newTestClient(h, "org-a")
	b := newTestClient(h, "org-b")
	h.Register(a)
	h.Register(b)
	waitForClients(t, h, 2)

	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{"id":"1"}`))
	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{"id":"2"}`))
	h.BroadcastEvent("alert.triggered", "org-b", json.RawMessage(`{"count":6}`))

	if evt := receive(t, a); evt.ID != 1 || evt.Type != "log.created" || string(evt.Data) != `{"id":"1"}` {
		t.Errorf("first event for a = %+v", evt)
	}
	if evt := receive(t, a); evt.ID != 2 {
		t.Errorf("second event id = %d, want 2", evt.ID)
	}

	evt := receive(t, b)
	if evt.ID != 1 || evt.Type != "alert.triggered" {
		t.Errorf("event for b = %+v, want per-tenant id 1", evt)
	}

	select {
	case msg := <-a.send:
		t.Fatalf("tenant a received foreign event %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PerTenantLimit(t *testing.T) {
	h := startHub(t, HubConfig{MaxPerTenant: 1})

	first := newTestClient(h, "org-a")
	h.Register(first)
	waitForClients(t, h, 1)

	second := newTestClient(h, "org-a")
	h.Register(second)

	select {
	case _, ok := <-second.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second client was not rejected")
	}

	h.Register(newTestClient(h, "org-b"))
	waitForClients(t, h, 2)
}

func TestHub_OversizedEventDropped(t *testing.T) {
	h := startHub(t, HubConfig{})

	c := newTestClient(h, "org-a")
	h.Register(c)
	waitForClients(t, h, 1)

	big := make([]byte, maxEventPayload)
	for i := range big {
		big[i] = 'x'
	}
	data, _ := json.Marshal(string(big))

	h.BroadcastEvent("log.created", "org-a", data)
	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{}`))

	if evt := receive(t, c); string(evt.Data) != `{}` {
		t.Fatalf("expected only the small event, got %s", evt.Data)
	}
}

func TestHub_ReplayEvents(t *testing.T) {
	h := NewHub(HubConfig{BufferLen: 3}, quietLogger())
	defer h.buffer.Stop()

	for range 5 {
		h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{}`))
	}

	c := newTestClient(h, "org-a")

	// Buffer holds 3, 4, 5.
	if !h.ReplayEvents(c, 2) {
		t.Fatal("replay from 2 should succeed without a gap")
	}
	for _, want := range []uint64{3, 4, 5} {
		if evt := receive(t, c); evt.ID != want {
			t.Fatalf("replayed id = %d, want %d", evt.ID, want)
		}
	}

	if h.ReplayEvents(c, 1) {
		t.Fatal("replay from 1 should report a gap")
	}

	if !h.ReplayEvents(c, 0) {
		t.Fatal("fresh subscribers get the whole buffer")
	}
}

func TestClient_HandleMessageSendsReset(t *testing.T) {
	h := NewHub(HubConfig{BufferLen: 1}, quietLogger())
	defer h.buffer.Stop()

	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{}`))
	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{}`))
	h.BroadcastEvent("log.created", "org-a", json.RawMessage(`{}`))

	c := newTestClient(h, "org-a")
	c.handleMessage([]byte(`{"type":"subscribe","last_event_id":1}`))

	var msg ResetMsg
	if err := json.Unmarshal(<-c.send, &msg); err != nil || msg.Type != MsgReset {
		t.Fatalf("expected reset, got %+v (%v)", msg, err)
	}

	c.handleMessage([]byte(`not json`))
	c.handleMessage([]byte(`{"type":"ping"}`))

	if len(c.send) != 0 {
		t.Fatal("unexpected reply to non-subscribe message")
	}
}
