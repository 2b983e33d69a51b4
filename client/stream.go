package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Live-tail frame types.
const (
	EventLogCreated     = "log.created"
	EventAlertTriggered = "alert.triggered"
	EventReset          = "reset"
	EventShutdown       = "shutdown"
)

// Tail streams live events of the caller's tenant to fn until ctx ends, the
// server shuts down or fn returns an error. A positive lastEventID asks the
// server to replay buffered events after it; a "reset" frame means they are
// gone and the caller should reload through List.
func (s *LogService) Tail(ctx context.Context, lastEventID uint64, fn func(Event) error) error {
	u := "ws" + strings.TrimPrefix(s.c.baseURL, "http") + "/api/v1/logs/stream"

	header := http.Header{}
	if s.c.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.c.apiKey)
	}

	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Code: "stream_rejected", Message: err.Error()}
		}
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.CloseNow()

	if lastEventID > 0 {
		sub := map[string]any{"type": "subscribe", "last_event_id": lastEventID}
		if err := wsjson.Write(ctx, conn, sub); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		if err := fn(ev); err != nil {
			conn.Close(websocket.StatusNormalClosure, "")
			return err
		}

		if ev.Type == EventShutdown {
			return nil
		}
	}
}
