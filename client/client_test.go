package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithAPIKey("test-key"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func dataResponse(w http.ResponseWriter, status int, data any) {
	jsonResponse(w, status, map[string]any{"success": true, "data": data})
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, HealthResponse{Status: "ok", Version: "1.2.0", Backend: "mongo"})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "1.2.0" || resp.Backend != "mongo" {
		t.Errorf("got %+v", resp)
	}
}

func TestLogsCreate_SendsBearerAndBody(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/logs": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("authorization = %q", got)
			}
			var req CreateLogRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			dataResponse(w, 201, LogEntry{ID: "l1", Action: req.Action, EventType: req.EventType})
		},
	})
	entry, err := c.Logs.Create(context.Background(), CreateLogRequest{Action: "user.delete", EventType: EventDelete})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if entry.ID != "l1" || entry.Action != "user.delete" || entry.EventType != EventDelete {
		t.Errorf("got %+v", entry)
	}
}

func TestLogsList_QueryAndMeta(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/logs": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("eventType") != "DELETE" || q.Get("page") != "2" || q.Get("limit") != "5" || q.Get("search") != "invoice" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			total := int64(7)
			jsonResponse(w, 200, map[string]any{
				"success": true,
				"data":    []LogEntry{{ID: "a"}, {ID: "b"}},
				"meta":    Meta{Total: &total, Limit: 5, HasPrevPage: true},
			})
		},
	})
	page, err := c.Logs.List(context.Background(), &ListOptions{EventType: "DELETE", Search: "invoice", Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(page.Data) != 2 || page.Meta.Total == nil || *page.Meta.Total != 7 || !page.Meta.HasPrevPage {
		t.Errorf("got %+v", page)
	}
}

func TestListOptions_CursorOmitsPage(t *testing.T) {
	v := (&ListOptions{Page: 3, Cursor: "abc"}).values()
	if v.Get("page") != "" || v.Get("cursor") != "abc" {
		t.Errorf("values = %v", v)
	}
	if len((*ListOptions)(nil).values()) != 0 {
		t.Error("nil options should produce no parameters")
	}
}

func TestLogsEach_FollowsCursors(t *testing.T) {
	calls := 0
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/logs": func(w http.ResponseWriter, r *http.Request) {
			calls++
			next := "c2"
			switch r.URL.Query().Get("cursor") {
			case "":
				jsonResponse(w, 200, map[string]any{"success": true, "data": []LogEntry{{ID: "1"}, {ID: "2"}},
					"meta": Meta{HasNextPage: true, NextCursor: &next}})
			case "c2":
				jsonResponse(w, 200, map[string]any{"success": true, "data": []LogEntry{{ID: "3"}}, "meta": Meta{}})
			default:
				t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
			}
		},
	})

	var ids []string
	err := c.Logs.Each(context.Background(), &ListOptions{Limit: 2}, func(e LogEntry) bool {
		ids = append(ids, e.ID)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || calls != 2 {
		t.Errorf("ids = %v, calls = %d", ids, calls)
	}
}

func TestLogsGetAndSummary(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/logs/l1": func(w http.ResponseWriter, _ *http.Request) {
			dataResponse(w, 200, LogEntry{ID: "l1"})
		},
		"GET /api/v1/logs/summary": func(w http.ResponseWriter, _ *http.Request) {
			dataResponse(w, 200, []EventTypeCount{{EventType: "DELETE", Count: 4}})
		},
	})
	entry, err := c.Logs.Get(context.Background(), "l1")
	if err != nil || entry.ID != "l1" {
		t.Fatalf("Get() = %+v, %v", entry, err)
	}
	counts, err := c.Logs.Summary(context.Background())
	if err != nil || len(counts) != 1 || counts[0].Count != 4 {
		t.Fatalf("Summary() = %+v, %v", counts, err)
	}
}

func TestSavedSearches(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/saved-searches": func(w http.ResponseWriter, r *http.Request) {
			var req CreateSavedSearchRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			dataResponse(w, 201, SavedSearch{ID: "s1", Name: req.Name, Query: req.Query})
		},
		"GET /api/v1/saved-searches": func(w http.ResponseWriter, _ *http.Request) {
			dataResponse(w, 200, []SavedSearch{{ID: "s1"}})
		},
		"DELETE /api/v1/saved-searches/s1": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		"GET /api/v1/saved-searches/s1/results": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "3" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			jsonResponse(w, 200, map[string]any{"success": true, "data": []LogEntry{{ID: "x"}}, "meta": Meta{Limit: 3}})
		},
	})
	ctx := context.Background()

	ss, err := c.SavedSearches.Create(ctx, CreateSavedSearchRequest{Name: "deletes", Query: SearchQuery{EventType: EventDelete}})
	if err != nil || ss.ID != "s1" || ss.Query.EventType != EventDelete {
		t.Fatalf("Create() = %+v, %v", ss, err)
	}
	list, err := c.SavedSearches.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %+v, %v", list, err)
	}
	page, err := c.SavedSearches.Run(ctx, "s1", 0, 3, "")
	if err != nil || len(page.Data) != 1 || page.Meta.Limit != 3 {
		t.Fatalf("Run() = %+v, %v", page, err)
	}
	if err := c.SavedSearches.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
}

func TestOrganizationAndToken(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/organization": func(w http.ResponseWriter, _ *http.Request) {
			dataResponse(w, 200, Organization{ID: "o1", Name: "Acme"})
		},
		"POST /api/v1/organization/rotate-key": func(w http.ResponseWriter, _ *http.Request) {
			dataResponse(w, 200, map[string]string{"apiKey": "new-key"})
		},
		"POST /api/v1/auth/token": func(w http.ResponseWriter, r *http.Request) {
			var req TokenRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			dataResponse(w, 201, Token{Token: "jwt-for-" + req.UserID, ExpiresAt: time.Now().Add(time.Hour)})
		},
	})
	ctx := context.Background()

	org, err := c.Organization.Me(ctx)
	if err != nil || org.Name != "Acme" {
		t.Fatalf("Me() = %+v, %v", org, err)
	}
	key, err := c.Organization.RotateKey(ctx)
	if err != nil || key != "new-key" {
		t.Fatalf("RotateKey() = %q, %v", key, err)
	}
	tok, err := c.Auth.Token(ctx, TokenRequest{UserID: "alice"})
	if err != nil || tok.Token != "jwt-for-alice" {
		t.Fatalf("Token() = %+v, %v", tok, err)
	}
}

func TestAPIErrors(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/logs/missing": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 404, map[string]any{"success": false, "code": "not_found", "message": "not found", "request_id": "r1"})
		},
		"GET /api/v1/logs": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("cursor") != "" {
				jsonResponse(w, 400, map[string]any{"success": false, "code": "invalid_cursor", "message": "invalid cursor"})
				return
			}
			w.Header().Set("Retry-After", "42")
			jsonResponse(w, 429, map[string]any{"success": false, "code": "rate_limited", "message": "slow down"})
		},
		"GET /api/v1/organization": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("nope")) //nolint:errcheck
		},
	})
	ctx := context.Background()

	_, err := c.Logs.Get(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RequestID != "r1" {
		t.Errorf("expected request id, got %v", err)
	}

	_, err = c.Logs.List(ctx, nil)
	if !IsRateLimited(err) || !errors.As(err, &apiErr) || apiErr.RetryAfter != 42*time.Second {
		t.Errorf("expected rate limit with retry, got %v", err)
	}

	_, err = c.Logs.List(ctx, &ListOptions{Cursor: "bad"})
	if !IsInvalidCursor(err) {
		t.Errorf("expected invalid cursor, got %v", err)
	}

	_, err = c.Organization.Me(ctx)
	if !IsUnauthorized(err) || !errors.As(err, &apiErr) || apiErr.Code != "unknown" || apiErr.Message != "nope" {
		t.Errorf("expected raw unauthorized, got %v", err)
	}
}

func TestLogsTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		var sub map[string]any
		if err := wsjson.Read(r.Context(), conn, &sub); err != nil || sub["type"] != "subscribe" {
			t.Errorf("subscribe frame = %v, %v", sub, err)
		}
		_ = wsjson.Write(r.Context(), conn, map[string]any{"type": EventLogCreated, "id": 8, "data": map[string]string{"id": "l8"}})
		_ = wsjson.Write(r.Context(), conn, map[string]any{"type": EventShutdown})
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, WithAPIKey("test-key"))

	var got []Event
	err := c.Logs.Tail(context.Background(), 7, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Tail() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != 8 || got[1].Type != EventShutdown {
		t.Errorf("events = %+v", got)
	}

	unauth := New(srv.URL)
	if err := unauth.Logs.Tail(context.Background(), 0, func(Event) error { return nil }); !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}
