package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeArgs runs the given root command with args and returns any error.
// It suppresses cobra's usage/error output so test output stays clean.
func executeArgs(t *testing.T, root *cobra.Command, args ...string) error {
	t.Helper()
	root.SetOut(&strings.Builder{})
	root.SetErr(&strings.Builder{})
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return err
}

// newTestRoot builds a root command tree identical to main() but with
// PersistentPreRun stubbed out so the API client is never initialised.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "auditlog",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Skip client initialisation in tests.
		},
	}
	root.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "")
	root.PersistentFlags().StringVar(&flagKey, "api-key", "", "")
	root.PersistentFlags().StringVar(&flagFmt, "format", "json", "")

	root.AddCommand(newLogsCmd())
	root.AddCommand(newSearchesCmd())
	root.AddCommand(newOrgCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// TestArgValidation checks positional argument counts. Only failing cases
// are executed: passing validation would run against a nil client.
func TestArgValidation(t *testing.T) {
	resetFlags(t)

	tests := []struct {
		name string
		args []string
	}{
		{"logs create needs an action", []string{"logs", "create"}},
		{"logs create takes one action", []string{"logs", "create", "a", "b"}},
		{"logs get needs an id", []string{"logs", "get"}},
		{"logs list takes no args", []string{"logs", "list", "extra"}},
		{"logs summary takes no args", []string{"logs", "summary", "extra"}},
		{"searches create needs a name", []string{"searches", "create"}},
		{"searches delete needs an id", []string{"searches", "delete"}},
		{"searches run needs an id", []string{"searches", "run"}},
		{"org show takes no args", []string{"org", "show", "extra"}},
		{"token needs a user", []string{"token"}},
		{"unknown flag", []string{"logs", "list", "--bogus"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := executeArgs(t, newTestRoot(), tc.args...); err == nil {
				t.Errorf("expected error for %v", tc.args)
			}
		})
	}
}

func TestSearchAlias(t *testing.T) {
	resetFlags(t)
	root := newTestRoot()
	cmd, _, err := root.Find([]string{"search", "list"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if cmd.Name() != "list" || cmd.Parent().Name() != "searches" {
		t.Errorf("alias resolved to %s", cmd.CommandPath())
	}
}

func TestBuildCreateRequest(t *testing.T) {
	req, err := buildCreateRequest("invoice.delete", "DELETE", "removed", `{"invoice":42}`,
		"2024-03-01T12:00:00Z", "alice", "Alice", "")
	if err != nil {
		t.Fatalf("buildCreateRequest: %v", err)
	}
	if req.Action != "invoice.delete" || req.EventType != "DELETE" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Metadata["invoice"] != float64(42) {
		t.Errorf("metadata: %+v", req.Metadata)
	}
	if req.Timestamp == nil || req.Timestamp.Year() != 2024 {
		t.Errorf("timestamp: %v", req.Timestamp)
	}
	if req.Actor == nil || req.Actor.ID != "alice" {
		t.Errorf("actor: %+v", req.Actor)
	}

	req, err = buildCreateRequest("login", "", "", "", "", "", "", "")
	if err != nil {
		t.Fatalf("minimal request: %v", err)
	}
	if req.Actor != nil || req.Timestamp != nil || req.Metadata != nil {
		t.Errorf("expected optional fields unset: %+v", req)
	}

	if _, err := buildCreateRequest("x", "", "", "[1,2]", "", "", "", ""); err == nil {
		t.Error("expected error for non-object metadata")
	}
	if _, err := buildCreateRequest("x", "", "", "", "yesterday", "", "", ""); err == nil {
		t.Error("expected error for bad timestamp")
	}
}

// TestCommandsAgainstServer runs the real root command against a stub API.
func TestCommandsAgainstServer(t *testing.T) {
	var gotAuth, gotQuery string
	var gotBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/logs", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodPost {
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"success":true,"data":{"id":"log-new","action":"invoice.delete"}}`))
			return
		}

		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"success":true,"data":[{"id":"log-1"},{"id":"log-2"}],"meta":{"limit":10,"nextCursor":null}}`))
	})
	mux.HandleFunc("/api/v1/organization", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"id":"org-1","name":"Acme","email":"ops@acme.test"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		isolate(t)
		base := []string{"--url", srv.URL, "--api-key", "cli-key", "--format", "quiet"}
		var err error
		out := captureStdout(t, func() {
			err = executeArgs(t, newRootCmd(), append(base, args...)...)
		})
		if err != nil {
			t.Fatalf("execute %v: %v", args, err)
		}
		return out
	}

	t.Run("logs list", func(t *testing.T) {
		out := run(t, "logs", "list", "--type", "DELETE", "--limit", "10")
		if out != "log-1\nlog-2\n" {
			t.Errorf("output: %q", out)
		}
		if gotAuth != "Bearer cli-key" {
			t.Errorf("authorization: %q", gotAuth)
		}
		if !strings.Contains(gotQuery, "eventType=DELETE") || !strings.Contains(gotQuery, "limit=10") {
			t.Errorf("query: %q", gotQuery)
		}
	})

	t.Run("logs create", func(t *testing.T) {
		out := run(t, "logs", "create", "invoice.delete", "--type", "DELETE", "--metadata", `{"invoice":42}`)
		if strings.TrimSpace(out) != "log-new" {
			t.Errorf("output: %q", out)
		}
		if gotBody["action"] != "invoice.delete" || gotBody["eventType"] != "DELETE" {
			t.Errorf("body: %+v", gotBody)
		}
	})

	t.Run("org show", func(t *testing.T) {
		if out := run(t, "org", "show"); strings.TrimSpace(out) != "org-1" {
			t.Errorf("output: %q", out)
		}
	})
}
