package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/persistorai/auditlog/internal/query"
)

func TestSQLBuilder_Where(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expr     query.Expr
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "nil matches all",
			expr:     nil,
			wantSQL:  "TRUE",
			wantArgs: nil,
		},
		{
			name:     "tenant only",
			expr:     query.And{query.TenantClause("t1")},
			wantSQL:  "(organization_id = $1)",
			wantArgs: []any{"t1"},
		},
		{
			name: "filters and search",
			expr: query.And{
				query.TenantClause("t1"),
				query.Eq(query.FieldEventType, "DELETE"),
				query.Or{
					query.ContainsFold(query.FieldAction, "50%_off"),
					query.ContainsFold(query.FieldActorEmail, `a\b`),
				},
			},
			wantSQL: `(organization_id = $1 AND event_type = $2 AND ` +
				`(action ILIKE $3 ESCAPE '\' OR actor_email ILIKE $4 ESCAPE '\'))`,
			wantArgs: []any{"t1", "DELETE", `%50\%\_off%`, `%a\\b%`},
		},
		{
			name: "keyset",
			expr: query.Or{
				query.Lt(query.FieldTimestamp, ts),
				query.And{query.Eq(query.FieldTimestamp, ts), query.Lt(query.FieldID, "L")},
			},
			wantSQL:  `("timestamp" < $1 OR ("timestamp" = $2 AND id < $3))`,
			wantArgs: []any{ts, ts, "L"},
		},
		{
			name:     "empty or matches nothing",
			expr:     query.And{query.TenantClause("t1"), query.Or{}},
			wantSQL:  "(organization_id = $1 AND FALSE)",
			wantArgs: []any{"t1"},
		},
		{
			name:     "since",
			expr:     query.Since(ts),
			wantSQL:  "created_at >= $1",
			wantArgs: []any{ts},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newSQLBuilder(logColumns)

			got, err := b.where(tc.expr)
			if err != nil {
				t.Fatalf("where: %v", err)
			}

			if got != tc.wantSQL {
				t.Errorf("sql = %q, want %q", got, tc.wantSQL)
			}

			if !reflect.DeepEqual(b.args, tc.wantArgs) {
				t.Errorf("args = %#v, want %#v", b.args, tc.wantArgs)
			}
		})
	}
}

func TestSQLBuilder_UnknownField(t *testing.T) {
	b := newSQLBuilder(logColumns)

	if _, err := b.where(query.Eq("metadata.ip", "x")); err == nil {
		t.Error("expected error for unknown field")
	}

	if _, err := b.orderBy([]query.Sort{{Field: "metadata"}}); err == nil {
		t.Error("expected error for unknown sort field")
	}
}

func TestSQLBuilder_OrderBy(t *testing.T) {
	b := newSQLBuilder(logColumns)

	got, err := b.orderBy([]query.Sort{
		{Field: query.FieldAction, Desc: true},
		{Field: query.FieldID, Desc: true},
	})
	if err != nil {
		t.Fatalf("orderBy: %v", err)
	}

	if want := " ORDER BY action DESC, id DESC"; got != want {
		t.Errorf("orderBy = %q, want %q", got, want)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"plain":   "plain",
		"100%":    `100\%`,
		"a_b":     `a\_b`,
		`c:\tmp`:  `c:\\tmp`,
		`%_\`:     `\%\_\\`,
		"":        "",
		"ünïcode": "ünïcode",
	}

	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
