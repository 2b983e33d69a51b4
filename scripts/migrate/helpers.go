package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/auditlog/internal/models"
)

// deterministicUUID derives a version 5 style UUID from name using SHA-256.
func deterministicUUID(name string) string {
	h := sha256.Sum256([]byte("auditlog:" + name))
	// Set version 5 and variant bits.
	h[6] = (h[6] & 0x0f) | 0x50
	h[8] = (h[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}

// sanitizeURL removes credentials from a connection URL for display.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}

// envOr returns the environment variable value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns the environment variable as an int or a default.
func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// allowedTables is the set of table names that countTenantRows may query.
var allowedTables = map[string]bool{
	"audit_logs":     true,
	"saved_searches": true,
}

// countTenantRows sums a tenant-scoped table's rows over orgs. RLS requires
// the tenant context to be set for each organization in turn.
func countTenantRows(ctx context.Context, tx pgx.Tx, table string, orgs []models.Organization) (int, error) {
	if !allowedTables[table] {
		return 0, fmt.Errorf("disallowed table name: %s", table)
	}

	sanitized := pgx.Identifier{table}.Sanitize()
	total := 0
	for i := range orgs {
		if err := setTenant(ctx, tx, orgs[i].ID); err != nil {
			return total, err
		}

		var count int
		err := tx.QueryRow(ctx,
			fmt.Sprintf("SELECT count(*) FROM %s WHERE organization_id = $1", sanitized), orgs[i].ID,
		).Scan(&count)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

// printReport outputs the final migration summary.
func printReport(r *report) {
	fmt.Println()
	fmt.Println("=== Audit Log Migration Report ===")
	if r.DryRun {
		fmt.Println("MODE: DRY RUN (no changes made)")
	}
	fmt.Printf("Source: %s\n", r.Source)
	fmt.Printf("Target: %s\n", r.Target)
	fmt.Println()
	fmt.Printf("Organizations:  %d read → %d inserted → %d verified %s\n",
		r.OrgsRead, r.OrgsInserted, r.OrgsVerified, statusIcon(r.OrgsRead, r.OrgsVerified, r.DryRun))
	fmt.Printf("Saved searches: %d read → %d inserted\n", r.SearchesRead, r.SearchesAdded)
	if len(r.SkippedLogs) > 0 {
		fmt.Printf("Log entries:    %d read → %d inserted (%d skipped) → %d verified %s\n",
			r.LogsRead, r.LogsInserted, len(r.SkippedLogs), r.LogsVerified,
			statusIcon(r.LogsRead-len(r.SkippedLogs), r.LogsVerified, r.DryRun))
	} else {
		fmt.Printf("Log entries:    %d read → %d inserted → %d verified %s\n",
			r.LogsRead, r.LogsInserted, r.LogsVerified, statusIcon(r.LogsRead, r.LogsVerified, r.DryRun))
	}

	if len(r.SkippedLogs) > 0 {
		fmt.Println("\nSkipped log entries:")
		for _, s := range r.SkippedLogs {
			fmt.Printf("  - %s (reason: %s)\n", s.ID, s.Reason)
		}
	}

	fmt.Printf("\nDuration: %.1fs\n", r.Duration.Seconds())
	if r.Err != nil {
		fmt.Printf("Status: FAILED — %v\n", r.Err)
	} else {
		fmt.Println("Status: SUCCESS")
	}
}

// statusIcon compares the expected row count with what PostgreSQL holds after
// the run. Verified counts can exceed expected when rows from an earlier run
// already existed.
func statusIcon(expected, verified int, dryRun bool) string {
	switch {
	case dryRun:
		return "⏳"
	case verified >= expected:
		return "✅"
	default:
		return "❌"
	}
}
