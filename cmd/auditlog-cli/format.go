package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/persistorai/auditlog/client"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.Join(parts, "  "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(id string) {
	fmt.Println(id)
}

func output(v any, quietVal string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	default:
		formatJSON(v)
	}
}

// outputLogs renders entries as a table when requested, one ID per line in
// quiet mode and as JSON otherwise.
func outputLogs(entries []client.LogEntry, meta *client.Meta) {
	switch flagFmt {
	case "quiet":
		for _, e := range entries {
			formatQuiet(e.ID)
		}
	case "table":
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.ID,
				e.Timestamp.UTC().Format(time.RFC3339),
				e.EventType,
				truncate(e.Action, 40),
				e.Actor.ID,
			})
		}
		formatTable([]string{"ID", "TIMESTAMP", "EVENT", "ACTION", "ACTOR"}, rows)
		if meta != nil {
			fmt.Println(pageFooter(*meta))
		}
	default:
		if meta == nil {
			formatJSON(entries)
			return
		}
		formatJSON(map[string]any{"data": entries, "meta": meta})
	}
}

// pageFooter summarizes pagination state below a table.
func pageFooter(m client.Meta) string {
	var parts []string
	if m.Page != nil && m.Pages != nil && m.Total != nil {
		parts = append(parts, fmt.Sprintf("page %d/%d, %d total", *m.Page, *m.Pages, *m.Total))
	}
	if m.NextCursor != nil {
		parts = append(parts, "next cursor: "+*m.NextCursor)
	}
	if len(parts) == 0 {
		return "end of results"
	}
	return strings.Join(parts, "; ")
}

func outputSummary(counts []client.EventTypeCount) {
	if flagFmt != "table" {
		output(counts, "")
		return
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.EventType, strconv.FormatInt(c.Count, 10)})
	}
	formatTable([]string{"EVENT", "COUNT"}, rows)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
