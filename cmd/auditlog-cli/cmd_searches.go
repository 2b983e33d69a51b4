package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditlog/client"
)

func newSearchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "searches",
		Aliases: []string{"search"},
		Short:   "Manage saved searches",
	}

	cmd.AddCommand(newSearchesCreateCmd())
	cmd.AddCommand(newSearchesListCmd())
	cmd.AddCommand(newSearchesGetCmd())
	cmd.AddCommand(newSearchesDeleteCmd())
	cmd.AddCommand(newSearchesRunCmd())
	return cmd
}

func newSearchesCreateCmd() *cobra.Command {
	var (
		q      client.SearchQuery
		global bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Save a query preset",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ss, err := apiClient.SavedSearches.Create(context.Background(), client.CreateSavedSearchRequest{
				Name:     args[0],
				Query:    q,
				IsGlobal: global,
			})
			if err != nil {
				fatal("create saved search", err)
			}
			output(ss, ss.ID)
		},
	}

	cmd.Flags().StringVarP(&q.EventType, "type", "t", "", "Filter by event type")
	cmd.Flags().StringVarP(&q.UserID, "user", "u", "", "Filter by actor ID")
	cmd.Flags().StringVarP(&q.Action, "action", "a", "", "Filter by action")
	cmd.Flags().StringVarP(&q.Search, "search", "s", "", "Free-text search")
	cmd.Flags().StringVar(&q.SortBy, "sort", "", "Sort field")
	cmd.Flags().StringVar(&q.Order, "order", "", "Sort order: asc|desc")
	cmd.Flags().IntVarP(&q.Limit, "limit", "l", 0, "Default page size")
	cmd.Flags().BoolVar(&global, "global", false, "Share with every user of the organization")
	return cmd
}

func newSearchesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved searches",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			searches, err := apiClient.SavedSearches.List(context.Background())
			if err != nil {
				fatal("list saved searches", err)
			}
			outputSearches(searches)
		},
	}
}

func newSearchesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a saved search",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ss, err := apiClient.SavedSearches.Get(context.Background(), args[0])
			if err != nil {
				fatal("get saved search", err)
			}
			if flagFmt == "table" {
				outputSearches([]client.SavedSearch{*ss})
				return
			}
			output(ss, ss.ID)
		},
	}
}

func newSearchesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved search you own",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.SavedSearches.Delete(context.Background(), args[0]); err != nil {
				fatal("delete saved search", err)
			}
			if flagFmt != "quiet" {
				fmt.Printf("Deleted saved search %s\n", args[0])
			}
		},
	}
}

func newSearchesRunCmd() *cobra.Command {
	var (
		page   int
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a saved search",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result, err := apiClient.SavedSearches.Run(context.Background(), args[0], page, limit, cursor)
			if err != nil {
				fatal("run saved search", err)
			}
			outputLogs(result.Data, &result.Meta)
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "Page number")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Page size (overrides the stored limit)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue from a nextCursor")
	return cmd
}

func outputSearches(searches []client.SavedSearch) {
	switch flagFmt {
	case "quiet":
		for _, ss := range searches {
			formatQuiet(ss.ID)
		}
	case "table":
		rows := make([][]string, 0, len(searches))
		for _, ss := range searches {
			scope := "private"
			if ss.IsGlobal {
				scope = "global"
			}
			rows = append(rows, []string{
				ss.ID,
				truncate(ss.Name, 30),
				scope,
				describeQuery(ss.Query),
				ss.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		formatTable([]string{"ID", "NAME", "SCOPE", "QUERY", "UPDATED"}, rows)
	default:
		formatJSON(searches)
	}
}

// describeQuery renders the non-empty parts of q as key=value pairs.
func describeQuery(q client.SearchQuery) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("eventType", q.EventType)
	add("userId", q.UserID)
	add("action", q.Action)
	add("search", q.Search)
	add("sortBy", q.SortBy)
	add("order", q.Order)
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.Limit))
	}
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, " ")
}
