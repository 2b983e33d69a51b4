package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditlog/client"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Record and browse audit log entries",
	}

	cmd.AddCommand(newLogsCreateCmd())
	cmd.AddCommand(newLogsListCmd())
	cmd.AddCommand(newLogsGetCmd())
	cmd.AddCommand(newLogsSummaryCmd())
	cmd.AddCommand(newLogsTailCmd())
	return cmd
}

func newLogsCreateCmd() *cobra.Command {
	var (
		eventType   string
		description string
		metadata    string
		actorID     string
		actorName   string
		actorEmail  string
		timestamp   string
	)

	cmd := &cobra.Command{
		Use:   "create <action>",
		Short: "Record an action",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req, err := buildCreateRequest(args[0], eventType, description, metadata, timestamp,
				actorID, actorName, actorEmail)
			if err != nil {
				fatal("invalid arguments", err)
			}

			entry, err := apiClient.Logs.Create(context.Background(), req)
			if err != nil {
				fatal("create log", err)
			}
			output(entry, entry.ID)
		},
	}

	cmd.Flags().StringVarP(&eventType, "type", "t", "", "Event type: CREATE|READ|UPDATE|DELETE|LOGIN|LOGOUT|OTHER")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Human-readable description")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object of extra fields")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "Acting user ID (API key callers only)")
	cmd.Flags().StringVar(&actorName, "actor-name", "", "Acting user name")
	cmd.Flags().StringVar(&actorEmail, "actor-email", "", "Acting user email")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "RFC 3339 time of the action (default now)")
	return cmd
}

func buildCreateRequest(action, eventType, description, metadata, timestamp, actorID, actorName, actorEmail string) (client.CreateLogRequest, error) {
	req := client.CreateLogRequest{
		Action:      action,
		EventType:   eventType,
		Description: description,
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
			return req, fmt.Errorf("--metadata must be a JSON object: %w", err)
		}
	}

	if timestamp != "" {
		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return req, fmt.Errorf("--timestamp: %w", err)
		}
		req.Timestamp = &ts
	}

	if actorID != "" || actorName != "" || actorEmail != "" {
		req.Actor = &client.Actor{ID: actorID, Name: actorName, Email: actorEmail}
	}

	return req, nil
}

// addListFlags registers the filter and paging flags shared by list commands.
func addListFlags(cmd *cobra.Command, opts *client.ListOptions) {
	cmd.Flags().StringVarP(&opts.EventType, "type", "t", "", "Filter by event type")
	cmd.Flags().StringVarP(&opts.UserID, "user", "u", "", "Filter by actor ID")
	cmd.Flags().StringVarP(&opts.Action, "action", "a", "", "Filter by action")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Free-text search over action and description")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number (offset mode)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "Page size")
	cmd.Flags().StringVar(&opts.SortBy, "sort", "", "Sort field: timestamp|createdAt|action|eventType")
	cmd.Flags().StringVar(&opts.Order, "order", "", "Sort order: asc|desc")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "Continue from a nextCursor (cursor mode)")
}

func newLogsListCmd() *cobra.Command {
	var (
		opts client.ListOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log entries",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if all {
				var entries []client.LogEntry
				err := apiClient.Logs.Each(ctx, &opts, func(e client.LogEntry) bool {
					entries = append(entries, e)
					return true
				})
				if err != nil {
					fatal("list logs", err)
				}
				outputLogs(entries, nil)
				return
			}

			page, err := apiClient.Logs.List(ctx, &opts)
			if err != nil {
				if client.IsInvalidCursor(err) {
					fatal("list logs", errors.New("cursor is invalid or expired; restart without --cursor"))
				}
				fatal("list logs", err)
			}
			outputLogs(page.Data, &page.Meta)
		},
	}

	addListFlags(cmd, &opts)
	cmd.Flags().BoolVar(&all, "all", false, "Follow cursors and print every matching entry")
	return cmd
}

func newLogsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one log entry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entry, err := apiClient.Logs.Get(context.Background(), args[0])
			if err != nil {
				fatal("get log", err)
			}
			if flagFmt == "table" {
				outputLogs([]client.LogEntry{*entry}, nil)
				return
			}
			output(entry, entry.ID)
		},
	}
}

func newLogsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count entries per event type",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			counts, err := apiClient.Logs.Summary(context.Background())
			if err != nil {
				fatal("summary", err)
			}
			outputSummary(counts)
		},
	}
}

func newLogsTailCmd() *cobra.Command {
	var since uint64

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream new entries and alerts as they happen",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := apiClient.Logs.Tail(ctx, since, printEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				fatal("tail", err)
			}
		},
	}

	cmd.Flags().Uint64Var(&since, "since", 0, "Replay buffered events after this event ID")
	return cmd
}

func printEvent(ev client.Event) error {
	switch flagFmt {
	case "quiet":
		if ev.Type == client.EventLogCreated {
			var entry client.LogEntry
			if err := json.Unmarshal(ev.Data, &entry); err == nil {
				formatQuiet(entry.ID)
			}
		}
	case "table":
		line := fmt.Sprintf("%d  %s  %-16s", ev.ID, ev.Time.UTC().Format(time.RFC3339), ev.Type)
		switch ev.Type {
		case client.EventLogCreated:
			var entry client.LogEntry
			if err := json.Unmarshal(ev.Data, &entry); err == nil {
				line += fmt.Sprintf("  %s  %s  %s", entry.EventType, entry.Action, entry.Actor.ID)
			}
		case client.EventReset:
			line += "  " + ev.Reason
		default:
			line += "  " + string(ev.Data)
		}
		fmt.Println(line)
	default:
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	}
	return nil
}
